package eventloop

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Inline is a deterministic Executor for tests. Posted work runs on the
// caller's goroutine before Post returns, except that work posted while
// another task is running is queued behind it. Go runs its work
// synchronously. Timers fire only when Advance moves the fake clock
// past their deadline.
type Inline struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	now     time.Duration
	timers  []*inlineTimer
}

type inlineTimer struct {
	owner    *Inline
	deadline time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

// NewInline returns an Inline executor with its clock at zero.
func NewInline() *Inline {
	return &Inline{}
}

func (i *Inline) Post(fn func()) {
	i.mu.Lock()
	i.queue = append(i.queue, fn)
	if i.running {
		i.mu.Unlock()
		return
	}
	i.running = true
	i.mu.Unlock()

	for {
		i.mu.Lock()
		if len(i.queue) == 0 {
			i.running = false
			i.mu.Unlock()
			return
		}
		next := i.queue[0]
		i.queue = i.queue[1:]
		i.mu.Unlock()
		next()
	}
}

func (i *Inline) Go(work func(), then func()) {
	work()
	if then != nil {
		i.Post(then)
	}
}

func (i *Inline) AfterFunc(d time.Duration, fn func()) Timer {
	i.mu.Lock()
	defer i.mu.Unlock()
	t := &inlineTimer{owner: i, deadline: i.now + d, fn: fn}
	i.timers = append(i.timers, t)
	return t
}

// Advance moves the clock forward by d and posts every timer whose
// deadline has been reached, in deadline order.
func (i *Inline) Advance(d time.Duration) {
	i.mu.Lock()
	i.now += d
	var due []*inlineTimer
	pending := i.timers[:0]
	for _, t := range i.timers {
		switch {
		case t.stopped:
		case t.deadline <= i.now:
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	i.timers = pending
	i.mu.Unlock()

	sort.SliceStable(due, func(a, b int) bool { return due[a].deadline < due[b].deadline })
	for _, t := range due {
		i.Post(t.fn)
	}
}

// Pending returns how many timers are waiting to fire.
func (i *Inline) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, t := range i.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Elapsed returns the fake time since the executor was created.
func (i *Inline) Elapsed() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.now
}

func (t *inlineTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Call runs fn through Post. It never fails.
func (i *Inline) Call(_ context.Context, fn func()) error {
	i.Post(fn)
	return nil
}
