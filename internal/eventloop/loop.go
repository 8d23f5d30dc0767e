// Package eventloop runs bridge work on a single goroutine. Components
// that own state post closures here instead of taking locks; blocking
// calls run elsewhere and post their continuation back.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/cordbridge/internal/logging"
)

// ErrStopped is returned by Call once the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Executor is the scheduling surface components depend on. Loop and
// Inline both satisfy it.
type Executor interface {
	// Post queues fn to run on the loop goroutine.
	Post(fn func())

	// Go runs work on its own goroutine and then posts then, if non-nil.
	Go(work func(), then func())

	// AfterFunc posts fn once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending AfterFunc.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped a pending timer.
	Stop() bool
}

// Loop is a FIFO of closures drained by Run. Post never blocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	running bool
	log     *logging.Logger
}

// New creates a loop. Nothing runs until Run is called.
func New(log *logging.Logger) *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log.Sub("loop"),
	}
}

// Run drains the queue until ctx is cancelled. Work still queued at that
// point is discarded.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("event loop already running")
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			dropped := len(l.queue)
			l.queue = nil
			l.mu.Unlock()
			if dropped > 0 {
				l.log.Debug().Int("dropped", dropped).Msg("loop stopped with pending work")
			}
			return nil
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			l.run(fn)

			if ctx.Err() != nil {
				break
			}
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Str("panic", fmt.Sprint(r)).Msg("recovered panic in loop task")
		}
	}()
	fn()
}

// Post queues fn.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on a new goroutine and posts then when it returns.
func (l *Loop) Go(work func(), then func()) {
	go func() {
		work()
		if then != nil {
			l.Post(then)
		}
	}()
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// AfterFunc posts fn after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}
