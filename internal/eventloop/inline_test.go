package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInline_PostRunsImmediately(t *testing.T) {
	in := NewInline()
	ran := false
	in.Post(func() { ran = true })
	assert.True(t, ran)
}

func TestInline_NestedPostQueues(t *testing.T) {
	in := NewInline()
	var order []string
	in.Post(func() {
		order = append(order, "outer-start")
		in.Post(func() { order = append(order, "inner") })
		order = append(order, "outer-end")
	})
	assert.Equal(t, []string{"outer-start", "outer-end", "inner"}, order)
}

func TestInline_Go(t *testing.T) {
	in := NewInline()
	var order []string
	in.Go(func() { order = append(order, "work") }, func() { order = append(order, "then") })
	in.Go(func() { order = append(order, "solo") }, nil)
	assert.Equal(t, []string{"work", "then", "solo"}, order)
}

func TestInline_Timers(t *testing.T) {
	in := NewInline()
	var fired []string
	in.AfterFunc(5*time.Second, func() { fired = append(fired, "five") })
	in.AfterFunc(2*time.Second, func() { fired = append(fired, "two") })
	stopped := in.AfterFunc(3*time.Second, func() { fired = append(fired, "three") })

	assert.Equal(t, 3, in.Pending())
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	in.Advance(4 * time.Second)
	assert.Equal(t, []string{"two"}, fired)
	assert.Equal(t, 1, in.Pending())

	in.Advance(time.Second)
	assert.Equal(t, []string{"two", "five"}, fired)
	assert.Zero(t, in.Pending())
	assert.Equal(t, 5*time.Second, in.Elapsed())
}

func TestInline_TimerScheduledFromTimer(t *testing.T) {
	in := NewInline()
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			in.AfterFunc(time.Second, tick)
		}
	}
	in.AfterFunc(time.Second, tick)

	for i := 0; i < 5; i++ {
		in.Advance(time.Second)
	}
	assert.Equal(t, 3, count)
}
