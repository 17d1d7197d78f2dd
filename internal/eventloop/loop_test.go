package eventloop_test

import (
	"sync"
	"testing"
	"time"

	"github.com/hdrclamp/hdrclampd/internal/eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_PostRunsInOrder(t *testing.T) {
	l := eventloop.New()
	defer l.Stop()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	require.True(t, l.Call(func() {}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoop_CallBlocksUntilRun(t *testing.T) {
	l := eventloop.New()
	defer l.Stop()

	ran := false
	require.True(t, l.Call(func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_PostDelayedFiresOnLoop(t *testing.T) {
	l := eventloop.New()
	defer l.Stop()

	fired := make(chan struct{})
	l.PostDelayed(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("delayed post did not fire")
	}
}

func TestLoop_TimerCancelPreventsRun(t *testing.T) {
	l := eventloop.New()
	defer l.Stop()

	timer := l.PostDelayed(20*time.Millisecond, func() {
		t.Error("cancelled timer fired")
	})
	assert.True(t, timer.Cancel())
	assert.False(t, timer.Cancel())

	time.Sleep(60 * time.Millisecond)
	l.Call(func() {}) // drain anything already queued
}

func TestLoop_CancelFromLoopGoroutine(t *testing.T) {
	l := eventloop.New()
	defer l.Stop()

	// Cancelling on the loop goroutine, the way the clamper re-arms its
	// debounce timer, must prevent the run.
	timer := l.PostDelayed(50*time.Millisecond, func() {
		t.Error("timer fired after cancel")
	})
	l.Call(func() { timer.Cancel() })

	time.Sleep(120 * time.Millisecond)
	l.Call(func() {})
}

func TestLoop_StopDropsLaterPosts(t *testing.T) {
	l := eventloop.New()
	l.Stop()

	assert.False(t, l.Post(func() { t.Error("post ran after stop") }))
	assert.False(t, l.Call(func() { t.Error("call ran after stop") }))
}

func TestLoop_StopIsIdempotent(t *testing.T) {
	l := eventloop.New()
	l.Stop()
	l.Stop()
}

func TestLoop_StopDrainsQueuedTasks(t *testing.T) {
	l := eventloop.New()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 5; i++ {
		l.Post(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	l.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}
