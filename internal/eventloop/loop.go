// Package eventloop provides a serial executor: a single goroutine that
// runs posted functions in order, with support for cancellable delayed posts.
// Components that own their state on a Loop need no internal locking.
package eventloop

import (
	"sync"
	"time"
)

// defaultQueueSize bounds the task channel. Posting blocks once the queue
// is full, which backpressures chatty event sources instead of dropping work.
const defaultQueueSize = 128

// Loop is a single-goroutine serial executor.
type Loop struct {
	tasks chan func()
	done  chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New creates a Loop and starts its goroutine.
func New() *Loop {
	l := &Loop{
		tasks: make(chan func(), defaultQueueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for fn := range l.tasks {
		fn()
	}
	close(l.done)
}

// Post schedules fn to run on the loop goroutine. It returns false if the
// loop has been stopped, in which case fn is dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return false
	}
	l.tasks <- fn
	return true
}

// Call posts fn and blocks until it has run on the loop goroutine.
// It must not be called from the loop goroutine itself.
// Returns false without running fn if the loop has been stopped.
func (l *Loop) Call(fn func()) bool {
	ran := make(chan struct{})
	ok := l.Post(func() {
		fn()
		close(ran)
	})
	if !ok {
		return false
	}
	<-ran
	return true
}

// PostDelayed schedules fn to run on the loop goroutine after d has elapsed.
// The returned Timer cancels the pending run; cancelling on the loop
// goroutine is race-free even against a concurrently firing timer.
func (l *Loop) PostDelayed(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			t.mu.Lock()
			cancelled := t.cancelled
			t.mu.Unlock()
			if cancelled {
				return
			}
			fn()
		})
	})
	return t
}

// Stop shuts the loop down after draining already-queued tasks and waits
// for the goroutine to exit. Subsequent posts are dropped. Idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	close(l.tasks)
	l.mu.Unlock()
	<-l.done
}

// Timer is a handle for a delayed post. The zero value is not usable;
// Timers are produced by PostDelayed.
type Timer struct {
	mu        sync.Mutex
	cancelled bool
	timer     *time.Timer
}

// Cancel prevents the delayed function from running. Returns false if the
// timer was already cancelled. A timer whose function already ran reports
// true but has no further effect.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled {
		return false
	}
	t.cancelled = true
	t.timer.Stop()
	return true
}
