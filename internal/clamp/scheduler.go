package clamp

import (
	"time"

	"github.com/hdrclamp/hdrclampd/internal/eventloop"
)

// Cancellable cancels a pending delayed post. Cancel reports whether the
// call was the one that cancelled it.
type Cancellable interface {
	Cancel() bool
}

// Scheduler is the execution context that owns all clamper state. Post
// marshals work onto it; PostDelayed arms a cancellable timer that fires
// on it. A Clamper performs no locking of its own, so every entry point
// must run on (or be marshalled onto) its Scheduler.
type Scheduler interface {
	Post(fn func())
	PostDelayed(d time.Duration, fn func()) Cancellable
}

type loopScheduler struct {
	loop *eventloop.Loop
}

// NewLoopScheduler adapts an eventloop.Loop to the Scheduler interface.
func NewLoopScheduler(loop *eventloop.Loop) Scheduler {
	return loopScheduler{loop: loop}
}

func (s loopScheduler) Post(fn func()) {
	s.loop.Post(fn)
}

func (s loopScheduler) PostDelayed(d time.Duration, fn func()) Cancellable {
	return s.loop.PostDelayed(d, fn)
}
