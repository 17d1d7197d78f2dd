package backlight

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hdrclamp/hdrclampd/internal/clamp"
)

const (
	// writesPerSecond caps HID feature-report writes; bursts come from
	// user setpoint changes, steady-state ramping stays under the limit.
	writesPerSecond = 20
	writeBurst      = 5
)

// ErrInvalidLevel is returned when a brightness level is outside [0, 1].
var ErrInvalidLevel = errors.New("level must be between 0 and 1")

// Applier drives the backlight toward min(user setpoint, clamp ceiling).
// When the clamper commits a transition rate, the applier ramps in fixed
// steps on the scheduler instead of jumping.
//
// All methods must be called on the scheduler goroutine.
type Applier struct {
	sched        clamp.Scheduler
	dev          *Backlight
	limiter      *rate.Limiter
	stepInterval time.Duration

	userLevel float64
	ceiling   float64
	applied   float64
	target    float64
	rampRate  float64

	step    clamp.Cancellable
	stopped bool
}

// NewApplier creates an applier over an open backlight. The current
// hardware level seeds both the applied value and the user setpoint.
func NewApplier(sched clamp.Scheduler, dev *Backlight, stepInterval time.Duration) *Applier {
	a := &Applier{
		sched:        sched,
		dev:          dev,
		limiter:      rate.NewLimiter(writesPerSecond, writeBurst),
		stepInterval: stepInterval,
		ceiling:      clamp.BrightnessMax,
		rampRate:     clamp.RateUnset,
		userLevel:    1.0,
		applied:      1.0,
	}
	if level, err := dev.GetLevel(); err != nil {
		log.Warn().Err(err).Msg("Failed to read initial backlight level")
	} else {
		a.userLevel = level
		a.applied = level
	}
	a.target = a.applied
	return a
}

// OnClampChanged is the clamper's change notification: it pulls the new
// committed ceiling and rate and retargets the backlight.
func (a *Applier) OnClampChanged(ceiling, rampRate float64) {
	if a.stopped {
		return
	}
	a.ceiling = ceiling
	a.rampRate = rampRate
	a.retarget()
}

// SetUserLevel updates the user's brightness setpoint. The effective
// output remains bounded by the clamp ceiling.
func (a *Applier) SetUserLevel(level float64) error {
	if a.stopped {
		return nil
	}
	if level < 0 || level > 1 {
		return ErrInvalidLevel
	}
	a.userLevel = level
	a.retarget()
	return nil
}

// UserLevel returns the current user setpoint.
func (a *Applier) UserLevel() float64 {
	return a.userLevel
}

// Applied returns the level last written toward the hardware.
func (a *Applier) Applied() float64 {
	return a.applied
}

// Stop cancels any in-flight ramp. Idempotent.
func (a *Applier) Stop() {
	if a.stopped {
		return
	}
	a.stopped = true
	a.cancelStep()
}

func (a *Applier) retarget() {
	a.target = math.Min(a.userLevel, a.ceiling)
	a.cancelStep()
	if a.target == a.applied {
		return
	}
	// No committed rate means the transition is not ramped.
	if a.rampRate <= 0 {
		a.write(a.target)
		return
	}
	a.stepOnce()
}

// stepOnce advances toward the target by one step and re-arms itself
// until the target is reached.
func (a *Applier) stepOnce() {
	a.step = nil
	delta := a.rampRate * a.stepInterval.Seconds()
	next := a.applied
	if a.target > a.applied {
		next = math.Min(a.applied+delta, a.target)
	} else {
		next = math.Max(a.applied-delta, a.target)
	}
	a.write(next)
	if a.applied != a.target {
		a.step = a.sched.PostDelayed(a.stepInterval, a.stepOnce)
	}
}

func (a *Applier) write(level float64) {
	a.applied = level
	if !a.limiter.Allow() {
		log.Warn().Float64("level", level).Msg("Backlight write rate limit exceeded, skipping")
		return
	}
	if err := a.dev.SetLevel(level); err != nil {
		log.Error().Err(err).Float64("level", level).Msg("Failed to set backlight level")
	}
}

func (a *Applier) cancelStep() {
	if a.step != nil {
		a.step.Cancel()
		a.step = nil
	}
}
