package clamp

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// ChangeListener is notified whenever the committed ceiling or transition
// rate changes. It runs synchronously on the clamper's scheduler, so
// MaxBrightness and TransitionRate observe a consistent pair inside it.
type ChangeListener func()

// Status is a point-in-time snapshot of clamper state, for diagnostics.
type Status struct {
	MaxBrightness         float64
	DesiredMaxBrightness  float64
	TransitionRate        float64
	DesiredTransitionRate float64
	AmbientLux            float64
	HdrVisible            bool
	ConfigPresent         bool
}

// Clamper bounds the display brightness while HDR content is on screen.
//
// It owns all of its state on a single Scheduler goroutine: ambient lux
// updates, gate transitions and config swaps each trigger a recompute of
// the desired ceiling, and a change of target arms exactly one debounce
// timer whose duration depends on the direction of the change. Only the
// timer callback ever commits the externally visible ceiling and rate.
type Clamper struct {
	sched     Scheduler
	source    LayerInfoSource
	onChanged ChangeListener
	gate      *gateListener

	cfg             *Config
	registeredToken string

	ambientLux float64
	hdrVisible bool

	maxBrightness        float64
	desiredMaxBrightness float64

	// transition speed, in brightness units per second
	transitionRate        float64
	desiredTransitionRate float64

	pending Cancellable
	stopped bool
}

// New creates a Clamper. Until ResetConfig supplies a config and a display
// token, the clamper reports the unclamped maximum. All methods must be
// called on the scheduler goroutine.
func New(sched Scheduler, source LayerInfoSource, onChanged ChangeListener) *Clamper {
	c := &Clamper{
		sched:     sched,
		source:    source,
		onChanged: onChanged,
		// No lux reading yet means "very bright": no clamping applies
		// until the sensor reports otherwise.
		ambientLux:            math.MaxFloat64,
		maxBrightness:         BrightnessMax,
		desiredMaxBrightness:  BrightnessMax,
		transitionRate:        RateUnset,
		desiredTransitionRate: RateUnset,
	}
	c.gate = newGateListener(sched, func(visible bool) {
		if c.stopped {
			return
		}
		c.hdrVisible = visible
		c.recalculate()
	})
	return c
}

// MaxBrightness returns the committed brightness ceiling.
func (c *Clamper) MaxBrightness() float64 {
	return c.maxBrightness
}

// TransitionRate returns the committed ramp rate, or RateUnset.
func (c *Clamper) TransitionRate() float64 {
	return c.transitionRate
}

// OnAmbientLuxChange updates the ambient light reading and recomputes the
// desired ceiling.
func (c *Clamper) OnAmbientLuxChange(ambientLux float64) {
	if c.stopped {
		return
	}
	c.ambientLux = ambientLux
	c.recalculate()
}

// ResetConfig swaps the clamping config, re-derives the minimum HDR pixel
// threshold from the display geometry, and re-registers the layer-info
// subscription if the display token changed. A nil cfg disables clamping.
// The config is validated before any state is touched.
func (c *Clamper) ResetConfig(cfg *Config, width, height int, minHdrFraction float64, token string) error {
	if c.stopped {
		return nil
	}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid clamp config: %w", err)
		}
	}

	c.cfg = cfg
	if minHdrFraction <= 0 {
		c.gate.minPixels = noPixelThreshold
	} else {
		c.gate.minPixels = float64(width*height) * minHdrFraction
	}

	if token != c.registeredToken {
		if c.registeredToken != "" {
			if err := c.source.Unregister(c.registeredToken); err != nil {
				log.Warn().Err(err).Str("token", c.registeredToken).
					Msg("Failed to unregister HDR layer-info subscription")
			}
			c.hdrVisible = false
			c.registeredToken = ""
		}
		// A token without a positive area threshold is never registered:
		// virtual displays report no HDR layer info.
		if token != "" && c.gate.minPixels > 0 {
			if err := c.source.Register(token, c.gate); err != nil {
				return fmt.Errorf("failed to register HDR layer-info subscription: %w", err)
			}
			c.registeredToken = token
			log.Debug().Str("token", token).Float64("minPixels", c.gate.minPixels).
				Msg("HDR layer-info subscription registered")
		}
	}

	c.recalculate()
	return nil
}

// Stop cancels any pending commit and drops the layer-info subscription.
// After Stop the clamper ignores further events. Idempotent.
func (c *Clamper) Stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	c.cancelPending()
	if c.registeredToken != "" {
		if err := c.source.Unregister(c.registeredToken); err != nil {
			log.Warn().Err(err).Str("token", c.registeredToken).
				Msg("Failed to unregister HDR layer-info subscription")
		}
		c.registeredToken = ""
	}
}

// Snapshot returns the current state for diagnostics.
func (c *Clamper) Snapshot() Status {
	return Status{
		MaxBrightness:         c.maxBrightness,
		DesiredMaxBrightness:  c.desiredMaxBrightness,
		TransitionRate:        c.transitionRate,
		DesiredTransitionRate: c.desiredTransitionRate,
		AmbientLux:            c.ambientLux,
		HdrVisible:            c.hdrVisible,
		ConfigPresent:         c.cfg != nil,
	}
}

// reset returns the clamper to the unclamped state. Disabling is not
// debounced: the ceiling is lifted immediately.
func (c *Clamper) reset() {
	if c.maxBrightness == BrightnessMax && c.desiredMaxBrightness == BrightnessMax &&
		c.transitionRate == RateUnset && c.desiredTransitionRate == RateUnset {
		return
	}
	c.cancelPending()
	c.maxBrightness = BrightnessMax
	c.desiredMaxBrightness = BrightnessMax
	c.transitionRate = RateUnset
	c.desiredTransitionRate = RateUnset
	log.Debug().Msg("Brightness clamp lifted")
	c.onChanged()
}

func (c *Clamper) recalculate() {
	if c.cfg == nil || !c.hdrVisible {
		c.reset()
		return
	}

	expected := FindLimit(c.cfg, c.ambientLux)
	if c.maxBrightness == expected {
		c.desiredMaxBrightness = c.maxBrightness
		c.desiredTransitionRate = RateUnset
		c.transitionRate = RateUnset
		c.cancelPending()
	} else if c.desiredMaxBrightness != expected {
		c.desiredMaxBrightness = expected
		// Direction is judged against the committed ceiling: a target
		// above it rises, below it falls.
		debounce := c.cfg.DecreaseDebounce
		c.desiredTransitionRate = c.cfg.RampDecreaseRate
		if c.desiredMaxBrightness > c.maxBrightness {
			debounce = c.cfg.IncreaseDebounce
			c.desiredTransitionRate = c.cfg.RampIncreaseRate
		}

		c.cancelPending()
		c.pending = c.sched.PostDelayed(debounce, c.commit)
		log.Debug().
			Float64("desired", c.desiredMaxBrightness).
			Float64("active", c.maxBrightness).
			Dur("debounce", debounce).
			Msg("Brightness clamp change pending")
	}
	// Same target as already pending: leave the armed timer alone.
}

// commit is the debounce timer callback: it publishes the desired ceiling
// and rate and notifies the consumer.
func (c *Clamper) commit() {
	c.pending = nil
	c.transitionRate = c.desiredTransitionRate
	c.maxBrightness = c.desiredMaxBrightness
	log.Debug().
		Float64("maxBrightness", c.maxBrightness).
		Float64("rate", c.transitionRate).
		Msg("Brightness clamp committed")
	c.onChanged()
}

func (c *Clamper) cancelPending() {
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
}
