package clamp

import (
	"errors"
	"fmt"
	"time"
)

const (
	// BrightnessMax is the unclamped brightness ceiling on the normalized
	// 0.0-1.0 scale. It is both the default and the value the clamper
	// converges to whenever HDR clamping does not apply.
	BrightnessMax = 1.0

	// RateUnset marks a transition rate as "no explicit rate"; the
	// brightness pipeline falls back to its own ramp speed.
	RateUnset = -1.0
)

// ErrInvalidDebounce is returned when a debounce duration is not positive.
var ErrInvalidDebounce = errors.New("debounce duration must be positive")

// ErrInvalidLimit is returned when a brightness limit is outside (0, 1].
var ErrInvalidLimit = errors.New("brightness limit must be in (0, 1]")

// ErrInvalidRampRate is returned when a ramp rate is not positive.
var ErrInvalidRampRate = errors.New("ramp rate must be positive")

// ErrDuplicateBoundary is returned when two limit points share a lux boundary.
var ErrDuplicateBoundary = errors.New("duplicate ambient lux boundary")

// LimitPoint caps brightness at MaxBrightness while the ambient lux reading
// is strictly below Lux.
type LimitPoint struct {
	Lux           float64
	MaxBrightness float64
}

// Config holds the clamping table and transition tuning for one display.
// It is treated as an immutable value: replacing it via ResetConfig takes
// effect on the next recompute.
type Config struct {
	// Limits maps ambient lux boundaries to brightness ceilings.
	// Order does not matter; boundaries must be unique.
	Limits []LimitPoint

	// IncreaseDebounce is how long a higher ceiling must remain the
	// desired target before it is committed.
	IncreaseDebounce time.Duration

	// DecreaseDebounce is the equivalent for a lower ceiling.
	DecreaseDebounce time.Duration

	// RampIncreaseRate and RampDecreaseRate are the transition speeds,
	// in brightness units per second, committed alongside the ceiling.
	RampIncreaseRate float64
	RampDecreaseRate float64
}

// Validate rejects configs the clamper cannot act on deterministically.
// Duplicate lux boundaries are an error rather than last-one-wins: a table
// with two ceilings for the same boundary has no well-defined lookup.
func (c *Config) Validate() error {
	if c.IncreaseDebounce <= 0 {
		return fmt.Errorf("%w: increase debounce %v", ErrInvalidDebounce, c.IncreaseDebounce)
	}
	if c.DecreaseDebounce <= 0 {
		return fmt.Errorf("%w: decrease debounce %v", ErrInvalidDebounce, c.DecreaseDebounce)
	}
	if c.RampIncreaseRate <= 0 {
		return fmt.Errorf("%w: increase rate %v", ErrInvalidRampRate, c.RampIncreaseRate)
	}
	if c.RampDecreaseRate <= 0 {
		return fmt.Errorf("%w: decrease rate %v", ErrInvalidRampRate, c.RampDecreaseRate)
	}

	seen := make(map[float64]struct{}, len(c.Limits))
	for _, p := range c.Limits {
		if p.MaxBrightness <= 0 || p.MaxBrightness > BrightnessMax {
			return fmt.Errorf("%w: %v at boundary %v lux", ErrInvalidLimit, p.MaxBrightness, p.Lux)
		}
		if _, ok := seen[p.Lux]; ok {
			return fmt.Errorf("%w: %v lux", ErrDuplicateBoundary, p.Lux)
		}
		seen[p.Lux] = struct{}{}
	}
	return nil
}
