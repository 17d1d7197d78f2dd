package backlight

import "math"

// Range maps the normalized 0.0-1.0 brightness scale onto a panel's
// physical nits range.
type Range struct {
	MinNits uint32
	MaxNits uint32
}

// ClampNits ensures the brightness value is within the panel range.
func (r Range) ClampNits(nits uint32) uint32 {
	if nits < r.MinNits {
		return r.MinNits
	}
	if nits > r.MaxNits {
		return r.MaxNits
	}
	return nits
}

// NitsToLevel converts a nits value to a normalized level in [0.0, 1.0].
func (r Range) NitsToLevel(nits uint32) float64 {
	nits = r.ClampNits(nits)
	return float64(nits-r.MinNits) / float64(r.MaxNits-r.MinNits)
}

// LevelToNits converts a normalized level to nits. Levels outside [0, 1]
// are clamped. Uses rounding so the conversion round-trips with
// NitsToLevel.
func (r Range) LevelToNits(level float64) uint32 {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	nits := uint32(math.Round(level*float64(r.MaxNits-r.MinNits))) + r.MinNits
	return r.ClampNits(nits)
}
