// Package clamp implements an HDR brightness clamping control loop: a
// boolean gate driven by compositor HDR layer-info events, a piecewise
// lux-to-ceiling lookup, and a debounced transition controller that commits
// ceiling changes after a direction-dependent settling delay.
package clamp

import "math"

// FindLimit returns the brightness ceiling for the given ambient lux
// reading: the ceiling attached to the smallest lux boundary strictly
// greater than ambientLux. If no boundary exceeds ambientLux (or the table
// is empty), the display is left unclamped.
func FindLimit(cfg *Config, ambientLux float64) float64 {
	foundBoundary := math.MaxFloat64
	foundLimit := float64(BrightnessMax)
	for _, p := range cfg.Limits {
		if p.Lux > ambientLux && p.Lux < foundBoundary {
			foundBoundary = p.Lux
			foundLimit = p.MaxBrightness
		}
	}
	return foundLimit
}
