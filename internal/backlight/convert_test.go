package backlight_test

import (
	"testing"

	"github.com/hdrclamp/hdrclampd/internal/backlight"
	"github.com/stretchr/testify/assert"
)

var testRange = backlight.Range{MinNits: 400, MaxNits: 60000}

func TestRange_NitsToLevel(t *testing.T) {
	tests := []struct {
		name     string
		nits     uint32
		expected float64
	}{
		{
			name:     "minimum nits is level 0",
			nits:     400,
			expected: 0,
		},
		{
			name:     "maximum nits is level 1",
			nits:     60000,
			expected: 1,
		},
		{
			name:     "midpoint",
			nits:     30200, // 400 + 59600/2
			expected: 0.5,
		},
		{
			name:     "below range clamps to 0",
			nits:     10,
			expected: 0,
		},
		{
			name:     "above range clamps to 1",
			nits:     70000,
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, testRange.NitsToLevel(tt.nits), 1e-9)
		})
	}
}

func TestRange_LevelToNits(t *testing.T) {
	tests := []struct {
		name     string
		level    float64
		expected uint32
	}{
		{
			name:     "level 0 is minimum nits",
			level:    0,
			expected: 400,
		},
		{
			name:     "level 1 is maximum nits",
			level:    1,
			expected: 60000,
		},
		{
			name:     "midpoint",
			level:    0.5,
			expected: 30200,
		},
		{
			name:     "negative level clamps to minimum",
			level:    -0.5,
			expected: 400,
		},
		{
			name:     "level above 1 clamps to maximum",
			level:    1.5,
			expected: 60000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, testRange.LevelToNits(tt.level))
		})
	}
}

func TestRange_RoundTrip(t *testing.T) {
	for _, level := range []float64{0, 0.25, 0.5, 0.75, 1} {
		nits := testRange.LevelToNits(level)
		assert.InDelta(t, level, testRange.NitsToLevel(nits), 0.001)
	}
}
