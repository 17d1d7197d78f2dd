package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hdrclamp/hdrclampd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
display:
  token: display-0
  width: 3840
  height: 2160
  min_hdr_fraction: 0.1
clamp:
  limits:
    - lux: 500
      max_brightness: 0.6
    - lux: 1200
      max_brightness: 0.8
  increase_debounce: 5s
  decrease_debounce: 250ms
  ramp_increase_rate: 0.01
  ramp_decrease_rate: 0.03
sensor:
  device: /sys/bus/iio/devices/iio:device0
  poll_interval: 2s
backlight:
  enabled: true
  vendor_id: 1452
  product_id: 4372
  interface: 7
  min_nits: 400
  max_nits: 60000
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "display-0", cfg.Display.Token)
	assert.Equal(t, 3840, cfg.Display.Width)
	assert.Equal(t, 0.1, cfg.Display.MinHdrFraction)

	cc := cfg.Clamp.ToClamp()
	require.Len(t, cc.Limits, 2)
	assert.Equal(t, 500.0, cc.Limits[0].Lux)
	assert.Equal(t, 0.6, cc.Limits[0].MaxBrightness)
	assert.Equal(t, 5*time.Second, cc.IncreaseDebounce)
	assert.Equal(t, 250*time.Millisecond, cc.DecreaseDebounce)

	assert.Equal(t, 2*time.Second, cfg.Sensor.PollInterval.Duration())
	assert.True(t, cfg.Backlight.Enabled)
	assert.Equal(t, uint16(1452), cfg.Backlight.VendorID)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
display:
  token: display-0
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Clamp.IncreaseDebounce.Duration())
	assert.Equal(t, 500*time.Millisecond, cfg.Clamp.DecreaseDebounce.Duration())
	assert.Equal(t, 0.02, cfg.Clamp.RampIncreaseRate)
	assert.Equal(t, 0.04, cfg.Clamp.RampDecreaseRate)
	assert.Equal(t, time.Second, cfg.Sensor.PollInterval.Duration())
	assert.Equal(t, uint32(400), cfg.Backlight.MinNits)
	assert.Equal(t, uint32(60000), cfg.Backlight.MaxNits)
	assert.Equal(t, 50*time.Millisecond, cfg.Backlight.StepInterval.Duration())
	assert.False(t, cfg.Backlight.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "clamp: [not: a map")
	_, err := config.Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
clamp:
  increase_debounce: soon
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}
