// Package config loads the hdrclampd YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hdrclamp/hdrclampd/internal/clamp"
)

// Config represents the daemon configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Display   DisplayConfig   `yaml:"display"`
	Clamp     ClampConfig     `yaml:"clamp"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Backlight BacklightConfig `yaml:"backlight"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
}

// DisplayConfig identifies the clamped display and its geometry.
type DisplayConfig struct {
	// Token is the compositor's identifier for the display surface.
	Token  string `yaml:"token"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`

	// MinHdrFraction is the fraction of the screen an HDR layer must
	// cover before clamping applies. Zero or negative disables the
	// layer-info subscription entirely (virtual/headless displays).
	MinHdrFraction float64 `yaml:"min_hdr_fraction"`
}

// LimitEntry is one row of the lux-to-ceiling table.
type LimitEntry struct {
	Lux           float64 `yaml:"lux"`
	MaxBrightness float64 `yaml:"max_brightness"`
}

// ClampConfig contains the clamping table and transition tuning.
type ClampConfig struct {
	Limits           []LimitEntry `yaml:"limits"`
	IncreaseDebounce Duration     `yaml:"increase_debounce"`
	DecreaseDebounce Duration     `yaml:"decrease_debounce"`
	RampIncreaseRate float64      `yaml:"ramp_increase_rate"`
	RampDecreaseRate float64      `yaml:"ramp_decrease_rate"`
}

// ToClamp converts the YAML form into the clamp package's config value.
func (c ClampConfig) ToClamp() *clamp.Config {
	limits := make([]clamp.LimitPoint, 0, len(c.Limits))
	for _, e := range c.Limits {
		limits = append(limits, clamp.LimitPoint{Lux: e.Lux, MaxBrightness: e.MaxBrightness})
	}
	return &clamp.Config{
		Limits:           limits,
		IncreaseDebounce: c.IncreaseDebounce.Duration(),
		DecreaseDebounce: c.DecreaseDebounce.Duration(),
		RampIncreaseRate: c.RampIncreaseRate,
		RampDecreaseRate: c.RampDecreaseRate,
	}
}

// SensorConfig contains ambient light sensor settings.
type SensorConfig struct {
	// Device is the sysfs IIO device directory. Empty means auto-discover.
	Device       string   `yaml:"device"`
	PollInterval Duration `yaml:"poll_interval"`
}

// BacklightConfig contains USB HID backlight settings.
type BacklightConfig struct {
	Enabled   bool   `yaml:"enabled"`
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Interface int    `yaml:"interface"`
	Serial    string `yaml:"serial"`

	// MinNits and MaxNits map the normalized 0.0-1.0 brightness scale
	// onto the panel's physical range.
	MinNits uint32 `yaml:"min_nits"`
	MaxNits uint32 `yaml:"max_nits"`

	// StepInterval is how often the ramp applier advances toward its
	// target while a transition rate is in effect.
	StepInterval Duration `yaml:"step_interval"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Clamp.IncreaseDebounce == 0 {
		cfg.Clamp.IncreaseDebounce = Duration(2 * time.Second)
	}
	if cfg.Clamp.DecreaseDebounce == 0 {
		cfg.Clamp.DecreaseDebounce = Duration(500 * time.Millisecond)
	}
	if cfg.Clamp.RampIncreaseRate == 0 {
		cfg.Clamp.RampIncreaseRate = 0.02
	}
	if cfg.Clamp.RampDecreaseRate == 0 {
		cfg.Clamp.RampDecreaseRate = 0.04
	}

	if cfg.Sensor.PollInterval == 0 {
		cfg.Sensor.PollInterval = Duration(time.Second)
	}

	if cfg.Backlight.MinNits == 0 {
		cfg.Backlight.MinNits = 400
	}
	if cfg.Backlight.MaxNits == 0 {
		cfg.Backlight.MaxNits = 60000
	}
	if cfg.Backlight.StepInterval == 0 {
		cfg.Backlight.StepInterval = Duration(50 * time.Millisecond)
	}
}
