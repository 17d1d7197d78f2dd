// Package sensor reads ambient light levels from Linux IIO devices and
// watches for sensor hot-plug via netlink/udev events.
package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSysfsRoot is where the kernel exposes IIO devices.
const DefaultSysfsRoot = "/sys/bus/iio/devices"

// illuminance channel files, in order of preference
const (
	illuminanceInput = "in_illuminance_input"
	illuminanceRaw   = "in_illuminance_raw"
	illuminanceScale = "in_illuminance_scale"
)

// ErrNoSensor is returned when no IIO device exposes an illuminance channel.
var ErrNoSensor = fmt.Errorf("no ambient light sensor found")

// LuxHandler receives ambient lux readings. It is called from the poller
// goroutine; the handler is responsible for marshalling onto the consumer's
// goroutine.
type LuxHandler func(lux float64)

// Discover scans root for the first IIO device exposing an illuminance
// channel and returns its directory.
func Discover(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", root, err)
	}

	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, illuminanceInput)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, illuminanceRaw)); err == nil {
			return dir, nil
		}
	}
	return "", ErrNoSensor
}

// ReadLux reads one ambient light sample from an IIO device directory.
// It prefers the processed in_illuminance_input channel and falls back to
// the raw value multiplied by the device scale.
func ReadLux(dir string) (float64, error) {
	if v, err := readFloat(filepath.Join(dir, illuminanceInput)); err == nil {
		return v, nil
	}

	raw, err := readFloat(filepath.Join(dir, illuminanceRaw))
	if err != nil {
		return 0, fmt.Errorf("no illuminance channel in %s: %w", dir, err)
	}
	scale, err := readFloat(filepath.Join(dir, illuminanceScale))
	if err != nil {
		// Raw channel without a scale file: treat the value as lux.
		return raw, nil
	}
	return raw * scale, nil
}

func readFloat(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return v, nil
}

// Poller periodically samples an ambient light sensor and delivers lux
// readings to a handler.
type Poller struct {
	interval time.Duration
	handler  LuxHandler

	mu      sync.Mutex
	dir     string
	quit    chan struct{}
	done    chan struct{}
	started bool
}

// NewPoller creates a poller for the IIO device directory dir.
func NewPoller(dir string, interval time.Duration, handler LuxHandler) *Poller {
	return &Poller{
		dir:      dir,
		interval: interval,
		handler:  handler,
	}
}

// Start validates that the sensor is readable and begins polling in a
// background goroutine.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("poller already started")
	}

	lux, err := ReadLux(p.dir)
	if err != nil {
		return err
	}

	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	p.started = true
	go p.run()

	log.Info().Str("device", p.dir).Float64("lux", lux).
		Dur("interval", p.interval).Msg("Ambient light poller started")
	p.handler(lux)
	return nil
}

// SetDevice swaps the polled device directory, e.g. after a hot-plug event
// re-discovered the sensor.
func (p *Poller) SetDevice(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = dir
}

// Stop halts polling and waits for the goroutine to exit. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.quit)
	done := p.done
	p.mu.Unlock()
	<-done
}

func (p *Poller) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			p.mu.Lock()
			dir := p.dir
			p.mu.Unlock()

			lux, err := ReadLux(dir)
			if err != nil {
				log.Warn().Err(err).Str("device", dir).Msg("Ambient light read failed")
				continue
			}
			p.handler(lux)
		}
	}
}
