package backlight

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	// ReportID is the HID report ID for brightness control.
	ReportID byte = 0x01

	// ReportSize is the size of the HID feature report in bytes.
	ReportSize = 7
)

// ErrClosed is returned when an operation is attempted on a closed backlight.
var ErrClosed = fmt.Errorf("backlight is closed")

// ErrNoDevice is returned when brightness control is requested but no
// backlight device is available.
var ErrNoDevice = fmt.Errorf("no backlight device available")

// Backlight wraps a HID device with the panel's brightness range.
// All methods are safe for concurrent use.
type Backlight struct {
	device Device
	rng    Range
	mu     sync.Mutex
	closed bool
}

// NewBacklight creates a Backlight over an open HID device.
func NewBacklight(device Device, rng Range) *Backlight {
	return &Backlight{device: device, rng: rng}
}

// GetLevel reads the current brightness as a normalized level in [0, 1].
func (b *Backlight) GetLevel() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	data := make([]byte, ReportSize)
	data[0] = ReportID

	if _, err := b.device.GetFeatureReport(data); err != nil {
		return 0, fmt.Errorf("failed to get feature report: %w", err)
	}

	nits := binary.LittleEndian.Uint32(data[1:5])
	return b.rng.NitsToLevel(nits), nil
}

// SetLevel sets the brightness to a normalized level in [0, 1].
func (b *Backlight) SetLevel(level float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	nits := b.rng.LevelToNits(level)

	data := make([]byte, ReportSize)
	data[0] = ReportID
	binary.LittleEndian.PutUint32(data[1:5], nits)

	if _, err := b.device.SendFeatureReport(data); err != nil {
		return fmt.Errorf("failed to send feature report: %w", err)
	}

	return nil
}

// Serial returns the device serial. Device info is immutable, no locking.
func (b *Backlight) Serial() string {
	return b.device.Info().Serial
}

// Close closes the underlying HID device. Idempotent.
func (b *Backlight) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.device.Close()
}
