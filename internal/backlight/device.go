// Package backlight applies the clamped brightness to a USB HID backlight
// device, ramping toward new ceilings at the clamper's transition rate.
package backlight

//go:generate mockgen -source=device.go -destination=mocks/device_mock.go -package=mocks

// DeviceInfo contains information about a HID backlight device.
type DeviceInfo struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Serial    string
	Product   string
	Interface int
}

// Device represents an interface for HID backlight operations.
// This interface allows for mocking in tests.
type Device interface {
	// GetFeatureReport reads a feature report from the device.
	// The first byte is the report ID.
	GetFeatureReport(data []byte) (int, error)

	// SendFeatureReport writes a feature report to the device.
	// The first byte is the report ID.
	SendFeatureReport(data []byte) (int, error)

	// Close closes the device handle.
	Close() error

	// Info returns information about the device.
	Info() DeviceInfo
}
