package backlight

import (
	"fmt"

	karalabehid "github.com/karalabe/hid"
)

// HIDAPIDevice wraps a karalabe/hid device to implement the Device interface.
type HIDAPIDevice struct {
	device karalabehid.Device
	info   DeviceInfo
}

// Verify HIDAPIDevice implements Device interface.
var _ Device = (*HIDAPIDevice)(nil)

// NewHIDAPIDevice creates a new HIDAPIDevice from an open hid.Device.
func NewHIDAPIDevice(device karalabehid.Device, info DeviceInfo) *HIDAPIDevice {
	return &HIDAPIDevice{device: device, info: info}
}

// GetFeatureReport reads a feature report from the device.
func (d *HIDAPIDevice) GetFeatureReport(data []byte) (int, error) {
	return d.device.GetFeatureReport(data)
}

// SendFeatureReport writes a feature report to the device.
func (d *HIDAPIDevice) SendFeatureReport(data []byte) (int, error) {
	return d.device.SendFeatureReport(data)
}

// Close closes the device handle.
func (d *HIDAPIDevice) Close() error {
	return d.device.Close()
}

// Info returns information about the device.
func (d *HIDAPIDevice) Info() DeviceInfo {
	return d.info
}

// Open opens the backlight HID interface of the display identified by
// vendor and product ID. If serial is empty, the first match is used;
// iface selects the USB interface carrying the brightness endpoint.
func Open(vendorID, productID uint16, iface int, serial string) (*HIDAPIDevice, error) {
	devices, err := karalabehid.Enumerate(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}

	for _, deviceInfo := range devices {
		if deviceInfo.Interface != iface {
			continue
		}
		if serial != "" && deviceInfo.Serial != serial {
			continue
		}

		device, err := deviceInfo.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open backlight %s: %w", deviceInfo.Serial, err)
		}

		return NewHIDAPIDevice(device, DeviceInfo{
			Path:      deviceInfo.Path,
			VendorID:  deviceInfo.VendorID,
			ProductID: deviceInfo.ProductID,
			Serial:    deviceInfo.Serial,
			Product:   deviceInfo.Product,
			Interface: deviceInfo.Interface,
		}), nil
	}

	if serial != "" {
		return nil, fmt.Errorf("backlight with serial %s not found", serial)
	}
	return nil, fmt.Errorf("no backlight device found for %04x:%04x", vendorID, productID)
}
