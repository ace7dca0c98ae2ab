package bridge

import (
	"fmt"

	"github.com/karalabe/hid"
)

// KnownDevice describes a USB VID/PID pair this package knows how to
// drive, together with a human hint shown when the device is present
// but enumerates in the wrong USB mode (e.g. a CH341A that booted into
// its parallel/EPP personality instead of its SPI personality).
type KnownDevice struct {
	VendorID, ProductID uint16
	Name                string
	Kind                string // "ch341a", "multibridge", "mpsse", "native"
	WrongModeHint       string
}

// KnownDevices is the static table Discover walks. It intentionally
// does not attempt to be exhaustive: adapters missing from it are not
// reported by Discover, though a user can still drive them through the
// NativeBridge if the kernel already exposes /dev/spidevN.M or an
// i2c-dev node.
var KnownDevices = []KnownDevice{
	{VendorID: 0x1A86, ProductID: 0x5512, Name: "CH341A", Kind: "ch341a"},
	{VendorID: 0x1A86, ProductID: 0x5523, Name: "CH347", Kind: "multibridge",
		WrongModeHint: "CH347 found in UART mode; switch DIP/jumper to SPI/I2C (HID) mode"},
	{VendorID: 0x0403, ProductID: 0x6014, Name: "FT232H", Kind: "mpsse"},
	{VendorID: 0x0403, ProductID: 0x6010, Name: "FT2232H", Kind: "mpsse"},
}

// DiscoveredDevice is one entry of a Discover() report.
type DiscoveredDevice struct {
	KnownDevice
	Path string
}

// Discover enumerates USB HID devices and matches them against
// KnownDevices. It does not open any device; callers construct the
// concrete Bridge implementation that matches Kind afterwards.
func Discover() ([]DiscoveredDevice, error) {
	var found []DiscoveredDevice
	for _, known := range KnownDevices {
		for _, info := range hid.Enumerate(known.VendorID, known.ProductID) {
			found = append(found, DiscoveredDevice{KnownDevice: known, Path: info.Path})
		}
	}
	return found, nil
}

func (d DiscoveredDevice) String() string {
	if d.Path != "" {
		return fmt.Sprintf("%s (%04x:%04x) at %s", d.Name, d.VendorID, d.ProductID, d.Path)
	}
	return fmt.Sprintf("%s (%04x:%04x)", d.Name, d.VendorID, d.ProductID)
}
