package goble

import (
	"context"

	ble "github.com/go-ble/ble"
	"github.com/srg/glitch/internal/device"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newPlatformDevice

// bleScanner implements device.Scanner on top of go-ble.
//
// The HCI device is opened per scan and released when the scan returns, so a
// stopped scan never keeps the controller busy.
type bleScanner struct{}

// NewScanner creates a device.Scanner instance for BLE scanning operations.
// Returns device.ErrUnsupported on platforms without a go-ble backend.
func NewScanner() (device.Scanner, error) {
	if !Supported() {
		return nil, device.ErrUnsupported
	}
	return &bleScanner{}, nil
}

// Scan opens the adapter and scans until ctx is done.
func (s *bleScanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	dev, err := DeviceFactory()
	if err != nil {
		return NormalizeError(err)
	}
	defer func() { _ = dev.Stop() }()

	// Adapter: convert a handler expecting a device.Advertisement to the one expecting ble.Advertisement
	bleHandler := func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	}
	if err := dev.Scan(ctx, allowDup, bleHandler); err != nil {
		return NormalizeError(err)
	}
	return nil
}
