//go:build !darwin && !linux

package goble

import (
	ble "github.com/go-ble/ble"
	"github.com/srg/glitch/internal/device"
)

func newPlatformDevice() (ble.Device, error) {
	return nil, device.ErrUnsupported
}

// Supported reports whether this build has a go-ble backend.
func Supported() bool { return false }
