//go:build darwin

package goble

import (
	ble "github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newPlatformDevice() (ble.Device, error) {
	return darwin.NewDevice()
}

// Supported reports whether this build has a go-ble backend.
func Supported() bool { return true }
