//go:build linux

package goble

import (
	ble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func newPlatformDevice() (ble.Device, error) {
	return linux.NewDevice()
}

// Supported reports whether this build has a go-ble backend.
func Supported() bool { return true }
