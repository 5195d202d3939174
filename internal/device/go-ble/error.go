package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/glitch/internal/device"
)

// NormalizeError maps known go-ble error strings to the device sentinel errors.
// It ensures consistent handling even if the upstream library changes messages slightly.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, device.ErrBluetoothOff) || errors.Is(err, device.ErrUnsupported) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "is bluetooth turned on"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "no such device"):
		// linux: hci socket bind on a downed or missing controller
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
