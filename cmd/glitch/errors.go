package main

import (
	"errors"
	"runtime"

	"github.com/srg/glitch/internal/auth"
	"github.com/srg/glitch/internal/device"
	"github.com/srg/glitch/scanner"
)

// Command-level errors
var (
	ErrAccessDenied   = errors.New("access denied: invalid credentials")
	ErrNoDatabase     = errors.New("no database configured (set --database-url, database.url or GLITCH_DATABASE_URL)")
	ErrNotInteractive = errors.New("the dashboard needs an interactive terminal")
)

// FormatUserError turns known failures into a message with a next step.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, scanner.ErrPermissionDenied):
		if runtime.GOOS == "linux" {
			return "bluetooth scan permission denied: run as root or grant CAP_NET_ADMIN and CAP_NET_RAW " +
				"(sudo setcap 'cap_net_raw,cap_net_admin+eip' $(which glitch))"
		}
		return "bluetooth scan permission denied: allow Bluetooth access for this terminal in system settings"
	case errors.Is(err, device.ErrBluetoothOff):
		return "bluetooth is turned off: turn it on and try again"
	case errors.Is(err, device.ErrUnsupported):
		return "bluetooth scanning is not supported on this platform"
	case errors.Is(err, auth.ErrUserExists):
		return "a user with this email already exists"
	}
	return err.Error()
}
