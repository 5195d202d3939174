// Package permission decides whether the host allows BLE scanning.
//
// The set of required capabilities depends on the platform and its version:
// modern mobile policies need location plus dedicated scan/connect grants,
// legacy ones only location, desktop hosts only the right to drive the
// controller. A denial is never an error; callers branch on Checker.Check.
package permission

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Capability is a named platform grant.
type Capability string

const (
	FineLocation     Capability = "fine_location"
	BluetoothScan    Capability = "bluetooth_scan"
	BluetoothConnect Capability = "bluetooth_connect"
)

// Result is the outcome of a single capability request.
type Result int

const (
	Denied Result = iota
	Granted
	Unavailable
)

func (r Result) String() string {
	switch r {
	case Granted:
		return "granted"
	case Unavailable:
		return "unavailable"
	default:
		return "denied"
	}
}

// ModernAPILevel is the first mobile API level with dedicated Bluetooth scan/connect grants.
const ModernAPILevel = 31

// Platform identifies the host OS and, where relevant, its API level.
type Platform struct {
	OS       string
	APILevel int
}

// HostPlatform returns the platform the binary runs on.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS}
}

// Requirements returns the capabilities that must all be granted before scanning.
func Requirements(p Platform) []Capability {
	switch p.OS {
	case "android":
		if p.APILevel >= ModernAPILevel {
			return []Capability{BluetoothScan, BluetoothConnect, FineLocation}
		}
		return []Capability{FineLocation}
	case "linux", "darwin":
		return []Capability{BluetoothScan}
	default:
		return nil
	}
}

// Requester asks the platform for a set of capabilities.
type Requester interface {
	RequestMultiple(ctx context.Context, caps []Capability) (map[Capability]Result, error)
}

// Checker combines a platform's requirements with a Requester.
type Checker struct {
	requester Requester
	required  []Capability
	logger    *logrus.Logger
}

// NewChecker creates a checker requiring caps from requester.
func NewChecker(requester Requester, required []Capability, logger *logrus.Logger) *Checker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Checker{requester: requester, required: required, logger: logger}
}

// NewHostChecker creates a checker for the running host.
func NewHostChecker(logger *logrus.Logger) *Checker {
	return NewChecker(NewHostRequester(), Requirements(HostPlatform()), logger)
}

// Required returns the capabilities this checker requests.
func (c *Checker) Required() []Capability {
	return append([]Capability(nil), c.required...)
}

// Check requests all required capabilities and reports whether every one was granted.
// A request failure counts as a denial.
func (c *Checker) Check(ctx context.Context) bool {
	if len(c.required) == 0 {
		return true
	}

	results, err := c.requester.RequestMultiple(ctx, c.required)
	if err != nil {
		c.logger.WithError(err).Warn("Permission request failed")
		return false
	}

	granted := true
	for _, capability := range c.required {
		res := results[capability]
		if res != Granted {
			granted = false
			c.logger.WithFields(logrus.Fields{
				"capability": capability,
				"result":     res,
			}).Warn("Bluetooth permission not granted")
		}
	}
	return granted
}

// Static is a Requester answering from a fixed table; missing capabilities are denied.
type Static map[Capability]Result

// GrantAll returns a Static requester granting every known capability.
func GrantAll() Static {
	return Static{FineLocation: Granted, BluetoothScan: Granted, BluetoothConnect: Granted}
}

// DenyAll returns a Static requester denying everything.
func DenyAll() Static {
	return Static{}
}

// RequestMultiple implements Requester.
func (s Static) RequestMultiple(_ context.Context, caps []Capability) (map[Capability]Result, error) {
	out := make(map[Capability]Result, len(caps))
	for _, c := range caps {
		out[c] = s[c]
	}
	return out, nil
}

// Mode selects how the scan permission is decided.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeGranted Mode = "granted"
	ModeDenied  Mode = "denied"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeGranted, ModeDenied:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("invalid permission mode %q (must be auto, granted, or denied)", s)
	}
}

// NewModeChecker creates a host checker whose answers may be overridden by mode.
func NewModeChecker(mode Mode, logger *logrus.Logger) *Checker {
	required := Requirements(HostPlatform())
	switch mode {
	case ModeGranted:
		return NewChecker(GrantAll(), required, logger)
	case ModeDenied:
		if len(required) == 0 {
			required = []Capability{BluetoothScan}
		}
		return NewChecker(DenyAll(), required, logger)
	default:
		return NewChecker(NewHostRequester(), required, logger)
	}
}
