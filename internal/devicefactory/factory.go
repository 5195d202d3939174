// Package devicefactory assembles a scan session for the host platform.
package devicefactory

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/glitch/internal/device"
	goble "github.com/srg/glitch/internal/device/go-ble"
	"github.com/srg/glitch/internal/permission"
	"github.com/srg/glitch/scanner"
)

// PowerMonitor is a device.PowerMonitor that can be told the adapter went off.
type PowerMonitor interface {
	device.PowerMonitor
	Reset()
}

// ScannerFactory creates the platform scanner.
// This is a variable so that it can be overridden in tests.
var ScannerFactory = func() (device.Scanner, error) {
	return goble.NewScanner()
}

// PowerMonitorFactory creates the adapter power monitor.
// This is a variable so that it can be overridden in tests.
var PowerMonitorFactory = func(interval time.Duration, logger *logrus.Logger) PowerMonitor {
	return goble.NewPowerMonitor(interval, logger)
}

// SessionConfig selects how the session scans.
type SessionConfig struct {
	AllowDuplicates   bool
	PowerPollInterval time.Duration
	Permissions       permission.Mode
}

// NewSession creates a session backed by the platform scanner. On platforms
// without BLE support the session has no scanner and the monitor is nil.
func NewSession(cfg SessionConfig, logger *logrus.Logger) (*scanner.Session, PowerMonitor, error) {
	if logger == nil {
		logger = logrus.New()
	}

	sc, err := ScannerFactory()
	if err != nil && !errors.Is(err, device.ErrUnsupported) {
		return nil, nil, err
	}

	opts := scanner.Options{
		AllowDuplicates: cfg.AllowDuplicates,
		Permissions:     permission.NewModeChecker(cfg.Permissions, logger),
		Logger:          logger,
	}
	if sc == nil {
		logger.Warn("BLE is not supported on this platform")
		return scanner.NewSession(opts), nil, nil
	}
	opts.Scanner = sc

	session := scanner.NewSession(opts)
	monitor := PowerMonitorFactory(cfg.PowerPollInterval, logger)

	// A scan that died with the adapter off hands control back to the
	// monitor so the scan restarts once the adapter comes back.
	session.Subscribe(func(ev scanner.Event) {
		if ev.Type == scanner.EventScanError && ev.Terminal && errors.Is(ev.Err, device.ErrBluetoothOff) {
			monitor.Reset()
		}
	})

	return session, monitor, nil
}
