package goble

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/glitch/internal/device"
)

// DefaultPowerPollInterval is how often an unavailable adapter is probed.
const DefaultPowerPollInterval = 2 * time.Second

// PowerMonitor implements device.PowerMonitor by probing the adapter.
//
// go-ble exposes no power-state notifications, so the adapter is considered
// powered on when it can be opened. While powered on the monitor stays quiet
// and does not touch the controller; Reset hands control back to probing after
// a scan reported the adapter off.
type PowerMonitor struct {
	probe    func() error
	interval time.Duration
	logger   *logrus.Logger
	resetCh  chan struct{}
}

// NewPowerMonitor creates a monitor probing the platform adapter.
func NewPowerMonitor(interval time.Duration, logger *logrus.Logger) *PowerMonitor {
	return NewProbeMonitor(probeDevice, interval, logger)
}

// NewProbeMonitor creates a monitor with a custom probe. A nil probe error means powered on.
func NewProbeMonitor(probe func() error, interval time.Duration, logger *logrus.Logger) *PowerMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = DefaultPowerPollInterval
	}
	return &PowerMonitor{
		probe:    probe,
		interval: interval,
		logger:   logger,
		resetCh:  make(chan struct{}, 1),
	}
}

func probeDevice() error {
	dev, err := DeviceFactory()
	if err != nil {
		return NormalizeError(err)
	}
	return dev.Stop()
}

// Reset marks the adapter as powered off without notifying, so probing resumes.
func (m *PowerMonitor) Reset() {
	select {
	case m.resetCh <- struct{}{}:
	default:
	}
}

// WatchPower reports the initial state and every change until ctx is done.
// Returns device.ErrUnsupported when the platform has no adapter at all.
func (m *PowerMonitor) WatchPower(ctx context.Context, fn func(device.PowerState)) error {
	state := device.PowerUnknown

	check := func() error {
		next := device.PoweredOn
		if err := m.probe(); err != nil {
			if errors.Is(err, device.ErrUnsupported) {
				return err
			}
			m.logger.WithError(err).Debug("Adapter probe failed")
			next = device.PoweredOff
		}
		if next != state {
			state = next
			m.logger.WithField("state", state).Info("Adapter power state changed")
			fn(state)
		}
		return nil
	}

	if err := check(); err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.resetCh:
			state = device.PoweredOff
		case <-ticker.C:
			if state == device.PoweredOn {
				continue
			}
			if err := check(); err != nil {
				return err
			}
		}
	}
}
