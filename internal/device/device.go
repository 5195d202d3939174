package device

import (
	"context"
	"errors"
)

// Adapter errors
var (
	ErrBluetoothOff = errors.New("bluetooth is turned off")
	ErrUnsupported  = errors.New("bluetooth is not supported on this platform")
)

// PowerState is the adapter power state reported by the Bluetooth stack.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PoweredOff
	PoweredOn
)

func (s PowerState) String() string {
	switch s {
	case PoweredOff:
		return "PoweredOff"
	case PoweredOn:
		return "PoweredOn"
	default:
		return "Unknown"
	}
}

// ServiceData is a single service data entry of an advertisement.
type ServiceData struct {
	UUID string
	Data []byte
}

// Advertisement is a read-only view of a received BLE advertisement.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	ServiceData() []ServiceData
	Services() []string
	TxPowerLevel() int
	Connectable() bool

	RSSI() int
	Addr() string
}

// Scanner represents a BLE device capable of scanning for advertisements.
//
// Scan blocks until ctx is done or the hardware scan fails. The handler is
// invoked once per received advertisement, from a single goroutine.
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// PowerMonitor reports adapter power transitions.
//
// WatchPower invokes fn with the current state once it is known and then on
// every change, until ctx is done.
type PowerMonitor interface {
	WatchPower(ctx context.Context, fn func(PowerState)) error
}

// TxPowerUnavailable is the advertised TX power level meaning "not present".
const TxPowerUnavailable = 127
