//go:build linux

package permission

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// hostRequester checks whether the process may open a raw HCI socket:
// root, or both CAP_NET_ADMIN and CAP_NET_RAW in the effective set.
type hostRequester struct {
	capabilities func() (uint64, error)
	euid         func() int
}

// NewHostRequester returns the Requester for the running host.
func NewHostRequester() Requester {
	return &hostRequester{capabilities: effectiveCapabilities, euid: os.Geteuid}
}

func effectiveCapabilities() (uint64, error) {
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return 0, fmt.Errorf("capget: %w", err)
	}
	return uint64(data[1].Effective)<<32 | uint64(data[0].Effective), nil
}

func (r *hostRequester) hciAllowed() (bool, error) {
	if r.euid() == 0 {
		return true, nil
	}
	caps, err := r.capabilities()
	if err != nil {
		return false, err
	}
	need := uint64(1)<<unix.CAP_NET_ADMIN | uint64(1)<<unix.CAP_NET_RAW
	return caps&need == need, nil
}

// RequestMultiple implements Requester. Linux has no interactive prompt; the
// answer reflects the current process credentials.
func (r *hostRequester) RequestMultiple(_ context.Context, caps []Capability) (map[Capability]Result, error) {
	allowed, err := r.hciAllowed()
	if err != nil {
		return nil, err
	}

	out := make(map[Capability]Result, len(caps))
	for _, c := range caps {
		switch c {
		case BluetoothScan, BluetoothConnect:
			if allowed {
				out[c] = Granted
			} else {
				out[c] = Denied
			}
		case FineLocation:
			out[c] = Granted
		default:
			out[c] = Unavailable
		}
	}
	return out, nil
}
