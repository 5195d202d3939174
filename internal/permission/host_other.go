//go:build !linux && !darwin

package permission

import "context"

type hostRequester struct{}

// NewHostRequester returns the Requester for the running host.
func NewHostRequester() Requester {
	return hostRequester{}
}

// RequestMultiple implements Requester. No Bluetooth backend exists here.
func (hostRequester) RequestMultiple(_ context.Context, caps []Capability) (map[Capability]Result, error) {
	out := make(map[Capability]Result, len(caps))
	for _, c := range caps {
		out[c] = Unavailable
	}
	return out, nil
}
