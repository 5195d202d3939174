//go:build darwin

package permission

import "context"

// hostRequester grants everything: CoreBluetooth shows its own prompt on first
// use and reports a refusal as an unauthorized central manager state.
type hostRequester struct{}

// NewHostRequester returns the Requester for the running host.
func NewHostRequester() Requester {
	return hostRequester{}
}

// RequestMultiple implements Requester.
func (hostRequester) RequestMultiple(_ context.Context, caps []Capability) (map[Capability]Result, error) {
	out := make(map[Capability]Result, len(caps))
	for _, c := range caps {
		out[c] = Granted
	}
	return out, nil
}
