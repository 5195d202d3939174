package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/srg/glitch/internal/device"
)

// FakeScanner is a device.Scanner driven by the test.
//
// Scan replays Replay, then blocks until the context is done or Fail is
// called. Emit delivers an advertisement to the running scan synchronously.
type FakeScanner struct {
	Replay []device.Advertisement
	// StartErr is returned immediately from Scan when set.
	StartErr error

	mu       sync.Mutex
	handler  func(device.Advertisement)
	calls    int
	allowDup []bool
	running  chan struct{}
	fail     chan error
}

var _ device.Scanner = (*FakeScanner)(nil)

// NewFakeScanner creates a scanner that replays ads on every scan.
func NewFakeScanner(ads ...device.Advertisement) *FakeScanner {
	return &FakeScanner{Replay: ads, running: make(chan struct{}, 16)}
}

func (f *FakeScanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	f.mu.Lock()
	f.calls++
	f.allowDup = append(f.allowDup, allowDup)
	if f.StartErr != nil {
		err := f.StartErr
		f.mu.Unlock()
		return err
	}
	fail := make(chan error, 1)
	f.handler, f.fail = handler, fail
	replay := append([]device.Advertisement(nil), f.Replay...)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		if f.fail == fail {
			f.handler, f.fail = nil, nil
		}
		f.mu.Unlock()
	}()

	for _, adv := range replay {
		handler(adv)
	}

	if f.running != nil {
		select {
		case f.running <- struct{}{}:
		default:
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-fail:
		return err
	}
}

// Emit delivers adv to the active scan. Returns false when no scan runs.
func (f *FakeScanner) Emit(adv device.Advertisement) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(adv)
	return true
}

// Handler returns the callback of the active scan, or nil.
func (f *FakeScanner) Handler() func(device.Advertisement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

// Fail ends the active scan with err, as if the stack reported a failure.
func (f *FakeScanner) Fail(err error) bool {
	f.mu.Lock()
	ch := f.fail
	f.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- err:
		return true
	default:
		return false
	}
}

// Active reports whether a scan is currently running.
func (f *FakeScanner) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// Calls returns how many times Scan was invoked.
func (f *FakeScanner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// AllowDuplicates returns the allowDup flag of every Scan call.
func (f *FakeScanner) AllowDuplicates() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.allowDup...)
}

// WaitRunning waits until a scan has replayed its advertisements and is
// blocked on its context.
func (f *FakeScanner) WaitRunning(timeout time.Duration) bool {
	select {
	case <-f.running:
		return true
	case <-time.After(timeout):
		return false
	}
}
