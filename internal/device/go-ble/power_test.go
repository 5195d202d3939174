package goble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/glitch/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []device.PowerState
}

func (r *stateRecorder) record(s device.PowerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []device.PowerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]device.PowerState(nil), r.states...)
}

// scriptedProbe returns the scripted results in order, then repeats the last one.
type scriptedProbe struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (p *scriptedProbe) probe() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	return p.results[i]
}

func (p *scriptedProbe) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestPowerMonitor_ReportsTransitions(t *testing.T) {
	probe := &scriptedProbe{results: []error{device.ErrBluetoothOff, device.ErrBluetoothOff, nil}}
	m := NewProbeMonitor(probe.probe, 5*time.Millisecond, quietLogger())
	rec := &stateRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.WatchPower(ctx, rec.record) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []device.PowerState{device.PoweredOff, device.PoweredOn}, rec.snapshot(),
		"repeated identical probe results MUST NOT be re-reported")

	calls := probe.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, probe.count(), "a powered-on adapter MUST NOT be probed")

	cancel()
	assert.NoError(t, <-done)
}

func TestPowerMonitor_ResetResumesProbing(t *testing.T) {
	probe := &scriptedProbe{results: []error{nil}}
	m := NewProbeMonitor(probe.probe, 5*time.Millisecond, quietLogger())
	rec := &stateRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.WatchPower(ctx, rec.record) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)

	m.Reset()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []device.PowerState{device.PoweredOn, device.PoweredOn}, rec.snapshot(),
		"after Reset a successful probe MUST report PoweredOn again")
}

func TestPowerMonitor_Unsupported(t *testing.T) {
	m := NewProbeMonitor(func() error { return device.ErrUnsupported }, time.Millisecond, quietLogger())

	err := m.WatchPower(context.Background(), func(device.PowerState) {
		t.Fatal("no state MUST be reported for an unsupported platform")
	})

	assert.True(t, errors.Is(err, device.ErrUnsupported))
}
