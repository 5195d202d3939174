// Package scanner maintains a deduplicated, continuously updated list of BLE
// peripherals discovered during one scan session.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/glitch/internal/device"
	"github.com/srg/glitch/internal/groutine"
)

// State is the lifecycle state of a Session.
type State int

const (
	Idle State = iota
	Scanning
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrPermissionDenied     = errors.New("bluetooth scan permission denied")
	ErrSessionClosed        = errors.New("scan session closed")
	ErrInvalidAdvertisement = errors.New("invalid advertisement")
)

// PermissionChecker gates StartScan. permission.Checker implements it.
type PermissionChecker interface {
	Check(ctx context.Context) bool
}

// Options configures a Session.
type Options struct {
	// Scanner is the hardware scan primitive. Nil means the platform has no
	// BLE capability: StartScan returns device.ErrUnsupported.
	Scanner device.Scanner
	// Permissions gates StartScan. Nil means always granted.
	Permissions PermissionChecker
	// AllowDuplicates asks the stack to report every advertisement rather than
	// the first per device, so signal strength keeps updating.
	AllowDuplicates bool
	Logger          *logrus.Logger
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Session owns one BLE scan subscription and the peripherals it discovered.
//
// Peripherals are unique by ID and kept in first-seen order; a re-observation
// updates the existing record in place. Events are delivered to subscribers
// in emission order and never concurrently. Handlers must not call StartScan,
// StopScan, OnAdapterPowerChanged or Close synchronously.
type Session struct {
	scanner  device.Scanner
	perms    PermissionChecker
	allowDup bool
	logger   *logrus.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      State
	power      device.PowerState
	records    *orderedmap.OrderedMap[string, Peripheral]
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	pending    []Event

	dispatchMu sync.Mutex
	subs       *hashmap.Map[uint64, func(Event)]
	nextSubID  atomic.Uint64
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		scanner:  opts.Scanner,
		perms:    opts.Permissions,
		allowDup: opts.AllowDuplicates,
		logger:   opts.Logger,
		now:      opts.Now,
		records:  orderedmap.New[string, Peripheral](),
		subs:     hashmap.New[uint64, func(Event)](),
	}
}

// Supported reports whether the session has a hardware scanner.
func (s *Session) Supported() bool {
	return s.scanner != nil
}

// RequestScanPermission asks the platform for the scan grants.
func (s *Session) RequestScanPermission(ctx context.Context) bool {
	if s.perms == nil {
		return true
	}
	return s.perms.Check(ctx)
}

// StartScan clears the peripheral list and opens the hardware scan.
// It is a no-op while already scanning and does not wait for results.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Stopped:
		s.mu.Unlock()
		return ErrSessionClosed
	case Scanning:
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if s.scanner == nil {
		return device.ErrUnsupported
	}
	if !s.RequestScanPermission(ctx) {
		s.logger.Warn("BLE scan not started: permission denied")
		return ErrPermissionDenied
	}

	s.mu.Lock()
	for s.state == Idle && s.done != nil {
		// The previous hardware scan is still shutting down.
		done := s.done
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}
	switch s.state {
	case Stopped:
		s.mu.Unlock()
		return ErrSessionClosed
	case Scanning:
		s.mu.Unlock()
		return nil
	}

	s.records = orderedmap.New[string, Peripheral]()
	s.generation++
	gen := s.generation

	// The scan outlives the caller's context; only StopScan and Close end it.
	scanCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.setStateLocked(Scanning)
	s.mu.Unlock()

	s.logger.WithField("allow_duplicates", s.allowDup).Info("Starting BLE scan...")

	groutine.Go(scanCtx, "ble-scan", func(ctx context.Context) {
		defer func() {
			s.mu.Lock()
			if s.done == done {
				s.done = nil
			}
			s.mu.Unlock()
			close(done)
		}()
		s.run(ctx, gen)
	})

	s.flush()
	return nil
}

// run drives the hardware scan for one generation.
func (s *Session) run(ctx context.Context, gen uint64) {
	err := s.scanner.Scan(ctx, s.allowDup, func(adv device.Advertisement) {
		s.observe(gen, adv)
	})
	if ctx.Err() != nil {
		// stopped by StopScan or Close
		return
	}

	s.mu.Lock()
	if s.generation != gen || s.state != Scanning {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil

	if err != nil {
		s.logger.WithError(err).Error("BLE scan terminated")
		if errors.Is(err, device.ErrBluetoothOff) {
			s.power = device.PoweredOff
		}
		s.emitLocked(Event{Type: EventScanError, Err: err, Terminal: true})
	} else {
		s.logger.Warn("BLE scan ended without being stopped")
	}
	s.setStateLocked(Idle)
	s.mu.Unlock()

	s.flush()
}

// Observe records one advertisement for the current scan. It never panics;
// an unusable advertisement is logged, reported as EventScanError, and the
// scan continues. Observations outside the Scanning state are ignored.
func (s *Session) Observe(adv device.Advertisement) {
	s.observe(0, adv)
}

// observe applies adv for scan generation gen (0 means current).
func (s *Session) observe(gen uint64, adv device.Advertisement) {
	defer func() {
		if r := recover(); r != nil {
			s.reportObservationError(gen, fmt.Errorf("%w: %v", ErrInvalidAdvertisement, r))
		}
	}()

	if adv == nil {
		s.reportObservationError(gen, fmt.Errorf("%w: nil advertisement", ErrInvalidAdvertisement))
		return
	}
	sg := readSighting(adv)
	if sg.id == "" {
		s.reportObservationError(gen, fmt.Errorf("%w: missing address", ErrInvalidAdvertisement))
		return
	}

	s.mu.Lock()
	if !s.acceptsLocked(gen) {
		s.mu.Unlock()
		return
	}

	now := s.now()
	if existing, ok := s.records.Get(sg.id); ok {
		updated := existing.merge(sg, now)
		s.records.Set(sg.id, updated)
		s.emitLocked(Event{Type: EventUpdated, Peripheral: updated})
		s.logger.WithFields(logrus.Fields{
			"device": updated.DisplayName(),
			"rssi":   updated.RSSI,
		}).Debug("Updated device")
	} else {
		p := newPeripheral(sg, now)
		s.records.Set(sg.id, p)
		s.emitLocked(Event{Type: EventDiscovered, Peripheral: p})
		s.logger.WithFields(logrus.Fields{
			"device":  p.DisplayName(),
			"address": p.ID,
			"rssi":    p.RSSI,
		}).Info("Discovered new device")
	}
	s.mu.Unlock()

	s.flush()
}

func (s *Session) acceptsLocked(gen uint64) bool {
	return s.state == Scanning && (gen == 0 || gen == s.generation)
}

func (s *Session) reportObservationError(gen uint64, err error) {
	s.logger.WithError(err).Warn("BLE scan callback error")

	s.mu.Lock()
	if !s.acceptsLocked(gen) {
		s.mu.Unlock()
		return
	}
	s.emitLocked(Event{Type: EventScanError, Err: err})
	s.mu.Unlock()

	s.flush()
}

// reportStartError tells subscribers why a scan the session was asked to
// open on its own could not start. No event follows a closed session.
func (s *Session) reportStartError(err error) {
	s.logger.WithError(err).Warn("Failed to start BLE scan")

	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.emitLocked(Event{Type: EventScanError, Err: err, Terminal: true})
	s.mu.Unlock()

	s.flush()
}

// StopScan releases the hardware scan and returns once it has stopped.
// The peripheral list is kept for display but no longer grows.
func (s *Session) StopScan() {
	s.stop(Idle)
}

// Close tears the session down: the scan is stopped, every subscription is
// removed, and later StartScan calls fail with ErrSessionClosed.
func (s *Session) Close() {
	s.stop(Stopped)

	var ids []uint64
	s.subs.Range(func(id uint64, _ func(Event)) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		s.subs.Del(id)
	}
}

func (s *Session) stop(target State) {
	s.mu.Lock()
	closed := s.state == Stopped
	// done stays published until the scan goroutine exits, so every caller
	// waits for the hardware scan and StartScan cannot open a second one.
	cancel, done := s.cancel, s.done
	s.cancel = nil
	wasScanning := s.state == Scanning
	if !closed && (wasScanning || target == Stopped) {
		s.setStateLocked(target)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if closed {
		return
	}
	if wasScanning {
		s.logger.WithField("device_count", s.Len()).Info("BLE scan stopped")
	}

	s.flush()
}

// OnAdapterPowerChanged reacts to adapter power transitions: powering on
// starts a scan, powering off stops it.
func (s *Session) OnAdapterPowerChanged(ctx context.Context, state device.PowerState) error {
	s.mu.Lock()
	prev := s.power
	s.power = state
	s.mu.Unlock()

	if state == prev {
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"from": prev,
		"to":   state,
	}).Debug("Adapter power changed")

	switch state {
	case device.PoweredOn:
		return s.StartScan(ctx)
	case device.PoweredOff:
		s.StopScan()
	}
	return nil
}

// Subscribe registers fn for session events.
func (s *Session) Subscribe(fn func(Event)) *Subscription {
	id := s.nextSubID.Add(1)
	s.subs.Set(id, fn)
	return &Subscription{remove: func() { s.subs.Del(id) }}
}

// Peripherals returns the discovered peripherals in first-seen order.
func (s *Session) Peripherals() []Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Peripheral, 0, s.records.Len())
	for pair := s.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Peripheral returns the record for id.
func (s *Session) Peripheral(id string) (Peripheral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Get(id)
}

// Len returns the number of discovered peripherals.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Len()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsScanning reports whether a hardware scan is active.
func (s *Session) IsScanning() bool {
	return s.State() == Scanning
}

// PowerState returns the last known adapter power state.
func (s *Session) PowerState() device.PowerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.emitLocked(Event{Type: EventStateChanged, State: st})
}

func (s *Session) emitLocked(ev Event) {
	ev.Time = s.now()
	s.pending = append(s.pending, ev)
}

// flush delivers pending events. dispatchMu serializes delivery across
// goroutines; the queue is drained in emission order.
func (s *Session) flush() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	for {
		s.mu.Lock()
		events := s.pending
		s.pending = nil
		s.mu.Unlock()

		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			s.subs.Range(func(_ uint64, fn func(Event)) bool {
				s.deliver(fn, ev)
				return true
			})
		}
	}
}

func (s *Session) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"event": ev.Type,
				"panic": r,
			}).Error("Session event handler panicked")
		}
	}()
	fn(ev)
}
