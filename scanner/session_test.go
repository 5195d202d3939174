package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srg/glitch/internal/device"
	"github.com/srg/glitch/internal/testutils"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) types() []EventType {
	var out []EventType
	for _, ev := range r.all() {
		out = append(out, ev.Type)
	}
	return out
}

func (r *eventRecorder) ofType(t EventType) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type staticPermissions bool

func (p staticPermissions) Check(context.Context) bool { return bool(p) }

// panickingAdv has no implementation behind its methods.
type panickingAdv struct {
	device.Advertisement
}

// lingeringScanner keeps the hardware scan open for a while after it was
// asked to stop, and records how many scans were open at once.
type lingeringScanner struct {
	linger  time.Duration
	started chan struct{}

	mu      sync.Mutex
	open    int
	maxOpen int
}

func newLingeringScanner(linger time.Duration) *lingeringScanner {
	return &lingeringScanner{linger: linger, started: make(chan struct{}, 8)}
}

func (l *lingeringScanner) Scan(ctx context.Context, _ bool, _ func(device.Advertisement)) error {
	l.mu.Lock()
	l.open++
	l.maxOpen = max(l.maxOpen, l.open)
	l.mu.Unlock()
	l.started <- struct{}{}

	<-ctx.Done()
	time.Sleep(l.linger)

	l.mu.Lock()
	l.open--
	l.mu.Unlock()
	return ctx.Err()
}

func (l *lingeringScanner) counts() (open, maxOpen int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open, l.maxOpen
}

type SessionTestSuite struct {
	suite.Suite
	helper  *testutils.TestHelper
	fake    *testutils.FakeScanner
	session *Session
	events  *eventRecorder
}

func (s *SessionTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.fake = testutils.NewFakeScanner()
	s.session = s.newSession(Options{Scanner: s.fake})
	s.events = &eventRecorder{}
	s.session.Subscribe(s.events.record)
}

func (s *SessionTestSuite) TearDownTest() {
	s.session.Close()
}

func (s *SessionTestSuite) newSession(opts Options) *Session {
	opts.Logger = s.helper.Logger
	opts.Now = testutils.FixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	return NewSession(opts)
}

func (s *SessionTestSuite) startScan() {
	s.Require().NoError(s.session.StartScan(context.Background()), "StartScan MUST succeed")
	s.Require().True(s.fake.WaitRunning(time.Second), "hardware scan MUST be running")
}

func (s *SessionTestSuite) eventually(cond func() bool, msg string) {
	s.Require().True(testutils.Eventually(cond, 2*time.Second), msg)
}

func (s *SessionTestSuite) TestDeduplicatesByIdentity() {
	// GOAL: Verify that repeated advertisements update one record in place
	//
	// TEST SCENARIO: A/Foo/-60, B/-80, A/Foo/-55 → [{A,Foo,-55},{B,unknown,-80}]

	s.startScan()

	s.session.Observe(testutils.Adv("A", "Foo", -60))
	s.session.Observe(testutils.Adv("B", "", -80))
	s.session.Observe(testutils.Adv("A", "Foo", -55))

	got := s.session.Peripherals()
	s.Require().Len(got, 2, "MUST hold one record per identity")

	s.Equal("A", got[0].ID)
	s.Equal("Foo", got[0].Name)
	s.Equal(-55, got[0].RSSI, "RSSI MUST follow the latest sighting")
	s.Equal(2, got[0].Seen)

	s.Equal("B", got[1].ID)
	s.Equal("", got[1].Name)
	s.Equal(UnknownName, got[1].DisplayName(), "nameless device MUST display as unknown")
	s.Equal(-80, got[1].RSSI)

	testutils.NewJSONAsserter(s.T(), testutils.WithIgnoreExtraKeys(true)).AssertValue(got, `[
		{"id": "A", "name": "Foo", "rssi": -55, "firstSeen": "<<PRESENCE>>"},
		{"id": "B", "rssi": -80}
	]`)
}

func (s *SessionTestSuite) TestKeepsFirstSeenOrder() {
	s.startScan()

	for _, id := range []string{"C", "A", "B", "A", "C", "B"} {
		s.session.Observe(testutils.Adv(id, "", -70))
	}

	var ids []string
	for _, p := range s.session.Peripherals() {
		ids = append(ids, p.ID)
	}
	s.Equal([]string{"C", "A", "B"}, ids, "updates MUST NOT reorder the list")
	s.Equal(3, s.session.Len())
}

func (s *SessionTestSuite) TestIdentityIsAddressNotName() {
	s.startScan()

	s.session.Observe(testutils.Adv("A", "Same", -60))
	s.session.Observe(testutils.Adv("B", "Same", -60))

	s.Equal(2, s.session.Len(), "devices sharing a name MUST stay distinct")
}

func (s *SessionTestSuite) TestHardwareAdvertisementsReachRegistry() {
	s.fake.Replay = []device.Advertisement{
		testutils.Adv("A", "Foo", -60),
		testutils.Adv("B", "Bar", -70),
	}
	s.startScan()

	s.Equal(2, s.session.Len(), "replayed advertisements MUST be recorded")
	s.True(s.fake.Emit(testutils.Adv("A", "Foo", -40)))

	p, ok := s.session.Peripheral("A")
	s.Require().True(ok)
	s.Equal(-40, p.RSSI)
	s.Equal([]bool{false}, s.fake.AllowDuplicates(), "allowDup MUST be forwarded")
}

func (s *SessionTestSuite) TestObserveIgnoredWhenNotScanning() {
	s.session.Observe(testutils.Adv("A", "Foo", -60))
	s.Equal(0, s.session.Len(), "Idle session MUST ignore observations")

	s.startScan()
	s.session.Observe(testutils.Adv("A", "Foo", -60))
	s.session.StopScan()

	s.session.Observe(testutils.Adv("B", "Bar", -60))
	s.Equal(1, s.session.Len(), "stopped scan MUST NOT grow the list")
	s.Equal(Idle, s.session.State())
}

func (s *SessionTestSuite) TestStartScanClearsPreviousResults() {
	s.startScan()
	s.session.Observe(testutils.Adv("A", "Foo", -60))
	s.session.StopScan()
	s.Equal(1, s.session.Len(), "results MUST be retained after stop")

	s.startScan()
	s.Equal(0, s.session.Len(), "a new scan MUST start from an empty list")
}

func (s *SessionTestSuite) TestStartScanWhileScanningIsNoop() {
	s.startScan()
	s.session.Observe(testutils.Adv("A", "Foo", -60))

	s.Require().NoError(s.session.StartScan(context.Background()))

	s.Equal(1, s.fake.Calls(), "MUST NOT open a second hardware scan")
	s.Equal(1, s.session.Len(), "MUST NOT clear results")
}

func (s *SessionTestSuite) TestStopScanReleasesHardware() {
	s.startScan()
	s.True(s.session.IsScanning())

	s.session.StopScan()

	s.False(s.fake.Active(), "StopScan MUST return after the hardware scan ended")
	s.False(s.session.IsScanning())

	s.session.StopScan()
	s.Equal(1, s.fake.Calls(), "repeated StopScan MUST be harmless")
}

func (s *SessionTestSuite) TestCallerContextDoesNotEndScan() {
	ctx, cancel := context.WithCancel(context.Background())
	s.Require().NoError(s.session.StartScan(ctx))
	s.Require().True(s.fake.WaitRunning(time.Second))

	cancel()
	time.Sleep(20 * time.Millisecond)

	s.True(s.fake.Active(), "scan MUST outlive the starting context")
	s.True(s.session.IsScanning())
}

func (s *SessionTestSuite) TestPermissionDenied() {
	session := s.newSession(Options{Scanner: s.fake, Permissions: staticPermissions(false)})
	defer session.Close()

	s.False(session.RequestScanPermission(context.Background()))

	err := session.StartScan(context.Background())
	s.ErrorIs(err, ErrPermissionDenied)
	s.Equal(Idle, session.State())
	s.Equal(0, s.fake.Calls(), "hardware MUST NOT be touched without permission")
}

func (s *SessionTestSuite) TestPermissionGranted() {
	session := s.newSession(Options{Scanner: s.fake, Permissions: staticPermissions(true)})
	defer session.Close()

	s.True(session.RequestScanPermission(context.Background()))
	s.NoError(session.StartScan(context.Background()))
	s.True(session.IsScanning())
}

func (s *SessionTestSuite) TestUnsupportedPlatform() {
	session := s.newSession(Options{})
	defer session.Close()

	s.False(session.Supported())
	s.ErrorIs(session.StartScan(context.Background()), device.ErrUnsupported)
	s.Equal(Idle, session.State())
}

func (s *SessionTestSuite) TestCloseTearsDown() {
	s.startScan()
	s.session.Observe(testutils.Adv("A", "Foo", -60))

	s.session.Close()
	s.session.Close()

	s.Equal(Stopped, s.session.State())
	s.False(s.fake.Active(), "Close MUST release the hardware scan")
	s.ErrorIs(s.session.StartScan(context.Background()), ErrSessionClosed)
	s.Equal(1, s.session.Len(), "records MUST remain readable after Close")

	before := len(s.events.all())
	s.NoError(s.session.OnAdapterPowerChanged(context.Background(), device.PoweredOff))
	s.Equal(before, len(s.events.all()), "closed session MUST NOT deliver events")
}

func (s *SessionTestSuite) TestAdapterPowerFollowsState() {
	ctx := context.Background()

	s.Require().NoError(s.session.OnAdapterPowerChanged(ctx, device.PoweredOn))
	s.Require().True(s.fake.WaitRunning(time.Second))
	s.True(s.session.IsScanning(), "power on MUST start scanning")
	s.Equal(device.PoweredOn, s.session.PowerState())

	s.Require().NoError(s.session.OnAdapterPowerChanged(ctx, device.PoweredOn))
	s.Equal(1, s.fake.Calls(), "unchanged power MUST NOT restart the scan")

	s.session.Observe(testutils.Adv("A", "Foo", -60))
	s.Require().NoError(s.session.OnAdapterPowerChanged(ctx, device.PoweredOff))
	s.False(s.session.IsScanning(), "power off MUST stop scanning")
	s.False(s.fake.Active())
	s.Equal(1, s.session.Len(), "power off MUST keep results")

	s.Require().NoError(s.session.OnAdapterPowerChanged(ctx, device.PoweredOn))
	s.Require().True(s.fake.WaitRunning(time.Second))
	s.Equal(2, s.fake.Calls(), "power on again MUST start a new scan")
}

func (s *SessionTestSuite) TestAdapterPowerOnPropagatesStartError() {
	session := s.newSession(Options{Scanner: s.fake, Permissions: staticPermissions(false)})
	defer session.Close()

	err := session.OnAdapterPowerChanged(context.Background(), device.PoweredOn)
	s.ErrorIs(err, ErrPermissionDenied)
}

func (s *SessionTestSuite) TestHardwareFailureEndsScan() {
	// GOAL: Verify that a scan ending on its own is reported and leaves the
	// session restartable with results retained
	s.startScan()
	s.session.Observe(testutils.Adv("A", "Foo", -60))

	s.Require().True(s.fake.Fail(device.ErrBluetoothOff))

	s.eventually(func() bool { return len(s.events.ofType(EventScanError)) == 1 }, "terminal error MUST be emitted")
	ev := s.events.ofType(EventScanError)[0]
	s.True(ev.Terminal, "error MUST be marked terminal")
	s.ErrorIs(ev.Err, device.ErrBluetoothOff)

	s.eventually(func() bool { return s.session.State() == Idle }, "session MUST return to Idle")
	s.Equal(device.PoweredOff, s.session.PowerState(), "bluetooth off MUST be remembered")
	s.Equal(1, s.session.Len())

	s.startScan()
	s.Equal(2, s.fake.Calls())
}

func (s *SessionTestSuite) TestStaleCallbacksAreDiscarded() {
	s.startScan()
	stale := s.fake.Handler()
	s.Require().NotNil(stale)

	s.session.StopScan()
	s.startScan()

	stale(testutils.Adv("OLD", "Ghost", -50))
	s.Equal(0, s.session.Len(), "callbacks of a superseded scan MUST be ignored")

	s.True(s.fake.Emit(testutils.Adv("NEW", "Live", -50)))
	s.Equal(1, s.session.Len())
}

func (s *SessionTestSuite) TestInvalidAdvertisementsAreReported() {
	s.startScan()

	s.session.Observe(nil)
	s.session.Observe(testutils.Adv("", "NoAddr", -60))
	s.session.Observe(panickingAdv{})

	errs := s.events.ofType(EventScanError)
	s.Require().Len(errs, 3, "each bad advertisement MUST be reported")
	for _, ev := range errs {
		s.ErrorIs(ev.Err, ErrInvalidAdvertisement)
		s.False(ev.Terminal, "a bad advertisement MUST NOT end the scan")
	}
	s.True(s.session.IsScanning())
	s.Equal(0, s.session.Len())
	s.Contains(s.helper.Logs(), "BLE scan callback error")
}

func (s *SessionTestSuite) TestEventSequence() {
	s.startScan()
	s.session.Observe(testutils.Adv("A", "Foo", -60))
	s.session.Observe(testutils.Adv("A", "Foo", -50))
	s.session.StopScan()

	s.Equal([]EventType{EventStateChanged, EventDiscovered, EventUpdated, EventStateChanged}, s.events.types())

	all := s.events.all()
	s.Equal(Scanning, all[0].State)
	s.Equal(-60, all[1].Peripheral.RSSI)
	s.Equal(-50, all[2].Peripheral.RSSI)
	s.Equal(Idle, all[3].State)
	for i := 1; i < len(all); i++ {
		s.False(all[i].Time.Before(all[i-1].Time), "event times MUST be monotonic")
	}
}

func (s *SessionTestSuite) TestSubscriptionRemove() {
	other := &eventRecorder{}
	sub := s.session.Subscribe(other.record)

	s.startScan()
	sub.Remove()
	sub.Remove()
	s.session.Observe(testutils.Adv("A", "Foo", -60))

	s.Equal([]EventType{EventStateChanged}, other.types(), "removed subscription MUST NOT receive events")
	s.Len(s.events.ofType(EventDiscovered), 1, "other subscribers MUST keep receiving")
}

func (s *SessionTestSuite) TestPanickingHandlerIsIsolated() {
	s.session.Subscribe(func(Event) { panic("boom") })

	s.startScan()
	s.session.Observe(testutils.Adv("A", "Foo", -60))

	s.Len(s.events.ofType(EventDiscovered), 1, "healthy subscribers MUST still receive events")
	s.Contains(s.helper.Logs(), "Session event handler panicked")
}

func (s *SessionTestSuite) TestEventsAreNeverConcurrent() {
	var (
		mu       sync.Mutex
		inside   bool
		overlaps int
	)
	s.session.Subscribe(func(Event) {
		mu.Lock()
		if inside {
			overlaps++
		}
		inside = true
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inside = false
		mu.Unlock()
	})

	s.startScan()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				s.session.Observe(testutils.Adv(fmt.Sprintf("dev-%d", i), "", -40-g))
			}
		}(g)
	}
	wg.Wait()

	s.Equal(10, s.session.Len(), "concurrent observations MUST deduplicate")
	s.Len(s.events.ofType(EventDiscovered), 10)
	s.Len(s.events.ofType(EventUpdated), 70)
	s.Zero(overlaps, "handlers MUST NOT run concurrently")
}

func (s *SessionTestSuite) TestStartScanErrorFromHardware() {
	s.fake.StartErr = errors.New("adapter busy")

	s.Require().NoError(s.session.StartScan(context.Background()), "StartScan MUST NOT wait for the scan")
	s.eventually(func() bool { return len(s.events.ofType(EventScanError)) == 1 }, "failure MUST be reported")
	s.eventually(func() bool { return s.session.State() == Idle }, "session MUST return to Idle")
	s.Equal(device.PowerUnknown, s.session.PowerState(), "other failures MUST NOT change power state")
}

func (s *SessionTestSuite) TestCloseWaitsForConcurrentStop() {
	hw := newLingeringScanner(200 * time.Millisecond)
	session := s.newSession(Options{Scanner: hw})
	s.Require().NoError(session.StartScan(context.Background()))
	<-hw.started

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		session.StopScan()
	}()
	time.Sleep(20 * time.Millisecond)

	session.Close()
	open, _ := hw.counts()
	s.Zero(open, "Close MUST NOT return while the hardware scan is still open")
	s.Equal(Stopped, session.State())
	<-stopped
}

func (s *SessionTestSuite) TestStartScanWaitsForPreviousScan() {
	hw := newLingeringScanner(200 * time.Millisecond)
	session := s.newSession(Options{Scanner: hw})
	defer session.Close()
	s.Require().NoError(session.StartScan(context.Background()))
	<-hw.started

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		session.StopScan()
	}()
	time.Sleep(20 * time.Millisecond)

	s.Require().NoError(session.StartScan(context.Background()))
	<-hw.started
	<-stopped

	open, maxOpen := hw.counts()
	s.Equal(1, open)
	s.Equal(1, maxOpen, "at most one hardware scan MUST be open at a time")
	s.True(session.IsScanning())
}

func (s *SessionTestSuite) TestConcurrentStopCallersAllWait() {
	hw := newLingeringScanner(100 * time.Millisecond)
	session := s.newSession(Options{Scanner: hw})
	defer session.Close()
	s.Require().NoError(session.StartScan(context.Background()))
	<-hw.started

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.StopScan()
			open, _ := hw.counts()
			s.Zero(open, "StopScan MUST NOT return before the hardware scan ended")
		}()
	}
	wg.Wait()
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
