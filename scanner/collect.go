package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/srg/glitch/internal/device"
)

// CollectOptions controls a bounded scan.
type CollectOptions struct {
	// Duration bounds the scan; zero means until ctx is done.
	Duration time.Duration
	// OnEvent, when set, is subscribed for the duration of the scan.
	OnEvent func(Event)
}

// Collect runs one scan on s until the duration elapses or ctx is done and
// returns the peripherals discovered. A scan that fails on its own returns
// the peripherals found so far together with the failure.
func Collect(ctx context.Context, s *Session, opts CollectOptions) ([]Peripheral, error) {
	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	failed := make(chan error, 1)
	sub := s.Subscribe(func(ev Event) {
		if opts.OnEvent != nil {
			opts.OnEvent(ev)
		}
		if ev.Type == EventScanError && ev.Terminal {
			select {
			case failed <- ev.Err:
			default:
			}
		}
	})
	defer sub.Remove()

	if err := s.StartScan(ctx); err != nil {
		return nil, err
	}

	var scanErr error
	select {
	case <-scanCtx.Done():
	case scanErr = <-failed:
	}
	s.StopScan()

	if scanErr == nil && errors.Is(ctx.Err(), context.Canceled) {
		scanErr = ctx.Err()
	}
	return s.Peripherals(), scanErr
}

// Watch starts a scan and keeps it running until ctx is done. Powered-off
// adapters are followed through monitor when one is given; a scan that
// cannot be reopened after power returns is reported to subscribers as a
// terminal EventScanError.
func Watch(ctx context.Context, s *Session, monitor device.PowerMonitor) error {
	if monitor == nil {
		if err := s.StartScan(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		s.StopScan()
		return nil
	}

	err := monitor.WatchPower(ctx, func(state device.PowerState) {
		err := s.OnAdapterPowerChanged(ctx, state)
		if err != nil && !errors.Is(err, ErrSessionClosed) {
			s.reportStartError(err)
		}
	})
	s.StopScan()
	return err
}
