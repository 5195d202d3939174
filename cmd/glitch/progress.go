package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays progress messages with elapsed time.
//
// Usage:
//
//	p := NewProgressPrinter(w, ...)
//	p.Start()
//	defer p.Stop()
//
// The caller must call Stop to release resources and terminate the internal
// goroutine; failing to do so will leak a goroutine.
//
// A ProgressPrinter is single-use. Start may be called at most once, and Stop
// should be called exactly once. After Stop, the instance cannot be restarted.
type ProgressPrinter struct {
	w          io.Writer
	prefix     string
	phase      atomic.Value        // stores string - current phase name
	stopPhases map[string]struct{} // set of phases that trigger a graceful shutdown
	startTime  time.Time
	ticker     atomic.Pointer[time.Ticker]
	stopChan   chan struct{}
	done       chan struct{} // closed when goroutine exits
	started    atomic.Bool   // ensures Start is called at most once
	countUp    bool          // true for count up, false for countdown
	duration   time.Duration // for countdown mode
}

// NewProgressPrinter creates a progress printer that counts up (shows elapsed time).
// stopPhases are phase names that will trigger automatic cleanup when set via Callback.
func NewProgressPrinter(w io.Writer, prefix string, phase string, stopPhases ...string) *ProgressPrinter {
	p := newProgressPrinter(w, prefix, phase, stopPhases)
	p.countUp = true
	return p
}

// NewCountdownProgressPrinter creates a progress printer that counts down from the duration.
// stopPhases are phase names that will trigger automatic cleanup when set via Callback.
func NewCountdownProgressPrinter(w io.Writer, prefix string, phase string, duration time.Duration, stopPhases ...string) *ProgressPrinter {
	p := newProgressPrinter(w, prefix, phase, stopPhases)
	p.duration = duration
	return p
}

func newProgressPrinter(w io.Writer, prefix, phase string, stopPhases []string) *ProgressPrinter {
	stopSet := make(map[string]struct{})
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	if w == nil {
		w = io.Discard
	}
	p := &ProgressPrinter{
		w:          w,
		prefix:     prefix,
		stopPhases: stopSet,
	}
	p.phase.Store(phase)
	return p
}

// Start begins displaying progress updates in a background goroutine.
// Panics if called more than once on the same ProgressPrinter instance.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	p.startProgressLoop(ticker)
}

// printProgress displays a progress line with optional elapsed/remaining seconds
func (p *ProgressPrinter) printProgress(phase string, seconds int) {
	if seconds > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, phase)
	}
}

func (p *ProgressPrinter) secondsAt(elapsed time.Duration) int {
	if p.countUp {
		return int(elapsed.Seconds())
	}
	remaining := p.duration - elapsed
	if remaining <= 0 {
		// Show 0s when countdown completes (don't auto-stop)
		return 0
	}
	// Round to the nearest second, e.g. 3.7s -> 4s, 3.3s -> 3s
	return int(remaining.Seconds() + 0.5)
}

func (p *ProgressPrinter) startProgressLoop(ticker *time.Ticker) {
	p.printProgress(p.phase.Load().(string), 0)

	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(p.w, "\nprogress printer panic: %v\n", r)
			}
		}()

		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				currentPhase := p.phase.Load().(string)
				if _, isStopPhase := p.stopPhases[currentPhase]; isStopPhase {
					return
				}
				p.printProgress(currentPhase, p.secondsAt(time.Since(p.startTime)))
			}
		}
	}()
}

// Callback returns a progress callback function that updates the phase.
// If the new phase is a stop phase, Stop() is called automatically.
// This function is safe to call from multiple goroutines.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, isStopPhase := p.stopPhases[phase]; isStopPhase {
			p.Stop()
		}
	}
}

// Stop stops the progress display and clears the line.
// Safe to call multiple times and from multiple goroutines; only the first
// call stops the ticker, waits for the goroutine and clears the line.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Fprint(p.w, clearLineSequence)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
