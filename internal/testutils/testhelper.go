package testutils

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// TestHelper bundles a logger that captures output for assertions.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestHelper creates a helper with a debug-level logger writing to an
// in-memory buffer.
func NewTestHelper(t *testing.T) *TestHelper {
	h := &TestHelper{T: t}
	h.Logger = logrus.New()
	h.Logger.SetLevel(logrus.DebugLevel)
	h.Logger.SetOutput(lockedWriter{h})
	h.Logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	return h
}

// Logs returns everything logged so far.
func (h *TestHelper) Logs() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type lockedWriter struct{ h *TestHelper }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.h.mu.Lock()
	defer w.h.mu.Unlock()
	return w.h.buf.Write(p)
}

// FixedClock returns a deterministic clock advancing by step per call.
func FixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}
