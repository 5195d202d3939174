package scanner

import (
	"sync"
	"time"
)

// EventType identifies what changed in a session.
type EventType int

const (
	EventDiscovered EventType = iota
	EventUpdated
	EventStateChanged
	EventScanError
)

func (t EventType) String() string {
	switch t {
	case EventDiscovered:
		return "discovered"
	case EventUpdated:
		return "updated"
	case EventStateChanged:
		return "state_changed"
	case EventScanError:
		return "scan_error"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers in emission order.
type Event struct {
	Type       EventType
	Time       time.Time
	Peripheral Peripheral // EventDiscovered, EventUpdated
	State      State      // EventStateChanged: the new state
	Err        error      // EventScanError
	// Terminal is set on an EventScanError that ended the hardware scan.
	Terminal bool
}

// Subscription is the handle returned by Session.Subscribe.
type Subscription struct {
	once   sync.Once
	remove func()
}

// Remove unregisters the handler. Safe to call more than once.
func (s *Subscription) Remove() {
	if s == nil {
		return
	}
	s.once.Do(s.remove)
}
