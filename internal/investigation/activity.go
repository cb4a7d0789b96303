package investigation

import (
	"github.com/google/uuid"
	"time"
)

// maxActivityEvents caps the activity log. Eviction from the head is the
// system's only backpressure mechanism: under a high event rate the oldest
// entries are discarded instead of growing memory without bound.
const maxActivityEvents = 100

// ActivityLog is a bounded, append-only, FIFO-evicted history of
// human-readable progress events.
//
// ActivityLog is not goroutine-safe. All mutation goes through the
// reconciliation engine.
type ActivityLog struct {
	events []ActivityEvent
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// Append stamps the event with a fresh ID and timestamp, appends it, and
// evicts from the head until the log holds at most 100 entries. The stored
// event is returned.
func (l *ActivityLog) Append(event ActivityEvent) ActivityEvent {
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	l.events = append(l.events, event)
	if overflow := len(l.events) - maxActivityEvents; overflow > 0 {
		l.events = append(l.events[:0], l.events[overflow:]...)
	}
	return event
}

// Events returns a copy of the log in insertion order.
func (l *ActivityLog) Events() []ActivityEvent {
	events := make([]ActivityEvent, len(l.events))
	copy(events, l.events)
	return events
}

// Len is the number of retained events.
func (l *ActivityLog) Len() int {
	return len(l.events)
}
