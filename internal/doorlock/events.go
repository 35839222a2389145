package doorlock

import "homeflow/internal/model"

// eventLogCap bounds the audit trail; the oldest entry is evicted past it.
const eventLogCap = 200

// eventLog is a fixed-capacity ring buffer of door events. It is an audit
// trail, never a source of truth.
type eventLog struct {
	entries []model.DoorEvent
	start   int
	count   int
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{entries: make([]model.DoorEvent, capacity)}
}

func (l *eventLog) append(event model.DoorEvent) {
	if l.count < len(l.entries) {
		l.entries[(l.start+l.count)%len(l.entries)] = event
		l.count++
		return
	}
	l.entries[l.start] = event
	l.start = (l.start + 1) % len(l.entries)
}

// all returns the events oldest first.
func (l *eventLog) all() []model.DoorEvent {
	out := make([]model.DoorEvent, 0, l.count)
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(l.start+i)%len(l.entries)])
	}
	return out
}
