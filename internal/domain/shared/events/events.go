// Package events carries facts raised by rentals and the availability ledger
// to the outbox.
package events

import "time"

type DomainEvent interface {
	// EventName is the dotted type, e.g. rental.confirmed, used as the
	// CloudEvents type and the relay topic base.
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Recorder buffers events raised during one command. Aggregates embed it.
type Recorder struct {
	buf []DomainEvent
}

func (r *Recorder) Record(e DomainEvent) {
	if e != nil {
		r.buf = append(r.buf, e)
	}
}

// Pending returns a copy of the buffered events.
func (r *Recorder) Pending() []DomainEvent {
	return append([]DomainEvent(nil), r.buf...)
}

func (r *Recorder) Discard() { r.buf = nil }

// Drain hands the buffered events over and empties the buffer.
func (r *Recorder) Drain() []DomainEvent {
	out := r.buf
	r.buf = nil
	return out
}
