// Package outbox stages domain events in the same unit of work as the state
// change that raised them. A relay publishes them after commit.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentbook/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string            `json:"id" bson:"_id"`
	Name       string            `json:"name" bson:"name"`
	Payload    []byte            `json:"payload" bson:"payload"`
	OccurredAt time.Time         `json:"occurred_at" bson:"occurred_at"`
	Aggregate  string            `json:"aggregate" bson:"aggregate"`
	Headers    map[string]string `json:"headers" bson:"headers"`
}

// Outbox stores records inside the caller's unit of work. Flush runs after
// commit and only signals relays that new records are waiting.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

// Encoder turns a domain event into a record.
type Encoder func(ev events.DomainEvent) (EventRecord, error)

// JSON stores the event's JSON form under a new UUID.
func JSON(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	return EventRecord{
		ID:         uuid.NewString(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{"aggregate_id": ev.AggregateID()},
	}, nil
}

// Stage encodes evs in order and adds them to box. A nil encoder means JSON.
func Stage(ctx context.Context, box Outbox, enc Encoder, evs []events.DomainEvent) error {
	if box == nil {
		return nil
	}
	if enc == nil {
		enc = JSON
	}
	for _, ev := range evs {
		rec, err := enc(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Pending is a stored record waiting to be relayed to a broker.
type Pending struct {
	EventRecord
	Attempts int
}
