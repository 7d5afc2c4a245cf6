package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "rentbook/internal/app/outbox"
	"rentbook/internal/app/uow"
)

type outboxState string

const (
	stateNew     outboxState = "NEW"
	stateClaimed outboxState = "CLAIMED"
	stateSent    outboxState = "SENT"
	stateFailed  outboxState = "FAILED"
)

type outboxEntry struct {
	record      appoutbox.EventRecord
	state       outboxState
	attempts    int
	nextAttempt time.Time
	lastError   string
}

// Outbox buffers records in the active unit of work and keeps them with
// relay state once the unit commits.
type Outbox struct {
	mu      sync.Mutex
	entries []*outboxEntry
	notify  chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok {
			if err := mu.writable(); err != nil {
				return err
			}
			mu.outbox = append(mu.outbox, record)
			return nil
		}
	}
	o.append(record)
	return nil
}

// Flush wakes a waiting relay.
func (o *Outbox) Flush(context.Context) error {
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// Notify fires after Flush.
func (o *Outbox) Notify() <-chan struct{} {
	return o.notify
}

func (o *Outbox) append(records ...appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range records {
		o.entries = append(o.entries, &outboxEntry{record: rec, state: stateNew})
	}
}

func (o *Outbox) Claim(_ context.Context, _ string, limit int) ([]appoutbox.Pending, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	var out []appoutbox.Pending
	for _, e := range o.entries {
		if len(out) >= limit {
			break
		}
		if e.state != stateNew && !(e.state == stateFailed && !e.nextAttempt.After(now)) {
			continue
		}
		e.state = stateClaimed
		out = append(out, appoutbox.Pending{EventRecord: e.record, Attempts: e.attempts})
	}
	return out, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.state = stateSent
		e.lastError = ""
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, retryAt time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.find(id); e != nil {
		e.state = stateFailed
		e.attempts++
		e.nextAttempt = retryAt
		e.lastError = errMsg
	}
	return nil
}

// Records returns every committed record in insertion order.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.record)
	}
	return out
}

func (o *Outbox) find(id string) *outboxEntry {
	for _, e := range o.entries {
		if e.record.ID == id {
			return e
		}
	}
	return nil
}

var _ appoutbox.Outbox = (*Outbox)(nil)
