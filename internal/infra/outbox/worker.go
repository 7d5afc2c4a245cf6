package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "rentbook/internal/app/outbox"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker needs a store and a producer")

const (
	defaultInterval  = 500 * time.Millisecond
	defaultBatchSize = 50
	defaultRetryIn   = 5 * time.Second
)

// Store is the relay side of an outbox: claim pending records and settle them.
type Store interface {
	Claim(ctx context.Context, workerID string, limit int) ([]appoutbox.Pending, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Producer is implemented by the Kafka producer and the JetStream client.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays committed records to a broker as CloudEvents. Records are
// keyed by aggregate id. A record that fails to publish is retried after
// Backoff[attempts], with the last step repeating.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// Wake triggers a pass before the next tick, e.g. right after a commit.
	Wake   <-chan struct{}
	Logger *slog.Logger
	Clock  func() time.Time
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	every := w.Interval
	if every <= 0 {
		every = defaultInterval
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	log := w.log().With("worker_id", w.workerID())
	log.Info("outbox relay started", "interval", every)
	for {
		select {
		case <-ctx.Done():
			log.Info("outbox relay stopped")
			return ctx.Err()
		case <-tick.C:
		case <-w.Wake:
		}
		if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			log.Warn("outbox relay pass failed", "error", err)
		}
	}
}

// ProcessOnce relays one batch and reports how many records were published.
// Only a failure to settle a published record aborts the batch.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	limit := w.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}
	batch, err := w.Store.Claim(ctx, w.workerID(), limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range batch {
		if err := w.publish(ctx, rec.EventRecord); err != nil {
			w.log().Warn("outbox publish failed", "event_id", rec.ID, "event", rec.Name, "attempt", rec.Attempts+1, "error", err)
			if err := w.Store.MarkFailed(ctx, rec.ID, w.retryAt(rec.Attempts), err.Error()); err != nil {
				w.log().Error("outbox record not rescheduled", "event_id", rec.ID, "error", err)
			}
			continue
		}
		if err := w.Store.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (w *Worker) publish(ctx context.Context, rec appoutbox.EventRecord) error {
	source := w.Source
	if source == "" {
		source = "app://rentbook"
	}
	body, headers, err := envelope(rec, source)
	if err != nil {
		return err
	}
	return w.Producer.Publish(ctx, Topic(w.TopicPrefix, rec.Name), rec.Aggregate, body, headers)
}

func (w *Worker) retryAt(attempts int) time.Time {
	now := time.Now()
	if w.Clock != nil {
		now = w.Clock()
	}
	switch n := len(w.Backoff); {
	case n == 0:
		return now.Add(defaultRetryIn)
	case attempts < n:
		return now.Add(w.Backoff[attempts])
	default:
		return now.Add(w.Backoff[n-1])
	}
}

func (w *Worker) workerID() string {
	if w.ID == "" {
		w.ID = "relay-" + uuid.NewString()
	}
	return w.ID
}

func (w *Worker) log() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}
