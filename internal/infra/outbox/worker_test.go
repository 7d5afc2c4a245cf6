package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentbook/internal/app/outbox"
	"rentbook/internal/infra/broker/kafka"
	"rentbook/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type recordingProducer struct {
	sent []published
	err  error
}

func (p *recordingProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func seed(t *testing.T, box *memory.Outbox, id, name string) {
	t.Helper()
	require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"rental_id":"r-1"}`),
		OccurredAt: time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC),
		Aggregate:  "r-1",
	}))
}

func TestProcessOnceWrapsCloudEvent(t *testing.T) {
	box := memory.NewOutbox()
	seed(t, box, "evt-1", "rental.confirmed")
	producer := &recordingProducer{}
	w := &Worker{Store: box, Producer: producer, TopicPrefix: "dev."}

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, producer.sent, 1)

	msg := producer.sent[0]
	assert.Equal(t, "dev.rental.events.v1", msg.topic)
	assert.Equal(t, "r-1", msg.key)
	assert.Equal(t, "evt-1", msg.headers["ce-id"])
	assert.Equal(t, "rental.confirmed.v1", msg.headers["ce-type"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "app://rentbook", evt["source"])
	assert.Equal(t, "r-1", evt["subject"])
	assert.Equal(t, map[string]any{"rental_id": "r-1"}, evt["data"])

	sent, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestProcessOnceRetriesAfterBackoff(t *testing.T) {
	box := memory.NewOutbox()
	seed(t, box, "evt-1", "availability.blocked")
	producer := &recordingProducer{err: errors.New("broker down")}
	w := &Worker{Store: box, Producer: producer, Backoff: []time.Duration{-time.Second}}

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	producer.err = nil
	sent, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, "availability.events.v1", producer.sent[0].topic)
}

func TestProcessOnceHoldsFailedRecordUntilDue(t *testing.T) {
	box := memory.NewOutbox()
	seed(t, box, "evt-1", "rental.requested")
	producer := &recordingProducer{err: errors.New("broker down")}
	w := &Worker{Store: box, Producer: producer, Backoff: []time.Duration{time.Hour}}

	_, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)

	producer.err = nil
	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestProcessOnceThroughSaramaProducer(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sync := mocks.NewSyncProducer(t, cfg)
	sync.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var evt map[string]any
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		if evt["id"] != "evt-1" {
			return errors.New("unexpected event id")
		}
		return nil
	})
	sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	box := memory.NewOutbox()
	seed(t, box, "evt-1", "rental.requested")
	seed(t, box, "evt-2", "rental.requested")
	producer := kafka.WrapProducer(sync)
	w := &Worker{Store: box, Producer: producer, Backoff: []time.Duration{time.Hour}}

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.NoError(t, producer.Close())
}

func TestRunRequiresDependencies(t *testing.T) {
	err := (&Worker{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrWorkerNotConfigured)
}

type signallingProducer struct {
	topics chan string
}

func (p signallingProducer) Publish(_ context.Context, topic, _ string, _ []byte, _ map[string]string) error {
	p.topics <- topic
	return nil
}

func TestRunWakesOnNotify(t *testing.T) {
	box := memory.NewOutbox()
	seed(t, box, "evt-1", "rental.requested")
	producer := signallingProducer{topics: make(chan string, 1)}
	w := &Worker{Store: box, Producer: producer, Interval: time.Hour, Wake: box.Notify()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	require.NoError(t, box.Flush(ctx))

	select {
	case topic := <-producer.topics:
		assert.Equal(t, "rental.events.v1", topic)
	case <-time.After(time.Second):
		t.Fatal("worker did not wake on flush")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTopicUsesEventFamily(t *testing.T) {
	assert.Equal(t, "rental.events.v1", Topic("", "rental.confirmed"))
	assert.Equal(t, "stage.availability.events.v1", Topic("stage.", "availability.blocked"))
	assert.Equal(t, "ping.events.v1", Topic("", "ping"))
}

func TestProcessOnceReschedulesUnencodableRecord(t *testing.T) {
	box := memory.NewOutbox()
	require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{ID: "evt-bad", Name: "rental.requested", Payload: []byte("{not json")}))
	producer := &recordingProducer{}
	w := &Worker{Store: box, Producer: producer, Backoff: []time.Duration{time.Hour}}

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, producer.sent)
}
