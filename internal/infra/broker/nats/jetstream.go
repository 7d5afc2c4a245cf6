// Package nats relays outbox records to JetStream and consumes payment
// events from it.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"rentbook/internal/infra/broker"
)

// StreamConfig names the stream and the subjects it captures.
type StreamConfig struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
}

type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

func Connect(ctx context.Context, url string, stream StreamConfig) (*Client, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	if stream.Name != "" {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      stream.Name,
			Subjects:  stream.Subjects,
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    stream.MaxAge,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", stream.Name, err)
		}
	}
	return &Client{conn: conn, js: js}, nil
}

// Publish sends payload to subject and waits for the stream ack. The outbox
// record id doubles as the dedupe id.
func (c *Client) Publish(ctx context.Context, subject string, key string, payload []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = payload
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	if key != "" {
		msg.Header.Set("key", key)
	}
	var opts []jetstream.PublishOpt
	if id := headers["ce-id"]; id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	_, err := c.js.PublishMsg(ctx, msg, opts...)
	return err
}

// Consume attaches a durable consumer and blocks until ctx ends. Messages are
// acked on success, terminated when unprocessable and nak'd otherwise.
func (c *Client) Consume(ctx context.Context, stream, durable string, subjects []string, handler broker.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cons, err := c.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:        durable,
		AckPolicy:      jetstream.AckExplicitPolicy,
		FilterSubjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", durable, err)
	}
	cc, err := cons.Consume(func(m jetstream.Msg) {
		headers := make(map[string]string, len(m.Headers()))
		for k := range m.Headers() {
			headers[k] = m.Headers().Get(k)
		}
		msg := broker.Message{Topic: m.Subject(), Key: headers["key"], Payload: m.Data(), Headers: headers}
		switch err := handler.Handle(ctx, msg); {
		case errors.Is(err, broker.ErrUnprocessable):
			logger.Error("nats message dropped", "subject", m.Subject(), "error", err)
			_ = m.Term()
			return
		case err != nil:
			logger.Warn("nats message not handled", "subject", m.Subject(), "error", err)
			_ = m.Nak()
			return
		}
		_ = m.Ack()
	})
	if err != nil {
		return err
	}
	defer cc.Stop()
	<-ctx.Done()
	return ctx.Err()
}

func (c *Client) Close() {
	c.conn.Close()
}

// Ping round-trips to the server.
func (c *Client) Ping(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return c.conn.FlushWithContext(ctx)
}
