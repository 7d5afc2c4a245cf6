// Package broker holds the transport-neutral message shape shared by the
// Kafka and NATS adapters.
package broker

import (
	"context"
	"errors"
	"fmt"
)

type Message struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

// Handler processes one delivery. A nil error acknowledges it.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// ErrUnprocessable marks a delivery that can never succeed, such as a payload
// that does not decode. Consumers drop it instead of redelivering.
var ErrUnprocessable = errors.New("broker: unprocessable message")

// Drop wraps err so consumers treat the delivery as unprocessable.
func Drop(err error) error {
	return fmt.Errorf("%w: %w", ErrUnprocessable, err)
}
