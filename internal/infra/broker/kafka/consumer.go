package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"rentbook/internal/infra/broker"
)

// Consumer feeds a consumer group's messages to a broker.Handler.
//
// Offsets only move forward over handled or unprocessable messages. Any other
// failure ends the claim, and the partition resumes from the failed message
// when the session is rebuilt.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler broker.Handler
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler broker.Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = Config(groupID)
	}
	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: consumer group %s: %w", groupID, err)
	}
	return NewConsumerFromGroup(group, handler, logger), nil
}

func NewConsumerFromGroup(group sarama.ConsumerGroup, handler broker.Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{group: group, handler: handler, logger: logger}
}

// Run consumes topics until ctx ends, rejoining the group after rebalances.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("kafka consumer error", "error", err)
		}
	}()
	for ctx.Err() == nil {
		if err := c.group.Consume(ctx, topics, claimHandler{c}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
	}
	return ctx.Err()
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type claimHandler struct{ c *Consumer }

func (claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for m := range claim.Messages() {
		err := h.c.handler.Handle(sess.Context(), fromRecord(m))
		switch {
		case err == nil:
		case errors.Is(err, broker.ErrUnprocessable):
			h.c.logger.Error("kafka message dropped", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
		default:
			return fmt.Errorf("kafka: %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
		}
		sess.MarkMessage(m, "")
	}
	return nil
}

func fromRecord(m *sarama.ConsumerMessage) broker.Message {
	msg := broker.Message{Topic: m.Topic, Key: string(m.Key), Payload: m.Value, Headers: make(map[string]string, len(m.Headers))}
	for _, h := range m.Headers {
		if h != nil {
			msg.Headers[string(h.Key)] = string(h.Value)
		}
	}
	return msg
}
