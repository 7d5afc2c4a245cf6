// Package kafka relays outbox records to Kafka and consumes payment events
// through a consumer group.
package kafka

import "github.com/IBM/sarama"

// kafkaVersion is Kafka 2.5.0.
var kafkaVersion = sarama.V2_5_0_0

// Config returns a sarama config for clientID with idempotent, fully acked
// produces and consumer groups that start from the oldest offset.
func Config(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = kafkaVersion

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	// idempotent producers require a single in-flight request
	cfg.Net.MaxOpenRequests = 1

	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}
