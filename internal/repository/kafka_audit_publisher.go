package repository

import (
	"context"

	"PairScout/internal/domain/models"
	domrepo "PairScout/internal/domain/repository"
	pkgkafka "PairScout/pkg/kafka"
)

// KafkaAuditPublisher implements AuditPublisher over a Kafka topic. Messages
// are keyed by pair (instrument for window resets) so per-pair ordering is
// preserved within a partition.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates a publisher for the audit topic.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) domrepo.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, ev *models.AuditEvent) error {
	key := ev.Pair
	if key == "" {
		key = ev.Instrument
	}
	return p.producer.Publish(ctx, p.topic, []byte(key), ev)
}

func (p *KafkaAuditPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
