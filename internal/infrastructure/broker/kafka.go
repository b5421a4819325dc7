// Package broker delivers outbox messages to Kafka. The relay owns
// retries and bookkeeping; this package only moves bytes.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"millstock/internal/infrastructure/storage/postgres"
)

// envelope is the wire format published to the topic. The payload stays
// raw JSON exactly as the service wrote it to the outbox.
type envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// KafkaPublisher writes outbox messages to a single topic, keyed by
// aggregate id so one movement's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ postgres.OutboxHandler = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Handle publishes one message. Synchronous: the relay marks the row
// published only after the broker acknowledged the write.
func (p *KafkaPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	value, err := json.Marshal(envelope{
		ID:            msg.ID.String(),
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID.String(),
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		CreatedAt:     msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Discard acknowledges messages without a broker. Used when no brokers
// are configured so the outbox still drains instead of growing forever.
type Discard struct{}

var _ postgres.OutboxHandler = Discard{}

// Handle does nothing and reports success.
func (Discard) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	return nil
}
