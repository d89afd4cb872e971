package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds the broker settings for the Kafka publisher
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaPublisher publishes domain events as JSON messages keyed by
// aggregate id, so all events of one cash box or plan stay ordered
// within a partition.
type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: writeTimeout,
	}, logger)
}

// NewKafkaPublisherWithWriter creates a publisher over an existing writer
func NewKafkaPublisherWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish implements shared.EventPublisher
func (p *KafkaPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", event.EventType(), err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.AggregateID().String()),
			Value: data,
			Time:  event.OccurredAt(),
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(event.EventID().String())},
				{Key: "event_type", Value: []byte(event.EventType())},
				{Key: "tenant_id", Value: []byte(event.TenantID().String())},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}
	p.logger.Debug("published events to kafka", zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the underlying writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ shared.EventPublisher = (*KafkaPublisher)(nil)
