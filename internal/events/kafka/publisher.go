// Package kafka streams host events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hongminglow/kaisurf-be/internal/events"
)

// Publisher writes events keyed by identity, so one identity's events stay
// ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes event and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encode(event events.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.AuthUID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

var _ events.Publisher = (*Publisher)(nil)
