package messaging

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
)

// KafkaProducer is the part of *kafka.Writer the publisher needs.
type KafkaProducer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer tuned for low-latency event delivery.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireAll,
	}
}

// KafkaPublisher publishes outbox messages keyed by message id so redeliveries
// of the same event land on the same partition.
type KafkaPublisher struct {
	producer KafkaProducer
}

func NewKafkaPublisher(producer KafkaProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	return p.producer.WriteMessages(ctx, kafkaMessage(msg))
}

func kafkaMessage(msg outbox.Message) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.ID.String()),
		Value: msg.Payload,
		Time:  msg.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.Type)},
		},
	}
}

// LogPublisher writes events to the log; used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, msg outbox.Message) error {
	p.logger.Info("event published",
		zap.String("message_id", msg.ID.String()),
		zap.String("type", msg.Type),
		zap.ByteString("payload", msg.Payload),
	)
	return nil
}
