package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
)

const exchangeType = "topic"

// DialRabbitMQ connects with exponential backoff and declares the topic exchange.
func DialRabbitMQ(ctx context.Context, url, exchange string, maxElapsed time.Duration, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = maxElapsed

	var conn *amqp.Connection
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		c, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("rabbitmq dial failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

// RabbitPublisher publishes outbox messages to a topic exchange, routed by event type.
type RabbitPublisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(ch *amqp.Channel, exchange string) *RabbitPublisher {
	return &RabbitPublisher{ch: ch, exchange: exchange}
}

func (p *RabbitPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	return p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		msg.Type,   // routing key
		false,      // mandatory
		false,      // immediate
		rabbitPublishing(msg),
	)
}

func rabbitPublishing(msg outbox.Message) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Type:         msg.Type,
		Timestamp:    msg.OccurredAt,
		Body:         msg.Payload,
	}
}
