package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
)

// Event types published by the transaction core.
const (
	EventSaleCompleted        = "sale.completed"
	EventReconciliationOpened = "reconciliation.opened"
	EventSessionClosed        = "session.closed"
)

// Message is an event persisted alongside the state change it describes.
type Message struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
	RetryCount  int             `json:"retry_count"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

type Repository interface {
	Insert(ctx context.Context, msg Message) error
	PendingBatch(ctx context.Context, maxRetry, batchSize int) ([]Message, error)
	Save(ctx context.Context, msg Message) error
}

// Publisher delivers one message to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Writer records events; call it inside the transaction that changes state.
type Writer interface {
	Enqueue(ctx context.Context, eventType string, payload any) error
}

type writer struct {
	repo  Repository
	clock clock.Clock
}

func NewWriter(repo Repository, clk clock.Clock) Writer {
	return &writer{repo: repo, clock: clk}
}

func (w *writer) Enqueue(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return w.repo.Insert(ctx, Message{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    body,
		OccurredAt: w.clock.Now(),
	})
}

// Dispatcher drains pending messages to a Publisher.
type Dispatcher struct {
	repo      Repository
	publisher Publisher
	clock     clock.Clock
	logger    *zap.Logger
	maxRetry  int
	batchSize int
}

func NewDispatcher(repo Repository, publisher Publisher, clk clock.Clock, logger *zap.Logger, maxRetry, batchSize int) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		maxRetry:  maxRetry,
		batchSize: batchSize,
	}
}

// DispatchOnce publishes one batch and returns how many were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.repo.PendingBatch(ctx, d.maxRetry, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending outbox batch: %w", err)
	}

	processed := 0
	for i := range msgs {
		msg := msgs[i]
		if err := d.publisher.Publish(ctx, msg); err != nil {
			d.logger.Warn("outbox publish failed",
				zap.String("message_id", msg.ID.String()),
				zap.String("type", msg.Type),
				zap.Int("retry_count", msg.RetryCount),
				zap.Error(err),
			)
			msg.RetryCount++
		} else {
			now := d.clock.Now()
			msg.ProcessedAt = &now
			processed++
		}
		if err := d.repo.Save(ctx, msg); err != nil {
			d.logger.Error("outbox save failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
		}
	}
	return processed, nil
}
