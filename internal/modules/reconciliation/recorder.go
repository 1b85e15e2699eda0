package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

const (
	firstRetryDelay = time.Minute
	maxRetryDelay   = time.Hour
)

// Recorder writes entries on behalf of the sale orchestrator.
type Recorder struct {
	tx    database.Transactor
	repo  Repository
	clock clock.Clock
}

var _ sale.Reconciler = (*Recorder)(nil)

func NewRecorder(tx database.Transactor, repo Repository, clk clock.Clock) *Recorder {
	return &Recorder{tx: tx, repo: repo, clock: clk}
}

// Enqueue opens an entry for requestKey, or refreshes the one already open.
func (r *Recorder) Enqueue(ctx context.Context, requestKey string, payload sale.Request, reason string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.tx.WithTx(ctx, func(ctx context.Context) error {
		now := r.clock.Now()
		e, err := r.repo.GetOpenByKey(ctx, requestKey)
		switch {
		case err == nil:
			e.Payload = payload
			e.FailureReason = reason
			e.UpdatedAt = now
			id = e.ID
			return r.repo.Update(ctx, e)
		case !errors.Is(err, ErrEntryNotFound):
			return err
		}
		e = &Entry{
			ID:            uuid.New(),
			RequestKey:    requestKey,
			Payload:       payload,
			FailureReason: reason,
			Status:        StatusPending,
			NextAttemptAt: now.Add(retryDelay(0)),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		id = e.ID
		return r.repo.Create(ctx, e)
	})
	return id, err
}

// retryDelay doubles from firstRetryDelay per attempt, capped at maxRetryDelay.
func retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = firstRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxRetryDelay
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}
