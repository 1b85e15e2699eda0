package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

// Service guards request keys so a submission takes effect at most once.
type Service interface {
	// Begin claims key for the caller, or reports why it cannot.
	Begin(ctx context.Context, key, fingerprint string) (*BeginResult, error)
	// Complete records a terminal outcome. Later Begins return it as Cached.
	Complete(ctx context.Context, key string, outcome Outcome) error
	// Seal records a terminal outcome for a key no live attempt holds. It
	// returns ErrInFlight while an attempt's claim is within its lease.
	Seal(ctx context.Context, key string, outcome Outcome) error
	// MarkIndeterminate releases the claim but keeps the key reserved for a retry.
	MarkIndeterminate(ctx context.Context, key string, outcome Outcome) error
	// Abort forgets a key whose attempt had no effect.
	Abort(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (*Record, error)
}

type service struct {
	tx     database.Transactor
	repo   Repository
	clock  clock.Clock
	logger *zap.Logger
	lease  time.Duration
}

// NewService builds the guard. An in-flight claim older than lease is
// considered abandoned and may be resumed.
func NewService(tx database.Transactor, repo Repository, clk clock.Clock, lease time.Duration, logger *zap.Logger) Service {
	return &service{tx: tx, repo: repo, clock: clk, lease: lease, logger: logger}
}

// Fingerprint hashes the canonical JSON form of a request.
func Fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (s *service) Begin(ctx context.Context, key, fingerprint string) (*BeginResult, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrKeyRequired
	}

	var out *BeginResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		fresh := &Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusInFlight,
			Attempts:    1,
			LockedAt:    &now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created, err := s.repo.Insert(ctx, fresh)
		if err != nil {
			return err
		}
		if created {
			out = &BeginResult{Decision: Fresh, Record: fresh}
			return nil
		}

		rec, err := s.repo.GetForUpdate(ctx, key)
		if errors.Is(err, ErrNotFound) {
			// Aborted between our insert and the lock; the caller may resubmit.
			out = &BeginResult{Decision: Conflict}
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}

		switch rec.Status {
		case StatusCompleted:
			out = &BeginResult{Decision: Cached, Record: rec}
			return nil
		case StatusInFlight:
			if rec.LockedAt != nil && now.Sub(*rec.LockedAt) < s.lease {
				out = &BeginResult{Decision: Conflict, Record: rec}
				return nil
			}
			s.logger.Warn("taking over stale in-flight request key",
				zap.String("request_key", key),
				zap.Int("attempts", rec.Attempts),
			)
		}

		rec.Status = StatusInFlight
		rec.Attempts++
		rec.LockedAt = &now
		rec.UpdatedAt = now
		if err := s.repo.Update(ctx, rec); err != nil {
			return err
		}
		out = &BeginResult{Decision: Resumed, Record: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Complete(ctx context.Context, key string, outcome Outcome) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if rec.Status == StatusCompleted {
			return ErrAlreadyCompleted
		}
		now := s.clock.Now()
		rec.Status = StatusCompleted
		rec.Outcome = &outcome
		rec.LockedAt = nil
		rec.UpdatedAt = now
		rec.CompletedAt = &now
		return s.repo.Update(ctx, rec)
	})
}

func (s *service) Seal(ctx context.Context, key string, outcome Outcome) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		switch rec.Status {
		case StatusCompleted:
			return ErrAlreadyCompleted
		case StatusInFlight:
			if rec.LockedAt != nil && now.Sub(*rec.LockedAt) < s.lease {
				return ErrInFlight
			}
		}
		rec.Status = StatusCompleted
		rec.Outcome = &outcome
		rec.LockedAt = nil
		rec.UpdatedAt = now
		rec.CompletedAt = &now
		return s.repo.Update(ctx, rec)
	})
}

func (s *service) MarkIndeterminate(ctx context.Context, key string, outcome Outcome) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if rec.Status == StatusCompleted {
			return ErrAlreadyCompleted
		}
		rec.Status = StatusIndeterminate
		rec.Outcome = &outcome
		rec.LockedAt = nil
		rec.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, rec)
	})
}

func (s *service) Abort(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

func (s *service) Get(ctx context.Context, key string) (*Record, error) {
	return s.repo.Get(ctx, key)
}
