package reconciliation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

const (
	defaultListLimit = 100
	dueBatch         = 50
)

// Service drives parked sales to a terminal outcome.
type Service interface {
	Enqueue(ctx context.Context, requestKey string, payload sale.Request, reason string) (*Entry, error)
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, status Status) ([]*Entry, error)
	// Retry replays the stored request under its original key.
	Retry(ctx context.Context, id uuid.UUID) (*Attempt, error)
	// Resolve settles the entry with a payment outcome learned out of band.
	Resolve(ctx context.Context, id uuid.UUID, req ResolveRequest) (*Attempt, error)
	// Abandon closes the entry without touching stock; its holds lapse on their
	// own. The request key is closed with it so a resubmission cannot charge again.
	Abandon(ctx context.Context, id uuid.UUID, note string) (*Entry, error)
	// RetryDue retries every open entry whose next attempt is due.
	RetryDue(ctx context.Context) (int, error)
}

type service struct {
	tx          database.Transactor
	repo        Repository
	recorder    *Recorder
	sales       sale.Service
	clock       clock.Clock
	maxAttempts int
	logger      *zap.Logger
}

func NewService(tx database.Transactor, repo Repository, recorder *Recorder, sales sale.Service, clk clock.Clock, maxAttempts int, logger *zap.Logger) Service {
	return &service{
		tx:          tx,
		repo:        repo,
		recorder:    recorder,
		sales:       sales,
		clock:       clk,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (s *service) Enqueue(ctx context.Context, requestKey string, payload sale.Request, reason string) (*Entry, error) {
	id, err := s.recorder.Enqueue(ctx, requestKey, payload, reason)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, status Status) ([]*Entry, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, status, defaultListLimit)
}

func (s *service) Retry(ctx context.Context, id uuid.UUID) (*Attempt, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == StatusAbandoned {
		return nil, ErrEntryClosed
	}
	req := e.Payload
	req.RequestKey = e.RequestKey

	res, runErr := s.sales.CreateSale(ctx, req)
	note := ""
	if res != nil {
		note = "retried: " + string(res.Outcome)
	}
	return s.settle(ctx, id, res, runErr, note)
}

func (s *service) Resolve(ctx context.Context, id uuid.UUID, req ResolveRequest) (*Attempt, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.Open() {
		return nil, ErrEntryClosed
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	payload := e.Payload
	payload.RequestKey = e.RequestKey

	var res *sale.Result
	if req.Approved {
		res, err = s.sales.ConfirmPayment(ctx, payload, payment.Authorization{
			Status:    payment.StatusApproved,
			AuthCode:  req.AuthCode,
			CardLast4: req.CardLast4,
			CardType:  req.CardType,
		})
	} else {
		res, err = s.sales.Void(ctx, payload, note)
	}
	return s.settle(ctx, id, res, err, note)
}

// settle records what an attempt on the entry produced.
func (s *service) settle(ctx context.Context, id uuid.UUID, res *sale.Result, runErr error, note string) (*Attempt, error) {
	var out *Entry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		e.UpdatedAt = now
		out = e
		if !e.Status.Open() {
			// A resolved entry replays its outcome; nothing to record.
			return nil
		}
		e.Attempts++
		switch {
		case runErr != nil:
			e.Status = StatusRetried
			e.LastOutcome = "error: " + runErr.Error()
			e.NextAttemptAt = now.Add(retryDelay(e.Attempts))
		case res.Outcome.Terminal():
			e.Status = StatusResolved
			e.LastOutcome = string(res.Outcome)
			e.ResolutionNote = note
			e.ResolvedAt = &now
		default:
			e.Status = StatusRetried
			e.LastOutcome = string(res.Outcome)
			if res.Reason != "" {
				e.LastOutcome += ": " + res.Reason
			}
			e.NextAttemptAt = now.Add(retryDelay(e.Attempts))
		}
		return s.repo.Update(ctx, e)
	})
	if err != nil {
		return nil, fmt.Errorf("record reconciliation attempt: %w", err)
	}
	if runErr != nil {
		s.logger.Warn("reconciliation attempt failed",
			zap.String("entry_id", id.String()), zap.Int("attempts", out.Attempts), zap.Error(runErr))
		return &Attempt{Entry: out}, runErr
	}
	s.logger.Info("reconciliation attempt",
		zap.String("entry_id", id.String()),
		zap.String("outcome", string(res.Outcome)),
		zap.String("status", string(out.Status)),
	)
	return &Attempt{Entry: out, Result: res}, nil
}

func (s *service) Abandon(ctx context.Context, id uuid.UUID, note string) (*Entry, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	var out *Entry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !e.Status.Open() {
			return ErrEntryClosed
		}
		if err := s.sales.Forfeit(ctx, e.RequestKey, note); err != nil {
			return fmt.Errorf("close request key: %w", err)
		}
		now := s.clock.Now()
		e.Status = StatusAbandoned
		e.ResolutionNote = note
		e.ResolvedAt = &now
		e.UpdatedAt = now
		out = e
		return s.repo.Update(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("reconciliation entry abandoned",
		zap.String("entry_id", id.String()), zap.String("request_key", out.RequestKey))
	return out, nil
}

func (s *service) RetryDue(ctx context.Context) (int, error) {
	due, err := s.repo.ListDue(ctx, s.clock.Now(), s.maxAttempts, dueBatch)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, e := range due {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := s.Retry(ctx, e.ID); err != nil {
			s.logger.Warn("scheduled retry failed", zap.String("entry_id", e.ID.String()), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}
