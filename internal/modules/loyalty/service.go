package loyalty

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

// Service is the loyalty ledger.
type Service interface {
	// Apply books a sale's redemption and accrual. It must run inside the
	// sale's commit transaction so points move only with the sale.
	Apply(ctx context.Context, customerID, saleID uuid.UUID, redeemed, earned int64) error
	Balance(ctx context.Context, customerID uuid.UUID) (int64, error)
	Adjust(ctx context.Context, customerID uuid.UUID, req AdjustRequest) (*Account, error)
	History(ctx context.Context, customerID uuid.UUID, limit int) ([]*Entry, error)
}

type service struct {
	tx     database.Transactor
	repo   Repository
	clock  clock.Clock
	logger *zap.Logger
}

func NewService(tx database.Transactor, repo Repository, clk clock.Clock, logger *zap.Logger) Service {
	return &service{tx: tx, repo: repo, clock: clk, logger: logger}
}

func (s *service) Apply(ctx context.Context, customerID, saleID uuid.UUID, redeemed, earned int64) error {
	if redeemed < 0 || earned < 0 {
		return ErrInvalidPoints
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		sale := saleID
		if redeemed > 0 {
			if err := s.move(ctx, customerID, &sale, KindRedeem, -redeemed, ""); err != nil {
				return err
			}
		}
		if earned > 0 {
			if err := s.move(ctx, customerID, &sale, KindEarn, earned, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) move(ctx context.Context, customerID uuid.UUID, saleID *uuid.UUID, kind EntryKind, points int64, note string) error {
	now := s.clock.Now()
	if _, err := s.repo.AddToBalance(ctx, customerID, points, now); err != nil {
		return err
	}
	return s.repo.AppendEntry(ctx, &Entry{
		ID:         uuid.New(),
		CustomerID: customerID,
		SaleID:     saleID,
		Kind:       kind,
		Points:     points,
		Note:       note,
		CreatedAt:  now,
	})
}

func (s *service) Balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	acct, err := s.repo.GetAccount(ctx, customerID)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (s *service) Adjust(ctx context.Context, customerID uuid.UUID, req AdjustRequest) (*Account, error) {
	if req.Points == 0 {
		return nil, ErrZeroAdjustment
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.move(ctx, customerID, nil, KindAdjust, req.Points, note)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("loyalty balance adjusted",
		zap.String("customer_id", customerID.String()),
		zap.Int64("points", req.Points),
	)
	return s.repo.GetAccount(ctx, customerID)
}

func (s *service) History(ctx context.Context, customerID uuid.UUID, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.ListEntries(ctx, customerID, limit)
}
