package session

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
)

// Service is the session aggregator.
type Service interface {
	Open(ctx context.Context, req OpenRequest) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// ApplySale adds one committed sale to the session totals. Callers run it
	// inside the sale's commit transaction.
	ApplySale(ctx context.Context, id uuid.UUID, method payment.Method, amount decimal.Decimal) error
	// ApplyLateSale books a sale settled after its session closed. Cash moves
	// the expected drawer balance and the variance with it.
	ApplyLateSale(ctx context.Context, id uuid.UUID, method payment.Method, amount decimal.Decimal) error
	// Close ends the shift with the counted drawer balance. It runs once.
	Close(ctx context.Context, id uuid.UUID, counted decimal.Decimal) (*Session, error)
}

type service struct {
	tx     database.Transactor
	repo   Repository
	events outbox.Writer
	clock  clock.Clock
	logger *zap.Logger
}

func NewService(tx database.Transactor, repo Repository, events outbox.Writer, clk clock.Clock, logger *zap.Logger) Service {
	return &service{tx: tx, repo: repo, events: events, clock: clk, logger: logger}
}

func (s *service) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	register := strings.TrimSpace(req.RegisterID)
	switch {
	case req.LocationID == uuid.Nil:
		return nil, ErrLocationRequired
	case register == "":
		return nil, ErrRegisterRequired
	case req.OpeningBalance.IsNegative():
		return nil, ErrNegativeBalance
	}
	sess := &Session{
		ID:             uuid.New(),
		LocationID:     req.LocationID,
		RegisterID:     register,
		CashierID:      req.CashierID,
		Status:         StatusOpen,
		OpeningBalance: req.OpeningBalance.Round(2),
		TotalSales:     decimal.Zero,
		TotalCash:      decimal.Zero,
		TotalCard:      decimal.Zero,
		OpenedAt:       s.clock.Now(),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session opened",
		zap.String("session_id", sess.ID.String()),
		zap.String("register_id", register),
	)
	return sess, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) ApplySale(ctx context.Context, id uuid.UUID, method payment.Method, amount decimal.Decimal) error {
	d, err := saleDelta(method, amount)
	if err != nil {
		return err
	}
	return s.repo.Increment(ctx, id, d)
}

func (s *service) ApplyLateSale(ctx context.Context, id uuid.UUID, method payment.Method, amount decimal.Decimal) error {
	d, err := saleDelta(method, amount)
	if err != nil {
		return err
	}
	if err := s.repo.IncrementClosed(ctx, id, d); err != nil {
		return err
	}
	s.logger.Warn("late sale booked to closed session",
		zap.String("session_id", id.String()),
		zap.String("method", string(method)),
		zap.String("amount", amount.StringFixed(2)),
	)
	return nil
}

func saleDelta(method payment.Method, amount decimal.Decimal) (Delta, error) {
	if amount.IsNegative() {
		return Delta{}, ErrNegativeAmount
	}
	d := Delta{Sales: amount, Cash: decimal.Zero, Card: decimal.Zero, Transactions: 1}
	switch method {
	case payment.MethodCash:
		d.Cash = amount
	case payment.MethodCard:
		d.Card = amount
	default:
		return Delta{}, ErrUnknownPaymentRoute
	}
	return d, nil
}

func (s *service) Close(ctx context.Context, id uuid.UUID, counted decimal.Decimal) (*Session, error) {
	if counted.IsNegative() {
		return nil, ErrNegativeBalance
	}
	var out *Session
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		sess, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sess.IsOpen() {
			return ErrSessionClosed
		}

		now := s.clock.Now()
		// Card takings never reach the drawer.
		expected := sess.OpeningBalance.Add(sess.TotalCash)
		closing := counted.Round(2)
		variance := closing.Sub(expected)
		sess.Status = StatusClosed
		sess.ExpectedBalance = &expected
		sess.ClosingBalance = &closing
		sess.Variance = &variance
		sess.ClosedAt = &now
		if err := s.repo.Close(ctx, sess); err != nil {
			return err
		}
		out = sess
		return s.events.Enqueue(ctx, outbox.EventSessionClosed, ClosedEvent{
			SessionID:         sess.ID,
			LocationID:        sess.LocationID,
			RegisterID:        sess.RegisterID,
			TotalSales:        sess.TotalSales,
			TotalCash:         sess.TotalCash,
			TotalCard:         sess.TotalCard,
			TotalTransactions: sess.TotalTransactions,
			ExpectedBalance:   expected,
			ClosingBalance:    closing,
			Variance:          variance,
			ClosedAt:          now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("session closed",
		zap.String("session_id", id.String()),
		zap.String("variance", out.Variance.StringFixed(2)),
	)
	return out, nil
}
