package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
)

// Service is the inventory ledger and reservation manager.
type Service interface {
	CreateLocation(ctx context.Context, req CreateLocationRequest) (*Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*Location, error)

	// GetRecord returns the stock position for a product at a location.
	GetRecord(ctx context.Context, productID, locationID uuid.UUID) (*Record, error)
	// Receive adjusts on-hand stock by delta, creating the record on first intake.
	Receive(ctx context.Context, productID, locationID uuid.UUID, delta int) (*Record, error)

	// Reserve holds stock for one cart line under the record's row lock.
	Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error)
	// Commit turns a hold into a permanent deduction. Idempotent.
	Commit(ctx context.Context, id uuid.UUID) error
	// Release returns a hold's stock to availability. Idempotent.
	Release(ctx context.Context, id uuid.UUID) error
	// SweepExpired expires every active hold past its deadline.
	SweepExpired(ctx context.Context) (int, error)
	// Extend pushes the deadline of a request's active holds out to until.
	Extend(ctx context.Context, requestKey string, until time.Time) (int, error)

	GetReservation(ctx context.Context, id uuid.UUID) (*Reservation, error)
	ReservationsFor(ctx context.Context, requestKey string) ([]*Reservation, error)
}

type service struct {
	tx        database.Transactor
	locations LocationRepository
	repo      Repository
	clock     clock.Clock
	logger    *zap.Logger
	ttl       time.Duration
	sweepSize int
}

const (
	defaultReservationTTL = 10 * time.Minute
	defaultSweepBatch     = 200
)

type Option func(*service)

// WithReservationTTL overrides the default hold lifetime.
func WithReservationTTL(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func NewService(tx database.Transactor, locations LocationRepository, repo Repository, clk clock.Clock, logger *zap.Logger, opts ...Option) Service {
	s := &service{
		tx:        tx,
		locations: locations,
		repo:      repo,
		clock:     clk,
		logger:    logger,
		ttl:       defaultReservationTTL,
		sweepSize: defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateLocation(ctx context.Context, req CreateLocationRequest) (*Location, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := s.clock.Now()
	l := &Location{
		ID:        uuid.New(),
		Name:      name,
		Address:   strings.TrimSpace(req.Address),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.locations.CreateLocation(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *service) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	return s.locations.GetLocation(ctx, id)
}

func (s *service) GetRecord(ctx context.Context, productID, locationID uuid.UUID) (*Record, error) {
	return s.repo.GetRecord(ctx, productID, locationID)
}

func (s *service) Receive(ctx context.Context, productID, locationID uuid.UUID, delta int) (*Record, error) {
	if delta == 0 {
		return nil, ErrInvalidDelta
	}
	var out *Record
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		rec, err := s.repo.GetRecordForUpdate(ctx, productID, locationID)
		switch {
		case errors.Is(err, ErrRecordNotFound):
			if delta < 0 {
				return ErrOnHandBelowReservation
			}
			if _, err := s.locations.GetLocation(ctx, locationID); err != nil {
				return err
			}
			rec = &Record{ProductID: productID, LocationID: locationID, OnHand: delta, UpdatedAt: now}
			if err := s.repo.CreateRecord(ctx, rec); err != nil {
				return err
			}
			out = rec
			return nil
		case err != nil:
			return err
		}

		if rec.OnHand+delta < rec.Reserved {
			return ErrOnHandBelowReservation
		}
		rec.OnHand += delta
		rec.UpdatedAt = now
		if err := s.repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock received",
		zap.String("product_id", productID.String()),
		zap.String("location_id", locationID.String()),
		zap.Int("delta", delta),
		zap.Int("on_hand", out.OnHand),
	)
	return out, nil
}

func (s *service) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var (
		out       *Reservation
		shortfall *InsufficientStockError
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		rec, err := s.repo.GetRecordForUpdate(ctx, req.ProductID, req.LocationID)
		if errors.Is(err, ErrRecordNotFound) {
			shortfall = &InsufficientStockError{ProductID: req.ProductID, LocationID: req.LocationID, Requested: req.Quantity}
			return nil
		}
		if err != nil {
			return err
		}

		if rec.Available() < req.Quantity {
			// Abandoned holds on this product may be blocking the request.
			if _, err := s.expireLocked(ctx, rec, now); err != nil {
				return err
			}
		}
		if rec.Available() < req.Quantity {
			shortfall = &InsufficientStockError{
				ProductID:  req.ProductID,
				LocationID: req.LocationID,
				Requested:  req.Quantity,
				Available:  rec.Available(),
			}
			// Return nil so the lazy sweep above still commits.
			return nil
		}

		rec.Reserved += req.Quantity
		rec.UpdatedAt = now
		if err := s.repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}
		res := &Reservation{
			ID:         uuid.New(),
			ProductID:  req.ProductID,
			LocationID: req.LocationID,
			Quantity:   req.Quantity,
			RequestKey: req.RequestKey,
			Line:       req.Line,
			Status:     ReservationActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.ttl),
		}
		if err := s.repo.CreateReservation(ctx, res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if shortfall != nil {
		return nil, shortfall
	}
	return out, nil
}

// expireLocked expires the product's overdue holds while the caller holds the record lock.
func (s *service) expireLocked(ctx context.Context, rec *Record, now time.Time) (int, error) {
	expired, err := s.repo.ListExpired(ctx, rec.ProductID, rec.LocationID, now, s.sweepSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cand := range expired {
		res, err := s.repo.GetReservationForUpdate(ctx, cand.ID)
		if err != nil {
			return n, err
		}
		if res.Status != ReservationActive {
			continue
		}
		if err := s.close(ctx, rec, res, ReservationExpired, now); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// close moves an active hold to a released state and gives its stock back.
func (s *service) close(ctx context.Context, rec *Record, res *Reservation, status ReservationStatus, now time.Time) error {
	rec.Reserved -= res.Quantity
	rec.UpdatedAt = now
	if err := s.repo.UpdateRecord(ctx, rec); err != nil {
		return err
	}
	res.Status = status
	res.ClosedAt = &now
	return s.repo.UpdateReservation(ctx, res)
}

func (s *service) Commit(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, res, err := s.lockReservation(ctx, id)
		if err != nil {
			return err
		}
		switch res.Status {
		case ReservationCommitted:
			return nil
		case ReservationActive:
		default:
			return fmt.Errorf("%w: %s is %s", ErrReservationClosed, id, res.Status)
		}

		now := s.clock.Now()
		rec.OnHand -= res.Quantity
		rec.Reserved -= res.Quantity
		rec.UpdatedAt = now
		if err := s.repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}
		res.Status = ReservationCommitted
		res.ClosedAt = &now
		return s.repo.UpdateReservation(ctx, res)
	})
}

func (s *service) Release(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		rec, res, err := s.lockReservation(ctx, id)
		if err != nil {
			return err
		}
		switch res.Status {
		case ReservationReleased, ReservationExpired:
			return nil
		case ReservationCommitted:
			return ErrReservationCommitted
		}
		return s.close(ctx, rec, res, ReservationReleased, s.clock.Now())
	})
}

// lockReservation locks the stock record, then the reservation row.
func (s *service) lockReservation(ctx context.Context, id uuid.UUID) (*Record, *Reservation, error) {
	peek, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.repo.GetRecordForUpdate(ctx, peek.ProductID, peek.LocationID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.repo.GetReservationForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, res, nil
}

func (s *service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.repo.ListExpired(ctx, uuid.Nil, uuid.Nil, now, s.sweepSize)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	swept := 0
	for _, cand := range candidates {
		err := s.tx.WithTx(ctx, func(ctx context.Context) error {
			rec, res, err := s.lockReservation(ctx, cand.ID)
			if err != nil {
				return err
			}
			// Committed, released or extended since the listing.
			if res.Status != ReservationActive || res.ExpiresAt.After(now) {
				return nil
			}
			swept++
			return s.close(ctx, rec, res, ReservationExpired, now)
		})
		if err != nil {
			return swept, fmt.Errorf("expire reservation %s: %w", cand.ID, err)
		}
	}
	if swept > 0 {
		s.logger.Info("expired reservations swept", zap.Int("count", swept))
	}
	return swept, nil
}

func (s *service) Extend(ctx context.Context, requestKey string, until time.Time) (int, error) {
	return s.repo.ExtendActive(ctx, requestKey, until)
}

func (s *service) GetReservation(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *service) ReservationsFor(ctx context.Context, requestKey string) ([]*Reservation, error) {
	return s.repo.ListReservationsByRequestKey(ctx, requestKey)
}
