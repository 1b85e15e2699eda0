// Package memory keeps every repository in process memory. Transactions are
// serialised on one lock and roll back by restoring a snapshot. Writes enforce
// the same constraints as the Postgres schema.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
	"github.com/georgemunganga/printa-pos/internal/modules/loyalty"
	"github.com/georgemunganga/printa-pos/internal/modules/reconciliation"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/session"
	"github.com/georgemunganga/printa-pos/internal/modules/user"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
)

type stockKey struct{ product, location uuid.UUID }

type state struct {
	locations      map[uuid.UUID]inventory.Location
	records        map[stockKey]inventory.Record
	reservations   map[uuid.UUID]inventory.Reservation
	idempotency    map[string]idempotency.Record
	products       map[uuid.UUID]catalog.Product
	users          map[uuid.UUID]user.User
	sessions       map[uuid.UUID]session.Session
	accounts       map[uuid.UUID]loyalty.Account
	entries        []loyalty.Entry
	sales          map[uuid.UUID]sale.Sale
	reconciliation map[uuid.UUID]reconciliation.Entry
	outbox         []outbox.Message
}

func newState() *state {
	return &state{
		locations:      map[uuid.UUID]inventory.Location{},
		records:        map[stockKey]inventory.Record{},
		reservations:   map[uuid.UUID]inventory.Reservation{},
		idempotency:    map[string]idempotency.Record{},
		products:       map[uuid.UUID]catalog.Product{},
		users:          map[uuid.UUID]user.User{},
		sessions:       map[uuid.UUID]session.Session{},
		accounts:       map[uuid.UUID]loyalty.Account{},
		sales:          map[uuid.UUID]sale.Sale{},
		reconciliation: map[uuid.UUID]reconciliation.Entry{},
	}
}

// clone copies the maps. Stored values are never mutated in place, so
// sharing their pointer fields is safe.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.entries = append([]loyalty.Entry(nil), s.entries...)
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.reconciliation {
		c.reconciliation[k] = v
	}
	c.outbox = append([]outbox.Message(nil), s.outbox...)
	return c
}

// Store implements database.Transactor and hands out repositories over
// shared state.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store { return &Store{st: newState()} }

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// WithTx runs fn holding the store lock. Nested calls join the outer
// transaction; an error restores the state seen on entry.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// do runs fn against the state, taking the lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

func (s *Store) Inventory() *InventoryRepository { return &InventoryRepository{s} }
func (s *Store) Idempotency() idempotency.Repository { return &idempotencyRepository{s} }
func (s *Store) Catalog() catalog.Repository { return &catalogRepository{s} }
func (s *Store) Users() user.Repository { return &userRepository{s} }
func (s *Store) Sessions() session.Repository { return &sessionRepository{s} }
func (s *Store) Loyalty() loyalty.Repository { return &loyaltyRepository{s} }
func (s *Store) Sales() sale.Repository { return &saleRepository{s} }
func (s *Store) Reconciliation() reconciliation.Repository { return &reconciliationRepository{s} }
func (s *Store) Outbox() outbox.Repository { return &outboxRepository{s} }

var errDuplicateOpenEntry = errors.New("an open reconciliation entry already exists for this request key")
