package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
	"github.com/georgemunganga/printa-pos/internal/modules/loyalty"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/reconciliation"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/session"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
	"github.com/georgemunganga/printa-pos/internal/storage/memory"
)

// Start is the instant every System clock begins at.
var Start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const (
	ReservationTTL     = 10 * time.Minute
	ReconciliationHold = 24 * time.Hour
	IdempotencyLease   = 5 * time.Minute
)

// System is the whole transaction core wired over the in-memory store.
type System struct {
	Store          *memory.Store
	Clock          *clock.Manual
	Card           *ScriptedGateway
	Policy         sale.Policy
	Catalog        catalog.Service
	Inventory      inventory.Service
	Sessions       session.Service
	Loyalty        loyalty.Service
	Idempotency    idempotency.Service
	Sales          sale.Service
	Reconciliation reconciliation.Service
}

type systemOptions struct {
	wrapSales func(sale.Repository) sale.Repository
}

type Option func(*systemOptions)

// WithSaleRepository lets a test intercept sale persistence.
func WithSaleRepository(wrap func(sale.Repository) sale.Repository) Option {
	return func(o *systemOptions) { o.wrapSales = wrap }
}

func NewSystem(t testing.TB, opts ...Option) *System {
	t.Helper()
	o := systemOptions{wrapSales: func(r sale.Repository) sale.Repository { return r }}
	for _, opt := range opts {
		opt(&o)
	}

	logger := zaptest.NewLogger(t)
	store := memory.New()
	clk := clock.NewManual(Start)
	card := &ScriptedGateway{}
	policy := sale.Policy{
		Currency:   "ZMW",
		TaxRate:    decimal.RequireFromString("0.16"),
		Tolerance:  decimal.Zero,
		PointValue: decimal.RequireFromString("0.01"),
		EarnRate:   decimal.NewFromInt(1),
	}

	events := outbox.NewWriter(store.Outbox(), clk)
	inv := store.Inventory()
	catalogService := catalog.NewService(store.Catalog(), clk, policy.Currency)
	inventoryService := inventory.NewService(store, inv, inv, clk, logger, inventory.WithReservationTTL(ReservationTTL))
	sessionService := session.NewService(store, store.Sessions(), events, clk, logger)
	loyaltyService := loyalty.NewService(store, store.Loyalty(), clk, logger)
	idempotencyService := idempotency.NewService(store, store.Idempotency(), clk, IdempotencyLease, logger)
	payments := payment.NewService(payment.Registry{
		payment.MethodCash: payment.NewCashGateway(),
		payment.MethodCard: card,
	}, time.Second, logger)
	recorder := reconciliation.NewRecorder(store, store.Reconciliation(), clk)

	sales := sale.NewService(sale.Dependencies{
		Tx:          store,
		Repo:        o.wrapSales(store.Sales()),
		Inventory:   inventoryService,
		Sessions:    sessionService,
		Loyalty:     loyaltyService,
		Idempotency: idempotencyService,
		Payments:    payments,
		Prices:      catalogService,
		Reconciler:  recorder,
		Events:      events,
		Clock:       clk,
		Logger:      logger,
	}, policy, ReconciliationHold)

	return &System{
		Store:          store,
		Clock:          clk,
		Card:           card,
		Policy:         policy,
		Catalog:        catalogService,
		Inventory:      inventoryService,
		Sessions:       sessionService,
		Loyalty:        loyaltyService,
		Idempotency:    idempotencyService,
		Sales:          sales,
		Reconciliation: reconciliation.NewService(store, store.Reconciliation(), recorder, sales, clk, 5, logger),
	}
}

// Location creates a store location.
func (s *System) Location(t testing.TB) uuid.UUID {
	t.Helper()
	l, err := s.Inventory.CreateLocation(context.Background(), inventory.CreateLocationRequest{Name: "Cairo Road"})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	return l.ID
}

// Product creates an active product priced at price.
func (s *System) Product(t testing.TB, sku, price string) *catalog.Product {
	t.Helper()
	p, err := s.Catalog.CreateProduct(context.Background(), catalog.CreateProductRequest{
		SKU:   sku,
		Name:  sku,
		Price: decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	return p
}

// Stock receives qty units of a product at a location.
func (s *System) Stock(t testing.TB, productID, locationID uuid.UUID, qty int) {
	t.Helper()
	if _, err := s.Inventory.Receive(context.Background(), productID, locationID, qty); err != nil {
		t.Fatalf("receive stock: %v", err)
	}
}

// OpenSession opens a register session at a location with a float of 100.
func (s *System) OpenSession(t testing.TB, locationID uuid.UUID, register string) *session.Session {
	t.Helper()
	sess, err := s.Sessions.Open(context.Background(), session.OpenRequest{
		LocationID:     locationID,
		RegisterID:     register,
		OpeningBalance: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return sess
}

// Record returns the stock position, failing the test when it is missing.
func (s *System) Record(t testing.TB, productID, locationID uuid.UUID) *inventory.Record {
	t.Helper()
	rec, err := s.Inventory.GetRecord(context.Background(), productID, locationID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	return rec
}

// ScriptedGateway answers card authorizations from a queue and approves
// once the queue is empty.
type ScriptedGateway struct {
	mu     sync.Mutex
	script []step
	calls  int
}

type step struct {
	auth *payment.Authorization
	err  error
}

func (g *ScriptedGateway) Push(auth payment.Authorization) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script = append(g.script, step{auth: &auth})
}

// PushErr queues a transport failure, which the payment service reports as a timeout.
func (g *ScriptedGateway) PushErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script = append(g.script, step{err: err})
}

func (g *ScriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *ScriptedGateway) Authorize(_ context.Context, _ *payment.AuthorizeRequest) (*payment.Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.script) == 0 {
		return &payment.Authorization{Status: payment.StatusApproved, AuthCode: "AUTH01", CardLast4: "4242", CardType: "VISA"}, nil
	}
	next := g.script[0]
	g.script = g.script[1:]
	return next.auth, next.err
}
