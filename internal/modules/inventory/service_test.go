package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
	"github.com/georgemunganga/printa-pos/internal/storage/memory"
)

const ttl = 10 * time.Minute

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      inventory.Service
	clock    *clock.Manual
	product  uuid.UUID
	location uuid.UUID
}

func newFixture(t *testing.T, onHand int) *fixture {
	t.Helper()
	store := memory.New()
	clk := clock.NewManual(start)
	repo := store.Inventory()
	svc := inventory.NewService(store, repo, repo, clk, zaptest.NewLogger(t), inventory.WithReservationTTL(ttl))

	ctx := context.Background()
	loc, err := svc.CreateLocation(ctx, inventory.CreateLocationRequest{Name: "Cairo Road"})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	f := &fixture{svc: svc, clock: clk, product: uuid.New(), location: loc.ID}
	if _, err := svc.Receive(ctx, f.product, f.location, onHand); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	return f
}

func (f *fixture) reserve(key string, qty int) (*inventory.Reservation, error) {
	return f.svc.Reserve(context.Background(), inventory.ReserveRequest{
		ProductID:  f.product,
		LocationID: f.location,
		Quantity:   qty,
		RequestKey: key,
	})
}

func (f *fixture) assertRecord(t *testing.T, onHand, reserved int) {
	t.Helper()
	rec, err := f.svc.GetRecord(context.Background(), f.product, f.location)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.OnHand != onHand || rec.Reserved != reserved {
		t.Fatalf("record = %d/%d, want %d/%d", rec.OnHand, rec.Reserved, onHand, reserved)
	}
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t, 5)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		short   int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reserve(uuid.NewString(), 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				granted++
				return
			}
			if _, ok := inventory.IsInsufficientStock(err); ok {
				short++
				return
			}
			t.Errorf("Reserve: %v", err)
		}()
	}
	wg.Wait()

	if granted != 5 || short != 15 {
		t.Fatalf("granted %d, short %d; want 5 and 15", granted, short)
	}
	f.assertRecord(t, 5, 5)
}

func TestReserve_Shortfall(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.reserve("k1", 3)
	ise, ok := inventory.IsInsufficientStock(err)
	if !ok {
		t.Fatalf("err = %v, want insufficient stock", err)
	}
	if ise.Requested != 3 || ise.Available != 2 {
		t.Fatalf("shortfall = %+v", ise)
	}
	if _, err := f.reserve("k1", 0); !errors.Is(err, inventory.ErrInvalidQuantity) {
		t.Fatalf("zero quantity err = %v", err)
	}
	f.assertRecord(t, 2, 0)
}

func TestCommit_DeductsOnceAndIsIdempotent(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	res, err := f.reserve("k1", 2)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	f.assertRecord(t, 5, 2)

	for i := 0; i < 2; i++ {
		if err := f.svc.Commit(ctx, res.ID); err != nil {
			t.Fatalf("Commit #%d: %v", i+1, err)
		}
	}
	f.assertRecord(t, 3, 0)

	if err := f.svc.Release(ctx, res.ID); !errors.Is(err, inventory.ErrReservationCommitted) {
		t.Fatalf("Release after commit err = %v", err)
	}
}

func TestRelease_RestoresAvailabilityAndIsIdempotent(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	res, err := f.reserve("k1", 4)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.svc.Release(ctx, res.ID); err != nil {
			t.Fatalf("Release #%d: %v", i+1, err)
		}
	}
	f.assertRecord(t, 5, 0)

	if err := f.svc.Commit(ctx, res.ID); !errors.Is(err, inventory.ErrReservationClosed) {
		t.Fatalf("Commit after release err = %v", err)
	}
	if err := f.svc.Release(ctx, uuid.New()); !errors.Is(err, inventory.ErrReservationNotFound) {
		t.Fatalf("Release unknown err = %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	stale, err := f.reserve("k1", 3)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	f.clock.Advance(ttl / 2)
	if _, err := f.reserve("k2", 1); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	n, err := f.svc.SweepExpired(ctx)
	if err != nil || n != 0 {
		t.Fatalf("early sweep = %d, %v", n, err)
	}

	f.clock.Advance(ttl/2 + time.Second)
	n, err = f.svc.SweepExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v; want 1", n, err)
	}
	f.assertRecord(t, 5, 1)

	got, err := f.svc.GetReservation(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if got.Status != inventory.ReservationExpired || got.ClosedAt == nil {
		t.Fatalf("stale hold = %s", got.Status)
	}
	if err := f.svc.Commit(ctx, stale.ID); !errors.Is(err, inventory.ErrReservationClosed) {
		t.Fatalf("Commit expired err = %v", err)
	}

	if n, _ := f.svc.SweepExpired(ctx); n != 0 {
		t.Fatalf("second sweep = %d, want 0", n)
	}
}

func TestReserve_ExpiresOverdueHoldsBeforeRefusing(t *testing.T) {
	f := newFixture(t, 2)

	if _, err := f.reserve("abandoned", 2); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	f.clock.Advance(ttl + time.Second)

	if _, err := f.reserve("next", 2); err != nil {
		t.Fatalf("Reserve after expiry: %v", err)
	}
	f.assertRecord(t, 2, 2)
}

func TestExtend_KeepsHoldsPastSweep(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	if _, err := f.reserve("parked", 2); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	n, err := f.svc.Extend(ctx, "parked", start.Add(24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Extend = %d, %v", n, err)
	}
	f.clock.Advance(ttl + time.Hour)
	if n, _ := f.svc.SweepExpired(ctx); n != 0 {
		t.Fatalf("swept %d extended holds", n)
	}
	f.assertRecord(t, 5, 2)
}

func TestReceive(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	if _, err := f.reserve("k1", 4); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := f.svc.Receive(ctx, f.product, f.location, -2); !errors.Is(err, inventory.ErrOnHandBelowReservation) {
		t.Fatalf("Receive below reserved err = %v", err)
	}
	rec, err := f.svc.Receive(ctx, f.product, f.location, 3)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if rec.OnHand != 8 || rec.Available() != 4 {
		t.Fatalf("record = %+v", rec)
	}
	if _, err := f.svc.Receive(ctx, f.product, f.location, 0); !errors.Is(err, inventory.ErrInvalidDelta) {
		t.Fatalf("zero delta err = %v", err)
	}
	if _, err := f.svc.Receive(ctx, uuid.New(), uuid.New(), 1); !errors.Is(err, inventory.ErrLocationNotFound) {
		t.Fatalf("unknown location err = %v", err)
	}
}
