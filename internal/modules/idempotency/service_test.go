package idempotency_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/storage/memory"
)

const lease = 5 * time.Minute

func newGuard(t *testing.T) (idempotency.Service, *clock.Manual) {
	t.Helper()
	store := memory.New()
	clk := clock.NewManual(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return idempotency.NewService(store, store.Idempotency(), clk, lease, zaptest.NewLogger(t)), clk
}

func begin(t *testing.T, g idempotency.Service, key, fp string) *idempotency.BeginResult {
	t.Helper()
	res, err := g.Begin(context.Background(), key, fp)
	if err != nil {
		t.Fatalf("Begin(%q): %v", key, err)
	}
	return res
}

func TestBegin_FreshThenConflictThenCached(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	if res := begin(t, g, "k1", "fp"); res.Decision != idempotency.Fresh {
		t.Fatalf("first decision = %s, want fresh", res.Decision)
	}
	if res := begin(t, g, "k1", "fp"); res.Decision != idempotency.Conflict {
		t.Fatalf("second decision = %s, want conflict", res.Decision)
	}

	saleID := uuid.New()
	out := idempotency.Outcome{Status: "succeeded", SaleID: &saleID, Payload: json.RawMessage(`{"ok":true}`)}
	if err := g.Complete(ctx, "k1", out); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	res := begin(t, g, "k1", "fp")
	if res.Decision != idempotency.Cached {
		t.Fatalf("decision after complete = %s, want cached", res.Decision)
	}
	if res.Record.Outcome == nil || *res.Record.Outcome.SaleID != saleID {
		t.Fatalf("cached outcome = %+v", res.Record.Outcome)
	}
	if err := g.Complete(ctx, "k1", out); !errors.Is(err, idempotency.ErrAlreadyCompleted) {
		t.Fatalf("second Complete err = %v", err)
	}
}

func TestBegin_FingerprintMismatch(t *testing.T) {
	g, _ := newGuard(t)

	begin(t, g, "k1", "fp-a")
	if _, err := g.Begin(context.Background(), "k1", "fp-b"); !errors.Is(err, idempotency.ErrFingerprintMismatch) {
		t.Fatalf("err = %v, want ErrFingerprintMismatch", err)
	}
}

func TestBegin_RequiresKey(t *testing.T) {
	g, _ := newGuard(t)
	if _, err := g.Begin(context.Background(), "  ", "fp"); !errors.Is(err, idempotency.ErrKeyRequired) {
		t.Fatalf("err = %v, want ErrKeyRequired", err)
	}
}

func TestBegin_ResumesStaleClaim(t *testing.T) {
	g, clk := newGuard(t)

	begin(t, g, "k1", "fp")
	clk.Advance(lease - time.Second)
	if res := begin(t, g, "k1", "fp"); res.Decision != idempotency.Conflict {
		t.Fatalf("within lease = %s, want conflict", res.Decision)
	}

	clk.Advance(2 * time.Second)
	res := begin(t, g, "k1", "fp")
	if res.Decision != idempotency.Resumed || res.Record.Attempts != 2 {
		t.Fatalf("after lease = %s (attempts %d), want resumed / 2", res.Decision, res.Record.Attempts)
	}
}

func TestMarkIndeterminate_AllowsResume(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	begin(t, g, "k1", "fp")
	if err := g.MarkIndeterminate(ctx, "k1", idempotency.Outcome{Status: "indeterminate"}); err != nil {
		t.Fatalf("MarkIndeterminate: %v", err)
	}
	rec, err := g.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != idempotency.StatusIndeterminate || rec.LockedAt != nil {
		t.Fatalf("record = %s locked %v", rec.Status, rec.LockedAt)
	}

	res := begin(t, g, "k1", "fp")
	if res.Decision != idempotency.Resumed {
		t.Fatalf("decision = %s, want resumed", res.Decision)
	}
	if res.Record.Outcome == nil || res.Record.Outcome.Status != "indeterminate" {
		t.Fatalf("resumed record lost its prior outcome: %+v", res.Record.Outcome)
	}
}

func TestAbort_ForgetsKey(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	begin(t, g, "k1", "fp-a")
	if err := g.Abort(ctx, "k1"); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := g.Get(ctx, "k1"); !errors.Is(err, idempotency.ErrNotFound) {
		t.Fatalf("Get after abort err = %v", err)
	}
	if res := begin(t, g, "k1", "fp-b"); res.Decision != idempotency.Fresh {
		t.Fatalf("decision after abort = %s, want fresh", res.Decision)
	}
}

func TestBegin_OneWinnerUnderContention(t *testing.T) {
	g, _ := newGuard(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.Begin(context.Background(), "shared", "fp")
			if err != nil {
				t.Errorf("Begin: %v", err)
				return
			}
			if res.Decision == idempotency.Fresh {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if fresh != 1 {
		t.Fatalf("fresh claims = %d, want 1", fresh)
	}
}

func TestFingerprint_StableForEqualValues(t *testing.T) {
	type cart struct {
		SKU string `json:"sku"`
		Qty int    `json:"qty"`
	}
	a, err := idempotency.Fingerprint(cart{"A", 1})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, _ := idempotency.Fingerprint(cart{"A", 1})
	c, _ := idempotency.Fingerprint(cart{"A", 2})
	if a != b || a == c {
		t.Fatalf("fingerprints a=%s b=%s c=%s", a, b, c)
	}
}

func TestSeal_ClosesParkedKey(t *testing.T) {
	g, clk := newGuard(t)
	ctx := context.Background()

	begin(t, g, "k1", "fp")
	sealed := idempotency.Outcome{Status: "indeterminate", Payload: json.RawMessage(`{"reason":"written off"}`)}
	if err := g.Seal(ctx, "k1", sealed); !errors.Is(err, idempotency.ErrInFlight) {
		t.Fatalf("seal live claim err = %v, want ErrInFlight", err)
	}
	clk.Advance(lease + time.Second)
	if err := g.Seal(ctx, "k1", sealed); err != nil {
		t.Fatalf("seal stale claim: %v", err)
	}
	if res := begin(t, g, "k1", "fp"); res.Decision != idempotency.Cached {
		t.Fatalf("after seal = %s, want cached", res.Decision)
	}

	begin(t, g, "k2", "fp")
	if err := g.MarkIndeterminate(ctx, "k2", idempotency.Outcome{Status: "indeterminate"}); err != nil {
		t.Fatalf("MarkIndeterminate: %v", err)
	}
	if err := g.Seal(ctx, "k2", sealed); err != nil {
		t.Fatalf("seal parked key: %v", err)
	}
	res := begin(t, g, "k2", "fp")
	if res.Decision != idempotency.Cached || string(res.Record.Outcome.Payload) != `{"reason":"written off"}` {
		t.Fatalf("parked key after seal = %s %+v", res.Decision, res.Record.Outcome)
	}
	if err := g.Seal(ctx, "k2", sealed); !errors.Is(err, idempotency.ErrAlreadyCompleted) {
		t.Fatalf("second seal err = %v, want ErrAlreadyCompleted", err)
	}
	if err := g.Seal(ctx, "missing", sealed); !errors.Is(err, idempotency.ErrNotFound) {
		t.Fatalf("seal unknown key err = %v, want ErrNotFound", err)
	}
}
