package sale_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
	"github.com/georgemunganga/printa-pos/internal/modules/loyalty"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
	"github.com/georgemunganga/printa-pos/internal/testutil"
)

type shop struct {
	*testutil.System
	location uuid.UUID
	product  *catalog.Product
	session  uuid.UUID
}

// newShop stocks one product priced 10.00 and opens a register.
func newShop(t *testing.T, stock int, opts ...testutil.Option) *shop {
	t.Helper()
	sys := testutil.NewSystem(t, opts...)
	loc := sys.Location(t)
	p := sys.Product(t, "SKU-1", "10.00")
	sys.Stock(t, p.ID, loc, stock)
	sess := sys.OpenSession(t, loc, "till-1")
	return &shop{System: sys, location: loc, product: p, session: sess.ID}
}

func (s *shop) request(key string, qty int, method payment.Method) sale.Request {
	return sale.Request{
		RequestKey:    key,
		SessionID:     s.session,
		LocationID:    s.location,
		PaymentMethod: method,
		Items:         []sale.Item{{ProductID: s.product.ID, Quantity: qty, UnitPrice: s.product.Price}},
	}
}

func (s *shop) create(t *testing.T, req sale.Request) *sale.Result {
	t.Helper()
	res, err := s.Sales.CreateSale(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	return res
}

func (s *shop) assertStock(t *testing.T, onHand, reserved int) {
	t.Helper()
	rec := s.Record(t, s.product.ID, s.location)
	if rec.OnHand != onHand || rec.Reserved != reserved {
		t.Fatalf("stock = %d on hand / %d reserved, want %d / %d", rec.OnHand, rec.Reserved, onHand, reserved)
	}
}

func countEvents(msgs []outbox.Message, eventType string) int {
	n := 0
	for _, m := range msgs {
		if m.Type == eventType {
			n++
		}
	}
	return n
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateSale_Succeeds(t *testing.T) {
	s := newShop(t, 5)
	ctx := context.Background()

	res := s.create(t, s.request("till-1-0001", 2, payment.MethodCash))
	if res.Outcome != sale.OutcomeSucceeded {
		t.Fatalf("outcome = %s (%s), want succeeded", res.Outcome, res.Reason)
	}
	s.assertStock(t, 3, 0)

	got, err := s.Sales.GetSale(ctx, *res.SaleID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if !got.Subtotal.Equal(mustDecimal("20.00")) || !got.TaxAmount.Equal(mustDecimal("3.20")) || !got.Total.Equal(mustDecimal("23.20")) {
		t.Fatalf("totals = %s + %s = %s, want 20.00 + 3.20 = 23.20", got.Subtotal, got.TaxAmount, got.Total)
	}
	if len(got.Items) != 1 || got.Payment == nil {
		t.Fatalf("sale not persisted with items and payment: %+v", got)
	}

	holds, err := s.Inventory.ReservationsFor(ctx, "till-1-0001")
	if err != nil {
		t.Fatalf("ReservationsFor: %v", err)
	}
	if len(holds) != 1 || holds[0].Status != inventory.ReservationCommitted {
		t.Fatalf("holds = %+v, want one committed", holds)
	}
	if got.Items[0].ReservationID != holds[0].ID {
		t.Fatalf("sale item points at %s, want %s", got.Items[0].ReservationID, holds[0].ID)
	}

	sess, err := s.Sessions.Get(ctx, s.session)
	if err != nil {
		t.Fatalf("Sessions.Get: %v", err)
	}
	if sess.TotalTransactions != 1 || !sess.TotalCash.Equal(mustDecimal("23.20")) || !sess.TotalCard.IsZero() {
		t.Fatalf("session = %d tx, cash %s, card %s", sess.TotalTransactions, sess.TotalCash, sess.TotalCard)
	}
	if n := countEvents(s.Store.Messages(), outbox.EventSaleCompleted); n != 1 {
		t.Fatalf("sale.completed events = %d, want 1", n)
	}
}

func TestCreateSale_SameKeyReplaysOutcome(t *testing.T) {
	s := newShop(t, 5)
	req := s.request("till-1-0002", 2, payment.MethodCard)

	first := s.create(t, req)
	second := s.create(t, req)
	if first.Outcome != sale.OutcomeSucceeded || second.Outcome != sale.OutcomeSucceeded {
		t.Fatalf("outcomes = %s, %s", first.Outcome, second.Outcome)
	}
	if *first.SaleID != *second.SaleID {
		t.Fatalf("replay produced a second sale: %s vs %s", first.SaleID, second.SaleID)
	}
	if s.Card.Calls() != 1 {
		t.Fatalf("card authorized %d times, want 1", s.Card.Calls())
	}
	s.assertStock(t, 3, 0)

	sess, _ := s.Sessions.Get(context.Background(), s.session)
	if sess.TotalTransactions != 1 {
		t.Fatalf("session counted %d transactions, want 1", sess.TotalTransactions)
	}
}

func TestCreateSale_KeyReusedForDifferentCart(t *testing.T) {
	s := newShop(t, 5)
	s.create(t, s.request("till-1-0003", 1, payment.MethodCash))

	res := s.create(t, s.request("till-1-0003", 2, payment.MethodCash))
	if res.Outcome != sale.OutcomeValidationError || !strings.Contains(res.Reason, sale.ErrKeyReused.Error()) {
		t.Fatalf("got %s (%s), want key reuse rejection", res.Outcome, res.Reason)
	}
	s.assertStock(t, 4, 0)
}

func TestCreateSale_RaceForLastUnit(t *testing.T) {
	s := newShop(t, 1)

	var wg sync.WaitGroup
	results := make([]*sale.Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []string{"till-1-a", "till-1-b"}[i]
			res, err := s.Sales.CreateSale(context.Background(), s.request(key, 1, payment.MethodCash))
			if err != nil {
				t.Errorf("CreateSale %s: %v", key, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	counts := map[sale.Outcome]int{}
	for _, r := range results {
		if r != nil {
			counts[r.Outcome]++
		}
	}
	if counts[sale.OutcomeSucceeded] != 1 || counts[sale.OutcomeInsufficientStock] != 1 {
		t.Fatalf("outcomes = %v, want one success and one insufficient_stock", counts)
	}
	s.assertStock(t, 0, 0)
}

func TestCreateSale_InsufficientStock(t *testing.T) {
	s := newShop(t, 1)
	req := s.request("till-1-0004", 2, payment.MethodCash)

	res := s.create(t, req)
	if res.Outcome != sale.OutcomeInsufficientStock {
		t.Fatalf("outcome = %s, want insufficient_stock", res.Outcome)
	}
	if len(res.ReservationFailures) != 1 || res.ReservationFailures[0].Available != 1 || res.ReservationFailures[0].Requested != 2 {
		t.Fatalf("failures = %+v", res.ReservationFailures)
	}
	s.assertStock(t, 1, 0)

	// The outcome is final for the key.
	s.Stock(t, s.product.ID, s.location, 5)
	if again := s.create(t, req); again.Outcome != sale.OutcomeInsufficientStock {
		t.Fatalf("replay outcome = %s, want cached insufficient_stock", again.Outcome)
	}
}

func TestCreateSale_PaymentDeclined(t *testing.T) {
	s := newShop(t, 5)
	s.Card.Push(payment.Authorization{Status: payment.StatusDeclined, Reason: "insufficient funds"})

	res := s.create(t, s.request("till-1-0005", 2, payment.MethodCard))
	if res.Outcome != sale.OutcomePaymentDeclined {
		t.Fatalf("outcome = %s, want payment_declined", res.Outcome)
	}
	s.assertStock(t, 5, 0)

	holds, _ := s.Inventory.ReservationsFor(context.Background(), "till-1-0005")
	if len(holds) != 1 || holds[0].Status != inventory.ReservationReleased {
		t.Fatalf("holds = %+v, want one released", holds)
	}
	sess, _ := s.Sessions.Get(context.Background(), s.session)
	if sess.TotalTransactions != 0 {
		t.Fatalf("declined sale reached the session totals")
	}
}

func TestCreateSale_TimeoutParksAttempt(t *testing.T) {
	s := newShop(t, 5)
	ctx := context.Background()
	s.Card.PushErr(errors.New("terminal unreachable"))

	res := s.create(t, s.request("till-1-0006", 2, payment.MethodCard))
	if res.Outcome != sale.OutcomeIndeterminate || res.ReconciliationID == nil {
		t.Fatalf("got %s (reconciliation %v), want indeterminate with an entry", res.Outcome, res.ReconciliationID)
	}
	s.assertStock(t, 5, 2)

	holds, _ := s.Inventory.ReservationsFor(ctx, "till-1-0006")
	if len(holds) != 1 || holds[0].Status != inventory.ReservationActive {
		t.Fatalf("holds = %+v, want one active", holds)
	}
	if want := testutil.Start.Add(testutil.ReconciliationHold); !holds[0].ExpiresAt.Equal(want) {
		t.Fatalf("hold expires %s, want %s", holds[0].ExpiresAt, want)
	}

	// The normal reservation TTL no longer applies.
	s.Clock.Advance(2 * testutil.ReservationTTL)
	if n, err := s.Inventory.SweepExpired(ctx); err != nil || n != 0 {
		t.Fatalf("SweepExpired = %d, %v; want 0", n, err)
	}

	rec, err := s.Idempotency.Get(ctx, "till-1-0006")
	if err != nil {
		t.Fatalf("Idempotency.Get: %v", err)
	}
	if rec.Status != idempotency.StatusIndeterminate {
		t.Fatalf("key status = %s, want indeterminate", rec.Status)
	}
	if n := countEvents(s.Store.Messages(), outbox.EventReconciliationOpened); n != 1 {
		t.Fatalf("reconciliation.opened events = %d, want 1", n)
	}
}

func TestCreateSale_RetryAfterTimeoutReusesHolds(t *testing.T) {
	s := newShop(t, 5)
	req := s.request("till-1-0007", 2, payment.MethodCard)
	s.Card.PushErr(errors.New("terminal unreachable"))

	if first := s.create(t, req); first.Outcome != sale.OutcomeIndeterminate {
		t.Fatalf("first outcome = %s", first.Outcome)
	}
	second := s.create(t, req)
	if second.Outcome != sale.OutcomeSucceeded {
		t.Fatalf("retry outcome = %s (%s), want succeeded", second.Outcome, second.Reason)
	}
	s.assertStock(t, 3, 0)

	holds, _ := s.Inventory.ReservationsFor(context.Background(), "till-1-0007")
	if len(holds) != 1 || holds[0].Status != inventory.ReservationCommitted {
		t.Fatalf("holds = %+v, want the original hold committed", holds)
	}
}

type failingSales struct{ sale.Repository }

func (failingSales) Create(context.Context, *sale.Sale) error { return errors.New("disk full") }

func TestCreateSale_CommitIsAtomic(t *testing.T) {
	s := newShop(t, 5, testutil.WithSaleRepository(func(r sale.Repository) sale.Repository {
		return failingSales{r}
	}))
	ctx := context.Background()

	res := s.create(t, s.request("till-1-0008", 2, payment.MethodCash))
	if res.Outcome != sale.OutcomeIndeterminate {
		t.Fatalf("outcome = %s, want indeterminate", res.Outcome)
	}
	if !strings.Contains(res.Reason, "commit failed") {
		t.Fatalf("reason = %q", res.Reason)
	}
	// The hold commit was rolled back with the failed insert.
	s.assertStock(t, 5, 2)

	holds, _ := s.Inventory.ReservationsFor(ctx, "till-1-0008")
	if len(holds) != 1 || holds[0].Status != inventory.ReservationActive {
		t.Fatalf("holds = %+v, want one active", holds)
	}
	sess, _ := s.Sessions.Get(ctx, s.session)
	if sess.TotalTransactions != 0 {
		t.Fatalf("session totals moved without a sale")
	}
	if n := countEvents(s.Store.Messages(), outbox.EventSaleCompleted); n != 0 {
		t.Fatalf("sale.completed emitted for a rolled back sale")
	}
}

func TestCreateSale_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(t *testing.T, s *shop, req *sale.Request)
		want   error
	}{
		{"stale price", func(_ *testing.T, _ *shop, req *sale.Request) { req.Items[0].UnitPrice = mustDecimal("9.00") }, sale.ErrStalePrice},
		{"closed session", func(t *testing.T, s *shop, _ *sale.Request) {
			if _, err := s.Sessions.Close(context.Background(), s.session, mustDecimal("100")); err != nil {
				t.Fatalf("Close: %v", err)
			}
		}, sale.ErrSessionNotOpen},
		{"empty cart", func(_ *testing.T, _ *shop, req *sale.Request) { req.Items = nil }, sale.ErrEmptyCart},
		{"zero quantity", func(_ *testing.T, _ *shop, req *sale.Request) { req.Items[0].Quantity = 0 }, sale.ErrInvalidQuantity},
		{"unknown method", func(_ *testing.T, _ *shop, req *sale.Request) { req.PaymentMethod = "cheque" }, sale.ErrInvalidMethod},
		{"redeem without customer", func(_ *testing.T, _ *shop, req *sale.Request) { req.LoyaltyPointsToRedeem = 10 }, sale.ErrRedeemNeedsCustomer},
		{"wrong location", func(t *testing.T, s *shop, req *sale.Request) { req.LocationID = s.Location(t) }, sale.ErrSessionLocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newShop(t, 5)
			req := s.request("till-1-r", 2, payment.MethodCash)
			tc.mutate(t, s, &req)

			res := s.create(t, req)
			if res.Outcome != sale.OutcomeValidationError || !strings.Contains(res.Reason, tc.want.Error()) {
				t.Fatalf("got %s (%s), want %v", res.Outcome, res.Reason, tc.want)
			}
			s.assertStock(t, 5, 0)
			// Rejections free the key for a corrected resubmission.
			if _, err := s.Idempotency.Get(context.Background(), "till-1-r"); !errors.Is(err, idempotency.ErrNotFound) {
				t.Fatalf("key still recorded after rejection: %v", err)
			}
		})
	}
}

func TestCreateSale_Loyalty(t *testing.T) {
	s := newShop(t, 5)
	ctx := context.Background()
	customer := uuid.New()
	if _, err := s.Loyalty.Adjust(ctx, customer, loyalty.AdjustRequest{Points: 500, Note: "welcome bonus"}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	req := s.request("till-1-0009", 2, payment.MethodCash)
	req.CustomerID = &customer
	req.LoyaltyPointsToRedeem = 200

	res := s.create(t, req)
	if res.Outcome != sale.OutcomeSucceeded {
		t.Fatalf("outcome = %s (%s)", res.Outcome, res.Reason)
	}
	// 20.00 - 2.00 discount = 18.00, plus 16% tax = 20.88; 20 points earned.
	if !res.Sale.Total.Equal(mustDecimal("20.88")) || res.Sale.LoyaltyPointsEarned != 20 {
		t.Fatalf("total %s, earned %d", res.Sale.Total, res.Sale.LoyaltyPointsEarned)
	}
	balance, err := s.Loyalty.Balance(ctx, customer)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 320 {
		t.Fatalf("balance = %d, want 320", balance)
	}

	over := s.request("till-1-0010", 1, payment.MethodCash)
	over.CustomerID = &customer
	over.LoyaltyPointsToRedeem = 321
	if res := s.create(t, over); res.Outcome != sale.OutcomeValidationError {
		t.Fatalf("over-redemption outcome = %s", res.Outcome)
	}
}

func TestConfirmPayment_RequiresPendingAttempt(t *testing.T) {
	s := newShop(t, 5)
	req := s.request("till-1-0011", 1, payment.MethodCard)

	res, err := s.Sales.ConfirmPayment(context.Background(), req, payment.Authorization{Status: payment.StatusApproved})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if res.Outcome != sale.OutcomeValidationError || !strings.Contains(res.Reason, sale.ErrNothingToConfirm.Error()) {
		t.Fatalf("got %s (%s)", res.Outcome, res.Reason)
	}
	if _, err := s.Idempotency.Get(context.Background(), req.RequestKey); !errors.Is(err, idempotency.ErrNotFound) {
		t.Fatalf("key left behind: %v", err)
	}
}

func TestVoid_ReleasesParkedHolds(t *testing.T) {
	s := newShop(t, 5)
	req := s.request("till-1-0012", 2, payment.MethodCard)
	s.Card.PushErr(errors.New("terminal unreachable"))
	s.create(t, req)

	res, err := s.Sales.Void(context.Background(), req, "customer walked away")
	if err != nil {
		t.Fatalf("Void: %v", err)
	}
	if res.Outcome != sale.OutcomePaymentDeclined {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	s.assertStock(t, 5, 0)
}

func TestSessionTotalsMatchSales(t *testing.T) {
	s := newShop(t, 10)
	ctx := context.Background()

	s.create(t, s.request("till-1-t1", 2, payment.MethodCash)) // 23.20
	s.create(t, s.request("till-1-t2", 1, payment.MethodCard)) // 11.60
	s.create(t, s.request("till-1-t3", 1, payment.MethodCash)) // 11.60

	sales, err := s.Sales.ListSessionSales(ctx, s.session)
	if err != nil {
		t.Fatalf("ListSessionSales: %v", err)
	}
	sum := decimal.Zero
	for _, sl := range sales {
		sum = sum.Add(sl.Total)
	}

	closed, err := s.Sessions.Close(ctx, s.session, mustDecimal("134.80"))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.TotalTransactions != len(sales) || !closed.TotalSales.Equal(sum) {
		t.Fatalf("session %d / %s, sales %d / %s", closed.TotalTransactions, closed.TotalSales, len(sales), sum)
	}
	if !closed.TotalCash.Add(closed.TotalCard).Equal(closed.TotalSales) {
		t.Fatalf("cash %s + card %s != %s", closed.TotalCash, closed.TotalCard, closed.TotalSales)
	}
	if !closed.ExpectedBalance.Equal(mustDecimal("134.80")) || !closed.Variance.IsZero() {
		t.Fatalf("expected %s, variance %s", closed.ExpectedBalance, closed.Variance)
	}
}
