package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/session"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
	"github.com/georgemunganga/printa-pos/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOpen_OneOpenSessionPerRegister(t *testing.T) {
	sys := testutil.NewSystem(t)
	ctx := context.Background()
	loc := sys.Location(t)

	first := sys.OpenSession(t, loc, "till-1")
	_, err := sys.Sessions.Open(ctx, session.OpenRequest{LocationID: loc, RegisterID: "till-1"})
	if !errors.Is(err, session.ErrRegisterBusy) {
		t.Fatalf("second open err = %v, want ErrRegisterBusy", err)
	}
	// Another register at the same location is independent.
	sys.OpenSession(t, loc, "till-2")

	if _, err := sys.Sessions.Close(ctx, first.ID, dec("100")); err != nil {
		t.Fatalf("Close: %v", err)
	}
	sys.OpenSession(t, loc, "till-1")
}

func TestOpen_Validation(t *testing.T) {
	sys := testutil.NewSystem(t)
	loc := sys.Location(t)

	cases := []struct {
		name string
		req  session.OpenRequest
		want error
	}{
		{"no register", session.OpenRequest{LocationID: loc, RegisterID: " "}, session.ErrRegisterRequired},
		{"no location", session.OpenRequest{RegisterID: "till-1"}, session.ErrLocationRequired},
		{"negative float", session.OpenRequest{LocationID: loc, RegisterID: "till-1", OpeningBalance: dec("-1")}, session.ErrNegativeBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := sys.Sessions.Open(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestApplySale_SplitsByMethod(t *testing.T) {
	sys := testutil.NewSystem(t)
	ctx := context.Background()
	sess := sys.OpenSession(t, sys.Location(t), "till-1")

	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.MethodCash, dec("23.20")); err != nil {
		t.Fatalf("ApplySale cash: %v", err)
	}
	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.MethodCard, dec("11.60")); err != nil {
		t.Fatalf("ApplySale card: %v", err)
	}
	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.Method("voucher"), dec("1")); !errors.Is(err, session.ErrUnknownPaymentRoute) {
		t.Fatalf("unknown method err = %v", err)
	}
	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.MethodCash, dec("-1")); !errors.Is(err, session.ErrNegativeAmount) {
		t.Fatalf("negative amount err = %v", err)
	}

	got, err := sys.Sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TotalTransactions != 2 || !got.TotalSales.Equal(dec("34.80")) {
		t.Fatalf("totals = %d / %s", got.TotalTransactions, got.TotalSales)
	}
	if !got.TotalCash.Add(got.TotalCard).Equal(got.TotalSales) {
		t.Fatalf("cash %s + card %s != sales %s", got.TotalCash, got.TotalCard, got.TotalSales)
	}
}

func TestClose_ComputesVariance(t *testing.T) {
	sys := testutil.NewSystem(t)
	ctx := context.Background()
	sess := sys.OpenSession(t, sys.Location(t), "till-1")

	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.MethodCash, dec("50.00")); err != nil {
		t.Fatalf("ApplySale: %v", err)
	}
	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.MethodCard, dec("30.00")); err != nil {
		t.Fatalf("ApplySale: %v", err)
	}

	closed, err := sys.Sessions.Close(ctx, sess.ID, dec("148.50"))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed.ExpectedBalance.Equal(dec("150.00")) || !closed.Variance.Equal(dec("-1.50")) {
		t.Fatalf("expected %s variance %s, want 150.00 / -1.50", closed.ExpectedBalance, closed.Variance)
	}
	if closed.Status != session.StatusClosed || closed.ClosedAt == nil {
		t.Fatalf("session not closed: %+v", closed)
	}

	if _, err := sys.Sessions.Close(ctx, sess.ID, dec("148.50")); !errors.Is(err, session.ErrSessionClosed) {
		t.Fatalf("second close err = %v", err)
	}
	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.MethodCash, dec("1")); !errors.Is(err, session.ErrSessionClosed) {
		t.Fatalf("apply to closed err = %v", err)
	}

	n := 0
	for _, m := range sys.Store.Messages() {
		if m.Type == outbox.EventSessionClosed {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("session.closed events = %d, want 1", n)
	}
}

func TestApplyLateSale_AdjustsClosedFigures(t *testing.T) {
	sys := testutil.NewSystem(t)
	ctx := context.Background()
	sess := sys.OpenSession(t, sys.Location(t), "till-1")

	if err := sys.Sessions.ApplyLateSale(ctx, sess.ID, payment.MethodCash, dec("5.00")); !errors.Is(err, session.ErrSessionOpen) {
		t.Fatalf("late sale on open session err = %v, want ErrSessionOpen", err)
	}
	if err := sys.Sessions.ApplySale(ctx, sess.ID, payment.MethodCash, dec("50.00")); err != nil {
		t.Fatalf("ApplySale: %v", err)
	}
	if _, err := sys.Sessions.Close(ctx, sess.ID, dec("150.00")); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := sys.Sessions.ApplyLateSale(ctx, sess.ID, payment.MethodCash, dec("12.00")); err != nil {
		t.Fatalf("ApplyLateSale cash: %v", err)
	}
	if err := sys.Sessions.ApplyLateSale(ctx, sess.ID, payment.MethodCard, dec("8.00")); err != nil {
		t.Fatalf("ApplyLateSale card: %v", err)
	}

	got, err := sys.Sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != session.StatusClosed {
		t.Fatalf("status = %s, want closed", got.Status)
	}
	if !got.TotalSales.Equal(dec("70.00")) || got.TotalTransactions != 3 {
		t.Fatalf("totals = %s / %d, want 70.00 / 3", got.TotalSales, got.TotalTransactions)
	}
	if !got.ExpectedBalance.Equal(dec("162.00")) || !got.Variance.Equal(dec("-12.00")) {
		t.Fatalf("expected %s variance %s, want 162.00 / -12.00", got.ExpectedBalance, got.Variance)
	}
	if !got.ClosingBalance.Equal(dec("150.00")) {
		t.Fatalf("closing = %s, want 150.00", got.ClosingBalance)
	}
}
