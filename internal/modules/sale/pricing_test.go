package sale

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	policy := Policy{
		Currency:   "ZMW",
		TaxRate:    d("0.16"),
		PointValue: d("0.01"),
		EarnRate:   d("1"),
	}
	cases := []struct {
		name      string
		items     []Item
		redeem    int64
		earns     bool
		wantTotal string
		wantTax   string
		wantEarn  int64
		wantErr   error
	}{
		{
			name:      "single line",
			items:     []Item{{ProductID: uuid.New(), Quantity: 2, UnitPrice: d("10.00")}},
			wantTotal: "23.20",
			wantTax:   "3.20",
		},
		{
			name: "lines rounded before summing",
			items: []Item{
				{ProductID: uuid.New(), Quantity: 3, UnitPrice: d("0.335")},
				{ProductID: uuid.New(), Quantity: 1, UnitPrice: d("4.99")},
			},
			// 1.01 + 4.99 = 6.00; tax 0.96
			wantTotal: "6.96",
			wantTax:   "0.96",
		},
		{
			name:      "discount before tax and floored earn",
			items:     []Item{{ProductID: uuid.New(), Quantity: 2, UnitPrice: d("10.00")}},
			redeem:    200,
			earns:     true,
			wantTotal: "20.88",
			wantTax:   "2.88",
			wantEarn:  20,
		},
		{
			name:    "discount larger than subtotal",
			items:   []Item{{ProductID: uuid.New(), Quantity: 1, UnitPrice: d("1.00")}},
			redeem:  101,
			wantErr: ErrRedeemExceedsTotal,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ComputeTotals(tc.items, tc.redeem, tc.earns, policy)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeTotals: %v", err)
			}
			if !got.Total.Equal(d(tc.wantTotal)) || !got.Tax.Equal(d(tc.wantTax)) {
				t.Fatalf("total %s tax %s, want %s / %s", got.Total, got.Tax, tc.wantTotal, tc.wantTax)
			}
			if got.PointsEarned != tc.wantEarn {
				t.Fatalf("earned %d, want %d", got.PointsEarned, tc.wantEarn)
			}
			if !got.Subtotal.Sub(got.Discount).Add(got.Tax).Equal(got.Total) {
				t.Fatalf("subtotal - discount + tax != total: %+v", got)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	t.Parallel()
	if !withinTolerance(d("10.00"), d("10.00"), decimal.Zero) {
		t.Fatal("equal prices rejected")
	}
	if withinTolerance(d("9.99"), d("10.00"), decimal.Zero) {
		t.Fatal("stale price accepted with zero tolerance")
	}
	if !withinTolerance(d("9.99"), d("10.00"), d("0.01")) {
		t.Fatal("price inside tolerance rejected")
	}
}

func TestAttemptAdvance(t *testing.T) {
	t.Parallel()

	a := &attempt{state: StateValidating, log: zap.NewNop()}
	for _, next := range []State{StateReserving, StateAwaitingPayment, StateCommitting, StateSucceeded} {
		if err := a.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}

	cases := []struct{ from, to State }{
		{StateValidating, StateCommitting},
		{StateReserving, StateSucceeded},
		{StateCommitting, StateReleased},
		{StateSucceeded, StateReconciling},
		{StateReleased, StateReserving},
	}
	for _, tc := range cases {
		a := &attempt{state: tc.from, log: zap.NewNop()}
		if err := a.advance(tc.to); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("%s -> %s: err = %v, want ErrIllegalTransition", tc.from, tc.to, err)
		}
	}
}
