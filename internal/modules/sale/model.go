package sale

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/printa-pos/internal/modules/payment"
)

// Outcome is the typed result of a sale attempt.
type Outcome string

const (
	OutcomeSucceeded         Outcome = "succeeded"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomePaymentDeclined   Outcome = "payment_declined"
	// OutcomeIndeterminate means the payment may or may not have been taken.
	// The attempt is queued for reconciliation; never resubmit with a new key.
	OutcomeIndeterminate   Outcome = "indeterminate"
	OutcomeConflict        Outcome = "conflict"
	OutcomeValidationError Outcome = "validation_error"
)

// Terminal reports whether the outcome is final for its request key.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSucceeded, OutcomeInsufficientStock, OutcomePaymentDeclined:
		return true
	}
	return false
}

// State is a step of the checkout state machine.
type State string

const (
	StateValidating      State = "validating"
	StateReserving       State = "reserving"
	StateAwaitingPayment State = "awaiting_payment"
	StateCommitting      State = "committing"
	StateSucceeded       State = "succeeded"
	StateReleased        State = "released"
	StateReconciling     State = "reconciling"
)

var validTransitions = map[State][]State{
	// A resumed attempt may already have taken payment, so it can park
	// for reconciliation from any step.
	StateValidating:      {StateReserving, StateReleased, StateReconciling},
	StateReserving:       {StateAwaitingPayment, StateReleased, StateReconciling},
	StateAwaitingPayment: {StateCommitting, StateReleased, StateReconciling},
	StateCommitting:      {StateSucceeded, StateReconciling},
	StateSucceeded:       {},
	StateReleased:        {},
	StateReconciling:     {},
}

// Item is one cart line as submitted by the register.
type Item struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Request is a checkout submission. RequestKey is generated by the client
// once per logical sale and reused on every retry of it.
type Request struct {
	RequestKey            string         `json:"request_key"`
	SessionID             uuid.UUID      `json:"session_id"`
	LocationID            uuid.UUID      `json:"location_id"`
	Items                 []Item         `json:"items"`
	PaymentMethod         payment.Method `json:"payment_method"`
	CustomerID            *uuid.UUID     `json:"customer_id,omitempty"`
	LoyaltyPointsToRedeem int64          `json:"loyalty_points_to_redeem,omitempty"`
}

// Sale is the immutable record of a completed checkout.
type Sale struct {
	ID                    uuid.UUID       `json:"id"`
	RequestKey            string          `json:"request_key"`
	SessionID             uuid.UUID       `json:"session_id"`
	LocationID            uuid.UUID       `json:"location_id"`
	Items                 []*SaleItem     `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	Total                 decimal.Decimal `json:"total"`
	Currency              string          `json:"currency"`
	PaymentMethod         payment.Method  `json:"payment_method"`
	PaymentReference      *string         `json:"payment_reference,omitempty"`
	Payment               *Payment        `json:"payment,omitempty"`
	CustomerID            *uuid.UUID      `json:"customer_id,omitempty"`
	LoyaltyPointsRedeemed int64           `json:"loyalty_points_redeemed"`
	LoyaltyPointsEarned   int64           `json:"loyalty_points_earned"`
	CreatedAt             time.Time       `json:"created_at"`
}

// SaleItem is a committed line; it points at the hold it consumed.
type SaleItem struct {
	ID            uuid.UUID       `json:"id"`
	SaleID        uuid.UUID       `json:"sale_id"`
	Line          int             `json:"line"`
	ProductID     uuid.UUID       `json:"product_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	ReservationID uuid.UUID       `json:"reservation_id"`
}

// Payment records how the sale was settled.
type Payment struct {
	ID        uuid.UUID       `json:"id"`
	SaleID    uuid.UUID       `json:"sale_id"`
	Method    payment.Method  `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	AuthCode  string          `json:"auth_code,omitempty"`
	CardLast4 string          `json:"card_last4,omitempty"`
	CardType  string          `json:"card_type,omitempty"`
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
}

// LineFailure explains why one cart line could not be held.
type LineFailure struct {
	Line      int       `json:"line"`
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Result is what createSale hands back, identical on every replay of a key.
type Result struct {
	Outcome             Outcome       `json:"outcome"`
	SaleID              *uuid.UUID    `json:"sale_id,omitempty"`
	Sale                *Sale         `json:"sale,omitempty"`
	ReservationFailures []LineFailure `json:"reservation_failures,omitempty"`
	Reason              string        `json:"reason,omitempty"`
	ReconciliationID    *uuid.UUID    `json:"reconciliation_id,omitempty"`
}

// CompletedEvent is published for every committed sale.
type CompletedEvent struct {
	SaleID        uuid.UUID       `json:"sale_id"`
	RequestKey    string          `json:"request_key"`
	SessionID     uuid.UUID       `json:"session_id"`
	LocationID    uuid.UUID       `json:"location_id"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	PaymentMethod payment.Method  `json:"payment_method"`
	CustomerID    *uuid.UUID      `json:"customer_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// ReconciliationEvent is published when an attempt is parked for follow-up.
type ReconciliationEvent struct {
	EntryID    uuid.UUID `json:"entry_id"`
	RequestKey string    `json:"request_key"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

var (
	ErrSaleNotFound        = errors.New("sale not found")
	ErrDuplicateSale       = errors.New("a sale already exists for this request key")
	ErrEmptyCart           = errors.New("cart must contain at least one item")
	ErrInvalidQuantity     = errors.New("quantities must be greater than zero")
	ErrInvalidMethod       = errors.New("payment method must be cash or card")
	ErrSessionRequired     = errors.New("session_id is required")
	ErrLocationRequired    = errors.New("location_id is required")
	ErrSessionNotOpen      = errors.New("session is not open")
	ErrSessionLocation     = errors.New("session belongs to a different location")
	ErrStalePrice          = errors.New("submitted price differs from the current catalog price")
	ErrNegativePoints      = errors.New("loyalty points to redeem must not be negative")
	ErrRedeemNeedsCustomer = errors.New("redeeming points requires a customer")
	ErrInsufficientPoints  = errors.New("customer does not have enough loyalty points")
	ErrRedeemExceedsTotal  = errors.New("loyalty discount exceeds the subtotal")
	ErrKeyReused           = errors.New("request key was already used with a different request")
	ErrNothingToConfirm    = errors.New("no pending attempt exists for this request key")
	ErrAttemptRunning      = errors.New("an attempt with this request key is still in progress")
	ErrIllegalTransition   = errors.New("illegal sale state transition")
)
