package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Session is one register shift and its running totals.
// TotalCash + TotalCard always equals TotalSales.
type Session struct {
	ID                uuid.UUID        `json:"id"`
	LocationID        uuid.UUID        `json:"location_id"`
	RegisterID        string           `json:"register_id"`
	CashierID         *uuid.UUID       `json:"cashier_id,omitempty"`
	Status            Status           `json:"status"`
	OpeningBalance    decimal.Decimal  `json:"opening_balance"`
	TotalSales        decimal.Decimal  `json:"total_sales"`
	TotalCash         decimal.Decimal  `json:"total_cash"`
	TotalCard         decimal.Decimal  `json:"total_card"`
	TotalTransactions int              `json:"total_transactions"`
	ExpectedBalance   *decimal.Decimal `json:"expected_balance,omitempty"`
	ClosingBalance    *decimal.Decimal `json:"closing_balance,omitempty"`
	Variance          *decimal.Decimal `json:"variance,omitempty"`
	OpenedAt          time.Time        `json:"opened_at"`
	ClosedAt          *time.Time       `json:"closed_at,omitempty"`
}

// IsOpen reports whether sales may still be applied.
func (s *Session) IsOpen() bool { return s.Status == StatusOpen }

// Delta is one sale's contribution to the running totals.
type Delta struct {
	Sales        decimal.Decimal
	Cash         decimal.Decimal
	Card         decimal.Decimal
	Transactions int
}

type OpenRequest struct {
	LocationID     uuid.UUID       `json:"location_id"`
	RegisterID     string          `json:"register_id"`
	CashierID      *uuid.UUID      `json:"cashier_id,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type CloseRequest struct {
	CountedBalance decimal.Decimal `json:"counted_balance"`
}

// ClosedEvent is published when a shift ends.
type ClosedEvent struct {
	SessionID         uuid.UUID       `json:"session_id"`
	LocationID        uuid.UUID       `json:"location_id"`
	RegisterID        string          `json:"register_id"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalCash         decimal.Decimal `json:"total_cash"`
	TotalCard         decimal.Decimal `json:"total_card"`
	TotalTransactions int             `json:"total_transactions"`
	ExpectedBalance   decimal.Decimal `json:"expected_balance"`
	ClosingBalance    decimal.Decimal `json:"closing_balance"`
	Variance          decimal.Decimal `json:"variance"`
	ClosedAt          time.Time       `json:"closed_at"`
}

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionClosed       = errors.New("session is closed")
	ErrSessionOpen         = errors.New("session is still open")
	ErrRegisterBusy        = errors.New("register already has an open session")
	ErrRegisterRequired    = errors.New("register_id is required")
	ErrLocationRequired    = errors.New("location_id is required")
	ErrNegativeBalance     = errors.New("balance must not be negative")
	ErrNegativeAmount      = errors.New("sale amount must not be negative")
	ErrUnknownPaymentRoute = errors.New("payment method has no session bucket")
)
