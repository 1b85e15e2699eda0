package loyalty

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Account is a customer's materialised points balance. It never goes negative.
type Account struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Balance    int64     `json:"balance"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type EntryKind string

const (
	KindRedeem EntryKind = "redeem"
	KindEarn   EntryKind = "earn"
	KindAdjust EntryKind = "adjust"
)

// Entry is one append-only movement of points. Points is signed.
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	SaleID     *uuid.UUID `json:"sale_id,omitempty"`
	Kind       EntryKind  `json:"kind"`
	Points     int64      `json:"points"`
	Note       string     `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AdjustRequest struct {
	Points int64  `json:"points"`
	Note   string `json:"note"`
}

var (
	ErrAccountNotFound    = errors.New("loyalty account not found")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrInvalidPoints      = errors.New("points must not be negative")
	ErrZeroAdjustment     = errors.New("adjustment must not be zero")
	ErrNoteRequired       = errors.New("adjustments require a note")
)
