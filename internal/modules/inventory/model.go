package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Location is a physical store whose stock is tracked independently.
type Location struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record is the stock position of one product at one location.
// Reserved never exceeds OnHand.
type Record struct {
	ProductID  uuid.UUID `json:"product_id"`
	LocationID uuid.UUID `json:"location_id"`
	OnHand     int       `json:"on_hand"`
	Reserved   int       `json:"reserved"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Available is what a new reservation is checked against.
func (r Record) Available() int { return r.OnHand - r.Reserved }

// ReservationStatus is the lifecycle of a hold.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

// Reservation is a time-bounded hold on stock taken for one cart line.
type Reservation struct {
	ID         uuid.UUID         `json:"id"`
	ProductID  uuid.UUID         `json:"product_id"`
	LocationID uuid.UUID         `json:"location_id"`
	Quantity   int               `json:"quantity"`
	RequestKey string            `json:"request_key"`
	Line       int               `json:"line"`
	Status     ReservationStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	ClosedAt   *time.Time        `json:"closed_at,omitempty"`
}

// ReserveRequest holds one cart line's claim.
type ReserveRequest struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Quantity   int
	RequestKey string
	Line       int
}

type CreateLocationRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

var (
	ErrLocationNotFound       = errors.New("location not found")
	ErrRecordNotFound         = errors.New("inventory record not found")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrReservationCommitted   = errors.New("reservation already committed")
	ErrReservationClosed      = errors.New("reservation is no longer active")
	ErrDuplicateReservation   = errors.New("an active reservation already exists for this line")
	ErrInvalidQuantity        = errors.New("quantity must be greater than zero")
	ErrInvalidDelta           = errors.New("delta must not be zero")
	ErrNameRequired           = errors.New("name is required")
	ErrOnHandBelowReservation = errors.New("on-hand quantity cannot drop below reserved quantity")
)

// InsufficientStockError reports a reserve that could not be satisfied.
type InsufficientStockError struct {
	ProductID  uuid.UUID `json:"product_id"`
	LocationID uuid.UUID `json:"location_id"`
	Requested  int       `json:"requested"`
	Available  int       `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// IsInsufficientStock reports whether err is (or wraps) an InsufficientStockError.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
