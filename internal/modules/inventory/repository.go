package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LocationRepository stores locations.
type LocationRepository interface {
	CreateLocation(ctx context.Context, l *Location) error
	GetLocation(ctx context.Context, id uuid.UUID) (*Location, error)
}

// Repository stores stock records and reservations. The ForUpdate methods
// lock the row until the surrounding transaction ends; callers take the
// record lock before any reservation lock.
type Repository interface {
	GetRecord(ctx context.Context, productID, locationID uuid.UUID) (*Record, error)
	GetRecordForUpdate(ctx context.Context, productID, locationID uuid.UUID) (*Record, error)
	CreateRecord(ctx context.Context, rec *Record) error
	UpdateRecord(ctx context.Context, rec *Record) error

	CreateReservation(ctx context.Context, res *Reservation) error
	GetReservation(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error)
	UpdateReservation(ctx context.Context, res *Reservation) error
	ListReservationsByRequestKey(ctx context.Context, requestKey string) ([]*Reservation, error)
	// ListExpired returns active reservations whose expiry is at or before now.
	// A zero productID lists across all products.
	ListExpired(ctx context.Context, productID, locationID uuid.UUID, now time.Time, limit int) ([]*Reservation, error)
	ExtendActive(ctx context.Context, requestKey string, until time.Time) (int, error)
}
