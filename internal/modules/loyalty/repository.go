package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetAccount(ctx context.Context, customerID uuid.UUID) (*Account, error)
	// AddToBalance applies delta to the account, creating it on first credit.
	// A result below zero fails with ErrInsufficientPoints and changes nothing.
	AddToBalance(ctx context.Context, customerID uuid.UUID, delta int64, at time.Time) (int64, error)
	AppendEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, customerID uuid.UUID, limit int) ([]*Entry, error)
}
