package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Entry, error)
	// GetOpenByKey locks the pending or retried entry of a request key.
	GetOpenByKey(ctx context.Context, requestKey string) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	// List returns entries newest first; an empty status lists all.
	List(ctx context.Context, status Status, limit int) ([]*Entry, error)
	// ListDue returns open entries due at now with fewer than maxAttempts tries.
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*Entry, error)
}
