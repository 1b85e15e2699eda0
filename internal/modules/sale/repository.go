package sale

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists sales together with their items and payment.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	Get(ctx context.Context, id uuid.UUID) (*Sale, error)
	GetByRequestKey(ctx context.Context, requestKey string) (*Sale, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Sale, error)
}
