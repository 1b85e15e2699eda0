package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for product storage.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, category string, activeOnly bool) ([]*Product, error)
	Update(ctx context.Context, p *Product) error
}
