package idempotency

import "context"

type Repository interface {
	// Insert creates the record and reports false when the key already exists.
	Insert(ctx context.Context, rec *Record) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	GetForUpdate(ctx context.Context, key string) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, key string) error
}
