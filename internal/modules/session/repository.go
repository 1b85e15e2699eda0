package session

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error)
	// Increment adds d to an open session's totals in one statement.
	// It returns ErrSessionClosed when the session is no longer open.
	Increment(ctx context.Context, id uuid.UUID, d Delta) error
	// IncrementClosed adds d to a closed session. Cash raises the expected
	// balance and lowers the variance by the same amount. It returns
	// ErrSessionOpen when the session has not closed yet.
	IncrementClosed(ctx context.Context, id uuid.UUID, d Delta) error
	// Close persists the closing figures of an open session.
	Close(ctx context.Context, s *Session) error
}
