package user

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
)

// User is a till operator.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Role         auth.Role `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      auth.Role `json:"role"`
}

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrEmailRequired  = errors.New("email is required")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
	ErrInvalidRole    = errors.New("role must be cashier or manager")
)
