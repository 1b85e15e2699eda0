package auth

import (
	"context"
	"errors"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// Role decides which operator actions a user may take.
type Role string

const (
	RoleCashier Role = "cashier"
	RoleManager Role = "manager"
)

func (r Role) Valid() bool { return r == RoleCashier || r == RoleManager }

// Claims is the JWT payload issued at login.
type Claims struct {
	Role Role `json:"role"`
	jwt.StandardClaims
}

// UserID returns the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) { return uuid.Parse(c.Subject) }

// Credentials is what login checks a password against.
type Credentials struct {
	UserID       uuid.UUID
	PasswordHash string
	Role         Role
}

// CredentialStore looks up credentials by login email. Unknown emails
// return ErrInvalidCredentials.
type CredentialStore interface {
	CredentialsByEmail(ctx context.Context, email string) (*Credentials, error)
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
	Role        Role   `json:"role"`
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type claimsKey struct{}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// FromContext returns the authenticated caller, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
