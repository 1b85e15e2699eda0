package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/auth"
)

// Service defines the interface for user-related business logic.
type Service interface {
	RegisterUser(ctx context.Context, req RegisterRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	// EnsureManager creates a manager account for email unless one exists.
	EnsureManager(ctx context.Context, email, password string) error
	auth.CredentialStore
}

type service struct {
	repo   Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewService creates a new user service.
func NewService(repo Repository, clk clock.Clock, logger *zap.Logger) Service {
	return &service{repo: repo, clock: clk, logger: logger}
}

func (s *service) RegisterUser(ctx context.Context, req RegisterRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}
	role := req.Role
	if role == "" {
		role = auth.RoleCashier
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *service) EnsureManager(ctx context.Context, email, password string) error {
	_, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	u, err := s.RegisterUser(ctx, RegisterRequest{Email: email, Password: password, Role: auth.RoleManager})
	if errors.Is(err, ErrDuplicateEmail) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("seeded manager account", zap.String("user_id", u.ID.String()))
	return nil
}

func (s *service) CredentialsByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &auth.Credentials{UserID: u.ID, PasswordHash: u.PasswordHash, Role: u.Role}, nil
}
