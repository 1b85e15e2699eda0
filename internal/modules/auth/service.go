package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/printa-pos/internal/clock"
)

// Service defines the interface for authentication-related business logic.
type Service interface {
	Login(ctx context.Context, email, password string) (*Token, error)
	// Parse validates a signed token and returns its claims.
	Parse(token string) (*Claims, error)
}

type service struct {
	store  CredentialStore
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewService creates a new auth service signing HS256 tokens with secret.
func NewService(store CredentialStore, secret string, ttl time.Duration, clk clock.Clock) Service {
	return &service{store: store, secret: []byte(secret), ttl: ttl, clock: clk}
}

func (s *service) Login(ctx context.Context, email, password string) (*Token, error) {
	creds, err := s.store.CredentialsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.clock.Now()
	expirationTime := now.Add(s.ttl)
	claims := &Claims{
		Role: creds.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   creds.UserID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: expirationTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresAt:   expirationTime.Unix(),
		Role:        creds.Role,
	}, nil
}

func (s *service) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
