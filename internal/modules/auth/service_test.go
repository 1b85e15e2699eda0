package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/modules/auth"
)

type staticStore map[string]*auth.Credentials

func (s staticStore) CredentialsByEmail(_ context.Context, email string) (*auth.Credentials, error) {
	c, ok := s[email]
	if !ok {
		return nil, auth.ErrInvalidCredentials
	}
	return c, nil
}

func newAuth(t *testing.T, role auth.Role) (auth.Service, uuid.UUID) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	id := uuid.New()
	store := staticStore{"ops@example.com": {UserID: id, PasswordHash: string(hash), Role: role}}
	return auth.NewService(store, "test-secret", time.Hour, clock.NewSystem()), id
}

func TestLoginAndParse(t *testing.T) {
	svc, id := newAuth(t, auth.RoleManager)
	ctx := context.Background()

	tok, err := svc.Login(ctx, "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.TokenType != "Bearer" || tok.Role != auth.RoleManager {
		t.Fatalf("token = %+v", tok)
	}

	claims, err := svc.Parse(tok.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := claims.UserID()
	if err != nil || got != id {
		t.Fatalf("subject = %s (%v), want %s", got, err, id)
	}

	if _, err := svc.Login(ctx, "ops@example.com", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "s3cret-pass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v", err)
	}
}

func TestParse_RejectsForeignSignature(t *testing.T) {
	svc, _ := newAuth(t, auth.RoleCashier)
	other := auth.NewService(staticStore{}, "another-secret", time.Hour, clock.NewSystem())

	tok, err := svc.Login(context.Background(), "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := other.Parse(tok.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := svc.Parse("not-a-token"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("garbage err = %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc, _ := newAuth(t, auth.RoleCashier)
	tok, err := svc.Login(context.Background(), "ops@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	cashierOnly := auth.Middleware(svc)(ok)
	managerOnly := auth.Middleware(svc)(auth.RequireRole(auth.RoleManager)(ok))

	cases := []struct {
		name    string
		handler http.Handler
		header  string
		want    int
	}{
		{"no token", cashierOnly, "", http.StatusUnauthorized},
		{"bad token", cashierOnly, "Bearer nope", http.StatusUnauthorized},
		{"valid token", cashierOnly, "Bearer " + tok.AccessToken, http.StatusNoContent},
		{"wrong role", managerOnly, "Bearer " + tok.AccessToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		tc.handler.ServeHTTP(w, r)
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestAnonymous(t *testing.T) {
	h := auth.Anonymous(auth.RoleManager)(auth.RequireRole(auth.RoleManager)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}
