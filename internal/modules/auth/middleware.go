package auth

import (
	"net/http"
	"strings"

	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller's claims on the request context.
func Middleware(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				web.Error(w, http.StatusUnauthorized, web.CodeUnauthorized, "missing bearer token")
				return
			}
			claims, err := svc.Parse(raw)
			if err != nil {
				web.Error(w, http.StatusUnauthorized, web.CodeUnauthorized, ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Anonymous treats every request as coming from an operator with role.
// Used when authentication is switched off for local development.
func Anonymous(role Role) func(http.Handler) http.Handler {
	claims := &Claims{Role: role}
	claims.Subject = "anonymous"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole lets through callers holding one of roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok {
				web.Error(w, http.StatusUnauthorized, web.CodeUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			web.Error(w, http.StatusForbidden, web.CodeForbidden, "insufficient role")
		})
	}
}
