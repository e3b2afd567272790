package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"accounting/internal/core"
	"accounting/internal/log"
)

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal set by Authenticate.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

// Authenticate requires a valid bearer access token with a live session.
func (s *Service) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			deny(w, http.StatusUnauthorized, "No token provided")
			return
		}
		p, err := s.Verify(r.Context(), token)
		if err != nil {
			var ae *core.AuthError
			if !errors.As(err, &ae) {
				s.logger.ErrorContext(r.Context(), "Token validation failed",
					log.NewFields().WithError(err).WithOperation(log.OpValidate).ToSlice()...)
				deny(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			deny(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := WithPrincipal(r.Context(), p)
		ctx = log.IntoContext(ctx, log.FromContext(ctx).With("user_id", p.UserID, "user_role", string(p.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize allows only the listed roles.
func Authorize(roles ...core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok || !slices.Contains(roles, p.Role) {
				deny(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := FromContext(r.Context()); !ok || !p.IsAdmin() {
			deny(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
