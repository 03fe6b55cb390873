package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type contextKey string

const sessionContextKey contextKey = "github.com/getreststore/api/internal/platform/auth/session"

// WithSession stores the verified session claims within the context for downstream handlers.
func WithSession(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, sessionContextKey, claims)
}

// SessionFromContext retrieves the claims previously stored in context.
func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(sessionContextKey).(*SessionClaims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}

// RequireAdmin verifies the admin session cookie and rejects requests without a
// valid, unexpired token.
func (m *SessionManager) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "session service unavailable")
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "admin session cookie missing")
				return
			}

			claims, err := m.Verify(cookie.Value)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			ctx := WithSession(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "admin session expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "admin session invalid")
	}
}
