package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/markdave123-py/CodeInsight/internal/services"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	tokenKey
)

// TokenVerifier checks session tokens.
type TokenVerifier interface {
	ParseToken(token string) (*services.Claims, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTMiddleware validates the Authorization header and attaches the user id to the request context.
func JWTMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing or invalid token", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			claims, err := v.ParseToken(tokenStr)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			revoked, err := v.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				http.Error(w, "could not verify token", http.StatusInternalServerError)
				return
			}
			if revoked {
				http.Error(w, "token revoked", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, tokenKey, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// TokenFromContext returns the raw bearer token of the request.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// WithUserID is used by tests and internal callers that authenticate another way.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
