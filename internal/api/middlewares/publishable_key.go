package middleware

import (
	"crypto/subtle"
	"net/http"
)

const PublishableKeyHeader = "X-Publishable-Key"

// PublishableKey rejects requests whose X-Publishable-Key does not belong to
// this project. An empty key disables the check.
func PublishableKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(PublishableKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, "unknown project", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
