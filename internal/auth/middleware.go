package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/HerbHall/heartbeat/internal/server"
)

type claimsKey struct{}

// ClaimsFromContext returns the validated claims of the request, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// RequireToken rejects requests without a valid bearer token. A nil
// service disables the check.
func RequireToken(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				server.Unauthorized(w, "missing bearer token", r.URL.Path)
				return
			}
			claims, err := tokens.Validate(raw)
			if err != nil {
				server.Unauthorized(w, "invalid or expired token", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
