package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Timeout bounds non-streaming handlers (admin routes) to d. The proxy
// engine's own per-candidate deadline (preferences.model_timeout) governs
// upstream forwarding and is not wrapped by this middleware, since a
// failover loop legitimately spans multiple per-attempt deadlines.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(w, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "request timeout"})
			}
		})
	}
}
