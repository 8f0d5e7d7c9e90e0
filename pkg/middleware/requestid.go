// Package middleware provides reusable HTTP middleware for request IDs,
// CORS, Prometheus metrics, and request timeouts.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pulsewire/newsplatform/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to the context and response headers,
// honoring an incoming X-Request-ID header when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
