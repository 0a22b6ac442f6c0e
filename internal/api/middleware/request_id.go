package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// RequestID is the outermost middleware. Every request leaves with an
// X-Request-ID response header and carries the same ID in context, where the
// logging handler picks it up. A client-supplied ID is kept so attempt rows
// can be correlated with caller-side logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}

		ctx := context.WithValue(r.Context(), observability.RequestIDKey, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
