package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/facegate/facegate/internal/api/response"
)

// bearerToken extracts the token from an Authorization header.
// Expected format: "Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}

	return parts[1], parts[1] != ""
}

// Auth middleware validates the service API key from the Authorization header.
// It guards the system-scope and admin surfaces.
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				response.RespondUnauthorized(w, "Missing or malformed Authorization header. Expected: Bearer <api-key>")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				response.RespondUnauthorized(w, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
