package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/facegate/facegate/internal/api/response"
	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

type scopeContextKey struct{}

// ScopeContext carries the resolved matching scope and its thresholds through
// the request.
type ScopeContext struct {
	Scope      models.Scope
	Thresholds models.Thresholds
}

// ScopeFrom returns the scope context set by SystemScope or TenantScope.
func ScopeFrom(ctx context.Context) (ScopeContext, bool) {
	sc, ok := ctx.Value(scopeContextKey{}).(ScopeContext)

	return sc, ok
}

func withScope(r *http.Request, sc ScopeContext) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), scopeContextKey{}, sc))
}

// SystemScope binds requests to the global system-account pool with the
// configured thresholds.
func SystemScope(thresholds models.Thresholds) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, withScope(r, ScopeContext{
				Scope:      models.SystemScope(),
				Thresholds: thresholds,
			}))
		})
	}
}

// TenantResolver resolves a tenant API token to its tenant.
type TenantResolver interface {
	ResolveByAPIToken(ctx context.Context, apiToken string) (*models.Tenant, error)
}

// TenantScope resolves the {token} path segment to a tenant and binds the
// request to that tenant's pool and thresholds. An unknown token is a 401, not
// a 404, so tokens cannot be probed apart from other failures.
func TenantScope(tenants TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.PathValue("token")
			if token == "" {
				response.RespondUnauthorized(w, "Missing app token")
				return
			}

			tenant, err := tenants.ResolveByAPIToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, gateerrors.ErrNotFound) {
					response.RespondUnauthorized(w, "Invalid app token")
					return
				}

				response.RespondInternalServerError(w, "An unexpected error occurred")

				return
			}

			next.ServeHTTP(w, withScope(r, ScopeContext{
				Scope: models.TenantScope(tenant.ID),
				Thresholds: models.Thresholds{
					Confidence: tenant.ConfidenceThreshold,
					Fallback:   tenant.FallbackThreshold,
				},
			}))
		})
	}
}
