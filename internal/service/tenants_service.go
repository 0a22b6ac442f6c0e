package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
	"github.com/facegate/facegate/pkg/cache"
)

// tokenCacheSize bounds the app-token resolution cache. Every tenant-surface
// request resolves a token, so the hot set is one entry per active tenant.
const tokenCacheSize = 1000

// TenantsRepository defines the interface for tenant data access.
type TenantsRepository interface {
	Create(ctx context.Context, name, apiToken string, confidence, fallback float64) (*models.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByAPIToken(ctx context.Context, apiToken string) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateTenantRequest) (*models.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TenantsService handles business logic for tenants.
type TenantsService struct {
	repo       TenantsRepository
	tokenCache *cache.LoaderCache[string, *models.Tenant]
	logger     *slog.Logger
}

// NewTenantsService creates a new tenants service.
func NewTenantsService(repo TenantsRepository, logger *slog.Logger) *TenantsService {
	// Cache creation fails only for a non-positive size.
	tokenCache, err := cache.NewLoaderCache[string, *models.Tenant](tokenCacheSize, func(s string) string { return s })
	if err != nil {
		panic(fmt.Sprintf("create token cache: %v", err))
	}

	return &TenantsService{repo: repo, tokenCache: tokenCache, logger: logger}
}

// GenerateAPIToken returns a random 32-character token from an alphanumeric
// charset, using rejection sampling for uniformity.
func GenerateAPIToken() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	const tokenLength = 32

	charsetLen := len(charset)
	maxValidByte := byte((255 / charsetLen) * charsetLen)

	token := make([]byte, tokenLength)
	randomByte := make([]byte, 1)

	for i := range token {
		for {
			if _, err := rand.Read(randomByte); err != nil {
				return "", fmt.Errorf("failed to generate api token: %w", err)
			}

			if randomByte[0] < maxValidByte {
				token[i] = charset[int(randomByte[0])%charsetLen]

				break
			}
		}
	}

	return string(token), nil
}

// validateThresholds enforces the classifier invariant on a threshold pair.
func validateThresholds(confidence, fallback float64) error {
	if confidence < 0 || confidence > fallback || fallback > 2 {
		return gateerrors.NewValidationError("thresholds",
			fmt.Sprintf("need 0 <= confidence (%v) <= fallback (%v) <= 2", confidence, fallback))
	}

	return nil
}

// CreateTenant creates a tenant with a server-generated API token. Omitted
// thresholds fall back to the defaults.
func (s *TenantsService) CreateTenant(ctx context.Context, req *models.CreateTenantRequest) (*models.Tenant, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, gateerrors.NewValidationError("name", "name is required")
	}

	confidence := models.DefaultConfidenceThreshold
	if req.ConfidenceThreshold != nil {
		confidence = *req.ConfidenceThreshold
	}

	fallback := models.DefaultFallbackThreshold
	if req.FallbackThreshold != nil {
		fallback = *req.FallbackThreshold
	}

	if err := validateThresholds(confidence, fallback); err != nil {
		return nil, err
	}

	token, err := GenerateAPIToken()
	if err != nil {
		return nil, err
	}

	tenant, err := s.repo.Create(ctx, req.Name, token, confidence, fallback)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tenant created", "tenant_id", tenant.ID, "name", tenant.Name)

	return tenant, nil
}

// GetTenant retrieves a single tenant by ID.
func (s *TenantsService) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// ResolveByAPIToken resolves a tenant API token to its tenant. Used by the
// tenant-facing middleware on every request, so resolutions are cached;
// concurrent misses for the same token coalesce into one lookup. Unknown
// tokens are not cached.
func (s *TenantsService) ResolveByAPIToken(ctx context.Context, apiToken string) (*models.Tenant, error) {
	if apiToken == "" {
		return nil, gateerrors.NewNotFoundError("tenant", "tenant not found")
	}

	return s.tokenCache.Get(ctx, apiToken, func(ctx context.Context, token string) (*models.Tenant, error) {
		return s.repo.GetByAPIToken(ctx, token)
	})
}

// ListTenants retrieves all tenants.
func (s *TenantsService) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	return s.repo.List(ctx)
}

// UpdateTenant updates a tenant's name and thresholds. The resulting threshold
// pair must satisfy the classifier invariant, so a partial update is validated
// against the stored values.
func (s *TenantsService) UpdateTenant(ctx context.Context, id uuid.UUID, req *models.UpdateTenantRequest) (*models.Tenant, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, gateerrors.NewValidationError("name", "name must not be empty")
	}

	if req.ConfidenceThreshold != nil || req.FallbackThreshold != nil {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		confidence := current.ConfidenceThreshold
		if req.ConfidenceThreshold != nil {
			confidence = *req.ConfidenceThreshold
		}

		fallback := current.FallbackThreshold
		if req.FallbackThreshold != nil {
			fallback = *req.FallbackThreshold
		}

		if err := validateThresholds(confidence, fallback); err != nil {
			return nil, err
		}
	}

	tenant, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	// Threshold changes must reach the tenant surface; the token is not
	// known here without another lookup, so drop the whole cache.
	s.tokenCache.InvalidateAll()

	return tenant, nil
}

// DeleteTenant removes a tenant and everything scoped under it.
func (s *TenantsService) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.tokenCache.InvalidateAll()

	s.logger.Info("tenant deleted", "tenant_id", id)

	return nil
}
