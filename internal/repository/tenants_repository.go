package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

const tenantColumns = `id, name, api_token, confidence_threshold, fallback_threshold, created_at, updated_at`

// TenantsRepository handles data access for tenants.
type TenantsRepository struct {
	db *pgxpool.Pool
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(db *pgxpool.Pool) *TenantsRepository {
	return &TenantsRepository{db: db}
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant

	err := row.Scan(
		&t.ID, &t.Name, &t.APIToken,
		&t.ConfidenceThreshold, &t.FallbackThreshold,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// Create inserts a new tenant with a server-generated API token.
func (r *TenantsRepository) Create(
	ctx context.Context, name, apiToken string, confidence, fallback float64,
) (*models.Tenant, error) {
	query := `
		INSERT INTO tenants (name, api_token, confidence_threshold, fallback_threshold)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tenantColumns

	tenant, err := scanTenant(r.db.QueryRow(ctx, query, name, apiToken, confidence, fallback))
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return tenant, nil
}

// GetByID retrieves a single tenant by ID.
func (r *TenantsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`

	tenant, err := scanTenant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("tenant", "tenant not found")
		}

		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// GetByAPIToken retrieves the tenant owning the given API token. Used by the
// tenant-facing middleware to resolve the caller's scope.
func (r *TenantsRepository) GetByAPIToken(ctx context.Context, apiToken string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE api_token = $1`

	tenant, err := scanTenant(r.db.QueryRow(ctx, query, apiToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("tenant", "tenant not found")
		}

		return nil, fmt.Errorf("failed to get tenant by api token: %w", err)
	}

	return tenant, nil
}

// List retrieves all tenants ordered by creation time.
func (r *TenantsRepository) List(ctx context.Context) ([]models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []models.Tenant{} // Initialize as empty slice, not nil

	for rows.Next() {
		var t models.Tenant

		err := rows.Scan(
			&t.ID, &t.Name, &t.APIToken,
			&t.ConfidenceThreshold, &t.FallbackThreshold,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}

		tenants = append(tenants, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}

	return tenants, nil
}

// buildTenantUpdateQuery builds an UPDATE query from the optional fields of req.
// Returns the query string, arguments, and whether any updates were provided.
func buildTenantUpdateQuery(
	req *models.UpdateTenantRequest, id uuid.UUID, updatedAt time.Time,
) (query string, args []any, hasUpdates bool) {
	var updates []string

	argCount := 1

	if req.Name != nil {
		updates = append(updates, fmt.Sprintf("name = $%d", argCount))
		args = append(args, *req.Name)
		argCount++
	}

	if req.ConfidenceThreshold != nil {
		updates = append(updates, fmt.Sprintf("confidence_threshold = $%d", argCount))
		args = append(args, *req.ConfidenceThreshold)
		argCount++
	}

	if req.FallbackThreshold != nil {
		updates = append(updates, fmt.Sprintf("fallback_threshold = $%d", argCount))
		args = append(args, *req.FallbackThreshold)
		argCount++
	}

	if len(updates) == 0 {
		return "", nil, false
	}

	updates = append(updates, fmt.Sprintf("updated_at = $%d", argCount))
	args = append(args, updatedAt)
	argCount++

	args = append(args, id)

	query = fmt.Sprintf(`
		UPDATE tenants
		SET %s
		WHERE id = $%d
		RETURNING `+tenantColumns,
		strings.Join(updates, ", "), argCount)

	return query, args, true
}

// Update updates a tenant's name and thresholds. The API token is immutable.
func (r *TenantsRepository) Update(
	ctx context.Context, id uuid.UUID, req *models.UpdateTenantRequest,
) (*models.Tenant, error) {
	query, args, hasUpdates := buildTenantUpdateQuery(req, id, time.Now())
	if !hasUpdates {
		return r.GetByID(ctx, id)
	}

	tenant, err := scanTenant(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("tenant", "tenant not found")
		}

		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	return tenant, nil
}

// Delete removes a tenant. Principals, profiles and attempts under the tenant
// are removed by ON DELETE CASCADE.
func (r *TenantsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return gateerrors.NewNotFoundError("tenant", "tenant not found")
	}

	return nil
}
