package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

const principalColumns = `id, kind, tenant_id, email, full_name, role, password_hash, face_auth_enabled, deleted, created_at`

// PrincipalsRepository handles data access for principals.
type PrincipalsRepository struct {
	db *pgxpool.Pool
}

// NewPrincipalsRepository creates a new principals repository.
func NewPrincipalsRepository(db *pgxpool.Pool) *PrincipalsRepository {
	return &PrincipalsRepository{db: db}
}

// scopeCondition returns the WHERE fragment selecting principals of one scope,
// starting at the given placeholder index.
func scopeCondition(scope models.Scope, argCount int) (condition string, args []any) {
	if scope.IsSystem() {
		return fmt.Sprintf("kind = $%d", argCount), []any{models.PrincipalKindSystemAccount}
	}

	return fmt.Sprintf("kind = $%d AND tenant_id = $%d", argCount, argCount+1),
		[]any{models.PrincipalKindTenantUser, *scope.TenantID}
}

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal

	err := row.Scan(
		&p.ID, &p.Kind, &p.TenantID, &p.Email, &p.FullName, &p.Role,
		&p.PasswordHash, &p.FaceAuthEnabled, &p.Deleted, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// Create inserts a new principal.
func (r *PrincipalsRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	query := `
		INSERT INTO principals (kind, tenant_id, email, full_name, role, password_hash, face_auth_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + principalColumns

	created, err := scanPrincipal(r.db.QueryRow(ctx, query,
		p.Kind, p.TenantID, p.Email, p.FullName, p.Role, p.PasswordHash, p.FaceAuthEnabled,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create principal: %w", err)
	}

	return created, nil
}

// GetByID retrieves a single principal by ID, including soft-deleted ones.
func (r *PrincipalsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`

	principal, err := scanPrincipal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("principal", "principal not found")
		}

		return nil, fmt.Errorf("failed to get principal: %w", err)
	}

	return principal, nil
}

// GetByEmail retrieves a principal by email within a scope, including
// soft-deleted ones so enrollment can reactivate them.
func (r *PrincipalsRepository) GetByEmail(ctx context.Context, scope models.Scope, email string) (*models.Principal, error) {
	condition, args := scopeCondition(scope, 1)
	args = append(args, email)

	query := fmt.Sprintf(
		`SELECT `+principalColumns+` FROM principals WHERE %s AND email = $%d`,
		condition, len(args),
	)

	principal, err := scanPrincipal(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("principal", "principal not found")
		}

		return nil, fmt.Errorf("failed to get principal by email: %w", err)
	}

	return principal, nil
}

// List retrieves the principals of a scope ordered by creation time.
// Soft-deleted principals are included; callers filter on Deleted if needed.
func (r *PrincipalsRepository) List(ctx context.Context, scope models.Scope) ([]models.Principal, error) {
	condition, args := scopeCondition(scope, 1)

	query := fmt.Sprintf(
		`SELECT `+principalColumns+` FROM principals WHERE %s ORDER BY created_at DESC`,
		condition,
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	principals := []models.Principal{} // Initialize as empty slice, not nil

	for rows.Next() {
		var p models.Principal

		err := rows.Scan(
			&p.ID, &p.Kind, &p.TenantID, &p.Email, &p.FullName, &p.Role,
			&p.PasswordHash, &p.FaceAuthEnabled, &p.Deleted, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}

		principals = append(principals, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating principals: %w", err)
	}

	return principals, nil
}

// SetDeleted soft-deletes or reactivates a principal. History (attempts,
// profiles) is preserved either way.
func (r *PrincipalsRepository) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	result, err := r.db.Exec(ctx, `UPDATE principals SET deleted = $1 WHERE id = $2`, deleted, id)
	if err != nil {
		return fmt.Errorf("failed to update principal deleted flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return gateerrors.NewNotFoundError("principal", "principal not found")
	}

	return nil
}

// SetFaceAuthEnabled toggles face authentication for a system account.
func (r *PrincipalsRepository) SetFaceAuthEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.db.Exec(ctx, `UPDATE principals SET face_auth_enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update principal face auth flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return gateerrors.NewNotFoundError("principal", "principal not found")
	}

	return nil
}

// SetPasswordHash replaces a principal's credential hash.
func (r *PrincipalsRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `UPDATE principals SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update principal password hash: %w", err)
	}

	if result.RowsAffected() == 0 {
		return gateerrors.NewNotFoundError("principal", "principal not found")
	}

	return nil
}
