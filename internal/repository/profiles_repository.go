package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

// ProfilesRepository handles data access for face profiles. Profiles are
// append-only; the only mutation is flipping the active flag.
type ProfilesRepository struct {
	db *pgxpool.Pool
}

// NewProfilesRepository creates a new profiles repository.
func NewProfilesRepository(db *pgxpool.Pool) *ProfilesRepository {
	return &ProfilesRepository{db: db}
}

func createProfile(ctx context.Context, q queryer, profile *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (principal_id, embedding, provenance, image_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, principal_id, active, provenance, image_ref, created_at
	`

	var created models.Profile

	err := q.QueryRow(ctx, query,
		profile.PrincipalID, pgvector.NewVector(profile.Embedding), profile.Provenance, profile.ImageRef,
	).Scan(
		&created.ID, &created.PrincipalID, &created.Active,
		&created.Provenance, &created.ImageRef, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	created.Embedding = profile.Embedding

	return &created, nil
}

// Create inserts a new active profile.
func (r *ProfilesRepository) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	return createProfile(ctx, r.db, profile)
}

// CreateTx inserts a new active profile inside a caller-owned transaction.
func (r *ProfilesRepository) CreateTx(ctx context.Context, tx pgx.Tx, profile *models.Profile) (*models.Profile, error) {
	return createProfile(ctx, tx, profile)
}

// GetByID retrieves a single profile by ID.
func (r *ProfilesRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT id, principal_id, embedding, active, provenance, image_ref, created_at
		FROM profiles
		WHERE id = $1
	`

	var profile models.Profile

	var vec pgvector.Vector

	err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID, &profile.PrincipalID, &vec, &profile.Active,
		&profile.Provenance, &profile.ImageRef, &profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("profile", "profile not found")
		}

		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.Embedding = vec.Slice()

	return &profile, nil
}

// ListActiveByScope loads the matching pool for a scope in one consistent
// query: every active profile owned by an eligible principal. System accounts
// are eligible when face auth is enabled, tenant users when not soft-deleted.
func (r *ProfilesRepository) ListActiveByScope(ctx context.Context, scope models.Scope) ([]models.ActiveProfile, error) {
	var query string

	var args []any

	if scope.IsSystem() {
		query = `
			SELECT pr.id, pr.principal_id, pr.embedding
			FROM profiles pr
			JOIN principals p ON p.id = pr.principal_id
			WHERE pr.active
			  AND p.kind = $1
			  AND p.face_auth_enabled
		`
		args = []any{models.PrincipalKindSystemAccount}
	} else {
		query = `
			SELECT pr.id, pr.principal_id, pr.embedding
			FROM profiles pr
			JOIN principals p ON p.id = pr.principal_id
			WHERE pr.active
			  AND p.kind = $1
			  AND p.tenant_id = $2
			  AND NOT p.deleted
		`
		args = []any{models.PrincipalKindTenantUser, *scope.TenantID}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.ActiveProfile{} // Initialize as empty slice, not nil

	for rows.Next() {
		var ap models.ActiveProfile

		var vec pgvector.Vector

		if err := rows.Scan(&ap.ProfileID, &ap.PrincipalID, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan active profile: %w", err)
		}

		ap.Embedding = vec.Slice()

		profiles = append(profiles, ap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active profiles: %w", err)
	}

	return profiles, nil
}

// ListByPrincipal retrieves all profiles owned by a principal, active or not,
// newest first.
func (r *ProfilesRepository) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]models.Profile, error) {
	query := `
		SELECT id, principal_id, embedding, active, provenance, image_ref, created_at
		FROM profiles
		WHERE principal_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{} // Initialize as empty slice, not nil

	for rows.Next() {
		var profile models.Profile

		var vec pgvector.Vector

		err := rows.Scan(
			&profile.ID, &profile.PrincipalID, &vec, &profile.Active,
			&profile.Provenance, &profile.ImageRef, &profile.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}

		profile.Embedding = vec.Slice()

		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// DeactivateByPrincipal marks all of a principal's profiles inactive and
// returns how many rows changed. Forced re-enrollment runs this before
// inserting the replacement profile.
func (r *ProfilesRepository) DeactivateByPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE profiles SET active = false WHERE principal_id = $1 AND active`,
		principalID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate profiles: %w", err)
	}

	return result.RowsAffected(), nil
}
