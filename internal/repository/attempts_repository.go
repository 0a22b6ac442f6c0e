package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

const attemptColumns = `id, tenant_id, image_ref, ip_address, user_agent,
		best_match_principal_id, best_match_distance, initial_status,
		user_feedback, confirmed_principal_id, is_verified_and_correct,
		created_at, reconciled_at`

// AttemptsRepository handles data access for the login attempt ledger.
// Rows are append-only: classification and feedback fields are each written
// once, nothing is ever deleted.
type AttemptsRepository struct {
	db *pgxpool.Pool
}

// NewAttemptsRepository creates a new attempts repository.
func NewAttemptsRepository(db *pgxpool.Pool) *AttemptsRepository {
	return &AttemptsRepository{db: db}
}

// attemptScopeCondition returns the WHERE fragment selecting attempts of one
// scope, starting at the given placeholder index.
func attemptScopeCondition(scope models.Scope, argCount int) (condition string, args []any) {
	if scope.IsSystem() {
		return "tenant_id IS NULL", nil
	}

	return fmt.Sprintf("tenant_id = $%d", argCount), []any{*scope.TenantID}
}

func scanAttempt(row pgx.Row) (*models.LoginAttempt, error) {
	var a models.LoginAttempt

	err := row.Scan(
		&a.ID, &a.TenantID, &a.ImageRef, &a.IPAddress, &a.UserAgent,
		&a.BestMatchPrincipalID, &a.BestMatchDistance, &a.InitialStatus,
		&a.UserFeedback, &a.ConfirmedPrincipalID, &a.IsVerifiedAndCorrect,
		&a.CreatedAt, &a.ReconciledAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// Create inserts a new ledger row before classification runs. The row starts
// with status "error" so a crash mid-classification still leaves a truthful
// record, and feedback "absent".
func (r *AttemptsRepository) Create(ctx context.Context, req *models.CreateLoginAttemptRequest) (*models.LoginAttempt, error) {
	query := `
		INSERT INTO login_attempts (tenant_id, image_ref, ip_address, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + attemptColumns

	attempt, err := scanAttempt(r.db.QueryRow(ctx, query,
		req.Scope.TenantID, req.ImageRef, req.IPAddress, req.UserAgent,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create login attempt: %w", err)
	}

	return attempt, nil
}

// GetByID retrieves a single login attempt by ID.
func (r *AttemptsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LoginAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM login_attempts WHERE id = $1`

	attempt, err := scanAttempt(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("login attempt", "login attempt not found")
		}

		return nil, fmt.Errorf("failed to get login attempt: %w", err)
	}

	return attempt, nil
}

// MarkClassified records the classification outcome. The matcher calls this
// exactly once per attempt, immediately after classification.
func (r *AttemptsRepository) MarkClassified(
	ctx context.Context, id uuid.UUID, status string, bestMatchPrincipalID *uuid.UUID, bestMatchDistance *float64,
) error {
	result, err := r.db.Exec(ctx, `
		UPDATE login_attempts
		SET initial_status = $1, best_match_principal_id = $2, best_match_distance = $3
		WHERE id = $4
	`, status, bestMatchPrincipalID, bestMatchDistance, id)
	if err != nil {
		return fmt.Errorf("failed to mark login attempt classified: %w", err)
	}

	if result.RowsAffected() == 0 {
		return gateerrors.NewNotFoundError("login attempt", "login attempt not found")
	}

	return nil
}

func markReconciled(
	ctx context.Context, q queryer, id uuid.UUID,
	feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool, reconciledAt time.Time,
) (*models.LoginAttempt, error) {
	// Compare-and-set on the feedback default guarantees at most one
	// reconciliation wins under concurrent submissions.
	query := `
		UPDATE login_attempts
		SET user_feedback = $1,
		    confirmed_principal_id = $2,
		    is_verified_and_correct = $3,
		    reconciled_at = $4
		WHERE id = $5 AND user_feedback = $6
		RETURNING ` + attemptColumns

	attempt, err := scanAttempt(q.QueryRow(ctx, query,
		feedback, confirmedPrincipalID, verifiedAndCorrect, reconciledAt,
		id, models.FeedbackAbsent,
	))
	if err == nil {
		return attempt, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to reconcile login attempt: %w", err)
	}

	// Zero rows means either the attempt does not exist or it was already
	// reconciled; look it up to report the right error.
	var feedbackState string

	lookupErr := q.QueryRow(ctx, `SELECT user_feedback FROM login_attempts WHERE id = $1`, id).Scan(&feedbackState)
	if lookupErr != nil {
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return nil, gateerrors.NewNotFoundError("login attempt", "login attempt not found")
		}

		return nil, fmt.Errorf("failed to look up login attempt: %w", lookupErr)
	}

	return nil, gateerrors.ErrAlreadyReconciled
}

// MarkReconciled closes out an attempt with user feedback. Returns
// AlreadyReconciledError when feedback was recorded before this call.
func (r *AttemptsRepository) MarkReconciled(
	ctx context.Context, id uuid.UUID,
	feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool,
) (*models.LoginAttempt, error) {
	return markReconciled(ctx, r.db, id, feedback, confirmedPrincipalID, verifiedAndCorrect, time.Now())
}

// MarkReconciledTx is MarkReconciled inside a caller-owned transaction, used
// when reconciliation also enriches the principal's profile set.
func (r *AttemptsRepository) MarkReconciledTx(
	ctx context.Context, tx pgx.Tx, id uuid.UUID,
	feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool,
) (*models.LoginAttempt, error) {
	return markReconciled(ctx, tx, id, feedback, confirmedPrincipalID, verifiedAndCorrect, time.Now())
}

// List retrieves the attempts of a scope, newest first.
func (r *AttemptsRepository) List(ctx context.Context, scope models.Scope, limit, offset int) ([]models.LoginAttempt, error) {
	condition, args := attemptScopeCondition(scope, 1)
	argCount := len(args) + 1

	query := fmt.Sprintf(
		`SELECT `+attemptColumns+` FROM login_attempts WHERE %s ORDER BY created_at DESC`,
		condition,
	)

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)

		args = append(args, limit)
		argCount++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)

		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}
	defer rows.Close()

	attempts := []models.LoginAttempt{} // Initialize as empty slice, not nil

	for rows.Next() {
		var a models.LoginAttempt

		err := rows.Scan(
			&a.ID, &a.TenantID, &a.ImageRef, &a.IPAddress, &a.UserAgent,
			&a.BestMatchPrincipalID, &a.BestMatchDistance, &a.InitialStatus,
			&a.UserFeedback, &a.ConfirmedPrincipalID, &a.IsVerifiedAndCorrect,
			&a.CreatedAt, &a.ReconciledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}

		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempts: %w", err)
	}

	return attempts, nil
}

// CountWindow aggregates the ledger for one scope, optionally restricted to
// attempts created at or after since.
func (r *AttemptsRepository) CountWindow(
	ctx context.Context, scope models.Scope, since *time.Time,
) (*models.AttemptWindowCounts, error) {
	condition, args := attemptScopeCondition(scope, 1)
	argCount := len(args) + 1

	query := fmt.Sprintf(`
		SELECT initial_status, user_feedback, COUNT(*)
		FROM login_attempts
		WHERE %s`, condition)

	if since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)

		args = append(args, *since)
	}

	query += " GROUP BY initial_status, user_feedback"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count login attempts: %w", err)
	}
	defer rows.Close()

	counts := &models.AttemptWindowCounts{
		ByInitialStatus: map[string]int64{},
	}

	for rows.Next() {
		var status, feedback string

		var n int64

		if err := rows.Scan(&status, &feedback, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attempt counts: %w", err)
		}

		counts.Total += n
		counts.ByInitialStatus[status] += n

		switch feedback {
		case models.FeedbackCorrect:
			counts.ConfirmedCorrect += n
		case models.FeedbackIncorrect:
			counts.ConfirmedIncorrect += n
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempt counts: %w", err)
	}

	return counts, nil
}
