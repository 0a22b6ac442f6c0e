package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facegate/facegate/internal/models"
)

// FeedbackEventsRepository handles data access for feedback events, the link
// between a confirmed-correct reconciliation and the profile it produced.
type FeedbackEventsRepository struct {
	db *pgxpool.Pool
}

// NewFeedbackEventsRepository creates a new feedback events repository.
func NewFeedbackEventsRepository(db *pgxpool.Pool) *FeedbackEventsRepository {
	return &FeedbackEventsRepository{db: db}
}

func createFeedbackEvent(ctx context.Context, q queryer, event *models.FeedbackEvent) (*models.FeedbackEvent, error) {
	query := `
		INSERT INTO feedback_events (attempt_id, principal_id, profile_id, image_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, attempt_id, principal_id, profile_id, image_ref, created_at
	`

	var created models.FeedbackEvent

	err := q.QueryRow(ctx, query,
		event.AttemptID, event.PrincipalID, event.ProfileID, event.ImageRef,
	).Scan(
		&created.ID, &created.AttemptID, &created.PrincipalID,
		&created.ProfileID, &created.ImageRef, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback event: %w", err)
	}

	return &created, nil
}

// Create inserts a new feedback event.
func (r *FeedbackEventsRepository) Create(ctx context.Context, event *models.FeedbackEvent) (*models.FeedbackEvent, error) {
	return createFeedbackEvent(ctx, r.db, event)
}

// CreateTx inserts a new feedback event inside a caller-owned transaction.
func (r *FeedbackEventsRepository) CreateTx(ctx context.Context, tx pgx.Tx, event *models.FeedbackEvent) (*models.FeedbackEvent, error) {
	return createFeedbackEvent(ctx, tx, event)
}

// ListByPrincipal retrieves the feedback events that enriched a principal's
// profile set, newest first.
func (r *FeedbackEventsRepository) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]models.FeedbackEvent, error) {
	query := `
		SELECT id, attempt_id, principal_id, profile_id, image_ref, created_at
		FROM feedback_events
		WHERE principal_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback events: %w", err)
	}
	defer rows.Close()

	events := []models.FeedbackEvent{} // Initialize as empty slice, not nil

	for rows.Next() {
		var e models.FeedbackEvent

		err := rows.Scan(&e.ID, &e.AttemptID, &e.PrincipalID, &e.ProfileID, &e.ImageRef, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback event: %w", err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback events: %w", err)
	}

	return events, nil
}
