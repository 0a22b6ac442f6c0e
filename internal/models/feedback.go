package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackEvent links a confirmed-correct reconciliation to the correction
// image that enriched the principal's profile set. Immutable once created.
type FeedbackEvent struct {
	ID          uuid.UUID `json:"id"`
	AttemptID   uuid.UUID `json:"attempt_id"`
	PrincipalID uuid.UUID `json:"principal_id"`
	ProfileID   uuid.UUID `json:"profile_id"`
	ImageRef    *string   `json:"image_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReconcileRequest carries one feedback submission. ClaimedPrincipalID,
// Credential and CorrectionImage are required only for Decision=correct.
type ReconcileRequest struct {
	AttemptID          uuid.UUID
	Decision           string
	ClaimedPrincipalID *uuid.UUID
	Credential         string
	CorrectionImage    []byte
	ImageRef           *string
}

// ReconcileResult reports the closed-out attempt state.
type ReconcileResult struct {
	AttemptID            uuid.UUID  `json:"attempt_id"`
	UserFeedback         string     `json:"user_feedback"`
	ConfirmedPrincipalID *uuid.UUID `json:"confirmed_principal_id,omitempty"`
	IsVerifiedAndCorrect bool       `json:"is_verified_and_correct"`
	EnrichedProfileID    *uuid.UUID `json:"enriched_profile_id,omitempty"`
	ReconciledAt         time.Time  `json:"reconciled_at"`
}
