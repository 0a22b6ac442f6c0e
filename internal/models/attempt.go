package models

import (
	"time"

	"github.com/google/uuid"
)

// Initial classification statuses. Written exactly once per attempt.
const (
	AttemptStatusSuccess   = "success"
	AttemptStatusAmbiguous = "ambiguous_match"
	AttemptStatusNoMatch   = "no_match"
	AttemptStatusError     = "error"
)

// User feedback values. "absent" is the creation default; the feedback fields
// are written at most once by a single reconciliation call.
const (
	FeedbackCorrect   = "correct"
	FeedbackIncorrect = "incorrect"
	FeedbackAbsent    = "absent"
)

// LoginAttempt is the audit record of one classification request and its
// eventual feedback. Rows are never deleted; scope and creation fields are
// immutable, classification and feedback fields are each set-once.
type LoginAttempt struct {
	ID                   uuid.UUID  `json:"id"`
	TenantID             *uuid.UUID `json:"tenant_id,omitempty"`
	ImageRef             *string    `json:"image_ref,omitempty"`
	IPAddress            *string    `json:"ip_address,omitempty"`
	UserAgent            *string    `json:"user_agent,omitempty"`
	BestMatchPrincipalID *uuid.UUID `json:"best_match_principal_id,omitempty"`
	BestMatchDistance    *float64   `json:"best_match_distance,omitempty"`
	InitialStatus        string     `json:"initial_status"`
	UserFeedback         string     `json:"user_feedback"`
	ConfirmedPrincipalID *uuid.UUID `json:"confirmed_principal_id,omitempty"`
	IsVerifiedAndCorrect bool       `json:"is_verified_and_correct"`
	CreatedAt            time.Time  `json:"created_at"`
	ReconciledAt         *time.Time `json:"reconciled_at,omitempty"`
}

// Scope returns the matching scope the attempt was created under.
func (a *LoginAttempt) Scope() Scope {
	if a.TenantID == nil {
		return SystemScope()
	}

	return TenantScope(*a.TenantID)
}

// Candidate is one ranked entry of an ambiguous outcome.
type Candidate struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Distance    float64   `json:"distance"`
}

// LoginResult is the outcome of one classify call, returned to the transport
// layer together with the ledger ID the caller needs for feedback.
type LoginResult struct {
	AttemptID  uuid.UUID   `json:"attempt_id"`
	Status     string      `json:"status"`
	Principal  *Principal  `json:"principal,omitempty"`
	Distance   *float64    `json:"distance,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// CreateLoginAttemptRequest carries the immutable creation fields.
type CreateLoginAttemptRequest struct {
	Scope     Scope
	ImageRef  *string
	IPAddress *string
	UserAgent *string
}
