package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile provenance labels. Profiles are append-only: enrichment and forced
// re-enrollment add rows, deactivation is the only correction mechanism.
const (
	ProvenanceInitial            = "initial"
	ProvenanceFeedbackEnrichment = "feedback-enrichment"
	ProvenanceForcedReEnrollment = "forced-re-enrollment"
)

// Profile is one enrolled embedding owned by a principal. A principal may own
// many profiles; matching takes the minimum distance across its active ones.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	PrincipalID uuid.UUID `json:"principal_id"`
	Embedding   []float32 `json:"-"`
	Active      bool      `json:"active"`
	Provenance  string    `json:"provenance"`
	ImageRef    *string   `json:"image_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActiveProfile is the projection the matcher works on: one active embedding
// plus its owner. Loaded per scope in a single consistent query.
type ActiveProfile struct {
	ProfileID   uuid.UUID
	PrincipalID uuid.UUID
	Embedding   []float32
}
