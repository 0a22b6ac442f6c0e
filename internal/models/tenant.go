package models

import (
	"time"

	"github.com/google/uuid"
)

// Default thresholds applied when a tenant is created without explicit values.
// Distances are cosine distances over L2-normalized embeddings, range [0,2].
const (
	DefaultConfidenceThreshold = 0.18
	DefaultFallbackThreshold   = 0.25
)

// Tenant is an isolated integrator application with its own principal pool
// and threshold configuration.
type Tenant struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	APIToken            string    `json:"api_token"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	FallbackThreshold   float64   `json:"fallback_threshold"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Thresholds is the pair of distance cutoffs the classifier runs with.
// Invariant: 0 <= Confidence <= Fallback <= 2.
type Thresholds struct {
	Confidence float64
	Fallback   float64
}

// CreateTenantRequest represents the request to create a tenant.
// Omitted thresholds fall back to the defaults above.
type CreateTenantRequest struct {
	Name                string   `json:"name"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	FallbackThreshold   *float64 `json:"fallback_threshold,omitempty"`
}

// UpdateTenantRequest represents the request to update a tenant.
// Only name and thresholds can change; the API token is immutable.
type UpdateTenantRequest struct {
	Name                *string  `json:"name,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	FallbackThreshold   *float64 `json:"fallback_threshold,omitempty"`
}
