package models

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalKind distinguishes the two principal variants.
const (
	PrincipalKindSystemAccount = "system_account"
	PrincipalKindTenantUser    = "tenant_user"
)

// Principal is an entity being authenticated: a system account (global pool)
// or a tenant-scoped end user. Tenant users are soft-deleted (excluded from
// matching, history preserved); system accounts opt into face auth via
// FaceAuthEnabled.
type Principal struct {
	ID              uuid.UUID  `json:"id"`
	Kind            string     `json:"kind"`
	TenantID        *uuid.UUID `json:"tenant_id,omitempty"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name"`
	Role            *string    `json:"role,omitempty"`
	PasswordHash    string     `json:"-"`
	FaceAuthEnabled bool       `json:"face_auth_enabled"`
	Deleted         bool       `json:"deleted"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Eligible reports whether the principal may appear in a matching pool.
func (p *Principal) Eligible() bool {
	if p.Kind == PrincipalKindSystemAccount {
		return p.FaceAuthEnabled
	}

	return !p.Deleted
}

// RegisterPrincipalRequest carries enrollment input. Image is the raw
// submitted capture; extraction happens in the enrollment service. Force
// bypasses the duplicate-face guard (explicit user confirmation).
type RegisterPrincipalRequest struct {
	Email    string
	FullName string
	Role     *string
	Password string
	Image    []byte
	ImageRef *string
	Force    bool
}
