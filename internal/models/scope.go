package models

import "github.com/google/uuid"

// Scope selects the principal pool a login attempt runs against: the global
// system-account pool, or the end users of a single tenant. The same matching
// code path serves both; only the pool and the thresholds differ.
type Scope struct {
	TenantID *uuid.UUID
}

// SystemScope returns the scope covering all system accounts.
func SystemScope() Scope {
	return Scope{}
}

// TenantScope returns the scope covering one tenant's end users.
func TenantScope(tenantID uuid.UUID) Scope {
	return Scope{TenantID: &tenantID}
}

// IsSystem reports whether the scope is the global system-account pool.
func (s Scope) IsSystem() bool {
	return s.TenantID == nil
}

// String returns "system" or "tenant:<id>", used in logs and metric labels.
func (s Scope) String() string {
	if s.TenantID == nil {
		return "system"
	}

	return "tenant:" + s.TenantID.String()
}
