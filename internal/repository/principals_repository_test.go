package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/models"
)

func TestScopeCondition(t *testing.T) {
	t.Run("system scope selects system accounts", func(t *testing.T) {
		condition, args := scopeCondition(models.SystemScope(), 1)

		assert.Equal(t, "kind = $1", condition)
		require.Len(t, args, 1)
		assert.Equal(t, models.PrincipalKindSystemAccount, args[0])
	})

	t.Run("tenant scope selects that tenant's users", func(t *testing.T) {
		tenantID := uuid.New()
		condition, args := scopeCondition(models.TenantScope(tenantID), 1)

		assert.Equal(t, "kind = $1 AND tenant_id = $2", condition)
		require.Len(t, args, 2)
		assert.Equal(t, models.PrincipalKindTenantUser, args[0])
		assert.Equal(t, tenantID, args[1])
	})

	t.Run("respects placeholder offset", func(t *testing.T) {
		tenantID := uuid.New()
		condition, args := scopeCondition(models.TenantScope(tenantID), 3)

		assert.Equal(t, "kind = $3 AND tenant_id = $4", condition)
		assert.Len(t, args, 2)
	})
}
