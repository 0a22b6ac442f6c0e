package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/models"
)

func TestAttemptScopeCondition(t *testing.T) {
	t.Run("system scope matches rows without a tenant", func(t *testing.T) {
		condition, args := attemptScopeCondition(models.SystemScope(), 1)

		assert.Equal(t, "tenant_id IS NULL", condition)
		assert.Empty(t, args)
	})

	t.Run("tenant scope matches that tenant's rows", func(t *testing.T) {
		tenantID := uuid.New()
		condition, args := attemptScopeCondition(models.TenantScope(tenantID), 1)

		assert.Equal(t, "tenant_id = $1", condition)
		require.Len(t, args, 1)
		assert.Equal(t, tenantID, args[0])
	})

	t.Run("respects placeholder offset", func(t *testing.T) {
		tenantID := uuid.New()
		condition, _ := attemptScopeCondition(models.TenantScope(tenantID), 2)

		assert.Equal(t, "tenant_id = $2", condition)
	})
}
