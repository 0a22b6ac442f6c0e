package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

type fakePrincipalsRepo struct {
	principals map[uuid.UUID]*models.Principal
}

func newFakePrincipalsRepo(principals ...*models.Principal) *fakePrincipalsRepo {
	f := &fakePrincipalsRepo{principals: map[uuid.UUID]*models.Principal{}}
	for _, p := range principals {
		f.principals[p.ID] = p
	}

	return f
}

func (f *fakePrincipalsRepo) Create(_ context.Context, p *models.Principal) (*models.Principal, error) {
	created := *p
	created.ID = uuid.New()
	f.principals[created.ID] = &created

	return &created, nil
}

func (f *fakePrincipalsRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Principal, error) {
	principal, ok := f.principals[id]
	if !ok {
		return nil, gateerrors.NewNotFoundError("principal", "principal not found")
	}

	return principal, nil
}

func (f *fakePrincipalsRepo) GetByEmail(_ context.Context, scope models.Scope, email string) (*models.Principal, error) {
	for _, p := range f.principals {
		if p.Email == email && principalBelongsToScope(p, scope) {
			return p, nil
		}
	}

	return nil, gateerrors.NewNotFoundError("principal", "principal not found")
}

func (f *fakePrincipalsRepo) List(_ context.Context, scope models.Scope) ([]models.Principal, error) {
	result := []models.Principal{}

	for _, p := range f.principals {
		if principalBelongsToScope(p, scope) {
			result = append(result, *p)
		}
	}

	return result, nil
}

func (f *fakePrincipalsRepo) SetDeleted(_ context.Context, id uuid.UUID, deleted bool) error {
	principal, ok := f.principals[id]
	if !ok {
		return gateerrors.NewNotFoundError("principal", "principal not found")
	}

	principal.Deleted = deleted

	return nil
}

func (f *fakePrincipalsRepo) SetFaceAuthEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	principal, ok := f.principals[id]
	if !ok {
		return gateerrors.NewNotFoundError("principal", "principal not found")
	}

	principal.FaceAuthEnabled = enabled

	return nil
}

func (f *fakePrincipalsRepo) SetPasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	principal, ok := f.principals[id]
	if !ok {
		return gateerrors.NewNotFoundError("principal", "principal not found")
	}

	principal.PasswordHash = passwordHash

	return nil
}

type fakeProfilesRepo struct {
	profiles map[uuid.UUID]*models.Profile
	pool     []models.ActiveProfile
}

func newFakeProfilesRepo(pool ...models.ActiveProfile) *fakeProfilesRepo {
	return &fakeProfilesRepo{profiles: map[uuid.UUID]*models.Profile{}, pool: pool}
}

func (f *fakeProfilesRepo) Create(_ context.Context, profile *models.Profile) (*models.Profile, error) {
	created := *profile
	created.ID = uuid.New()
	created.Active = true
	f.profiles[created.ID] = &created

	return &created, nil
}

func (f *fakeProfilesRepo) ListActiveByScope(_ context.Context, _ models.Scope) ([]models.ActiveProfile, error) {
	return f.pool, nil
}

func (f *fakeProfilesRepo) ListByPrincipal(_ context.Context, principalID uuid.UUID) ([]models.Profile, error) {
	result := []models.Profile{}

	for _, p := range f.profiles {
		if p.PrincipalID == principalID {
			result = append(result, *p)
		}
	}

	return result, nil
}

func (f *fakeProfilesRepo) DeactivateByPrincipal(_ context.Context, principalID uuid.UUID) (int64, error) {
	var n int64

	for _, p := range f.profiles {
		if p.PrincipalID == principalID && p.Active {
			p.Active = false
			n++
		}
	}

	return n, nil
}

func registerRequest() *models.RegisterPrincipalRequest {
	return &models.RegisterPrincipalRequest{
		Email:    "alice@example.com",
		FullName: "Alice",
		Password: "secret",
		Image:    []byte("capture"),
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("enrolls a new system account with an initial profile", func(t *testing.T) {
		principals := newFakePrincipalsRepo()
		profiles := newFakeProfilesRepo()
		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		principal, profile, err := svc.Register(ctx, models.SystemScope(), registerRequest(), testThresholds)
		require.NoError(t, err)

		assert.Equal(t, models.PrincipalKindSystemAccount, principal.Kind)
		assert.True(t, principal.FaceAuthEnabled)
		assert.Equal(t, "hashed", principal.PasswordHash)
		assert.Equal(t, models.ProvenanceInitial, profile.Provenance)
		assert.True(t, profile.Active)
	})

	t.Run("enrolls a tenant user under the tenant", func(t *testing.T) {
		tenantID := uuid.New()
		principals := newFakePrincipalsRepo()
		profiles := newFakeProfilesRepo()
		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		principal, _, err := svc.Register(ctx, models.TenantScope(tenantID), registerRequest(), testThresholds)
		require.NoError(t, err)

		assert.Equal(t, models.PrincipalKindTenantUser, principal.Kind)
		require.NotNil(t, principal.TenantID)
		assert.Equal(t, tenantID, *principal.TenantID)
	})

	t.Run("rejects a face already enrolled to another principal", func(t *testing.T) {
		other := testPrincipal(uuid.New(), "bob@example.com")
		principals := newFakePrincipalsRepo(other)
		profiles := newFakeProfilesRepo(models.ActiveProfile{
			ProfileID:   uuid.New(),
			PrincipalID: other.ID,
			Embedding:   vectorAtDistance(0.1),
		})
		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		_, _, err := svc.Register(ctx, models.SystemScope(), registerRequest(), testThresholds)
		assert.ErrorIs(t, err, gateerrors.ErrConflict)
	})

	t.Run("force bypasses the duplicate face guard", func(t *testing.T) {
		other := testPrincipal(uuid.New(), "bob@example.com")
		principals := newFakePrincipalsRepo(other)
		profiles := newFakeProfilesRepo(models.ActiveProfile{
			ProfileID:   uuid.New(),
			PrincipalID: other.ID,
			Embedding:   vectorAtDistance(0.1),
		})
		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		req := registerRequest()
		req.Force = true

		_, _, err := svc.Register(ctx, models.SystemScope(), req, testThresholds)
		assert.NoError(t, err)
	})

	t.Run("a distant face is no duplicate", func(t *testing.T) {
		other := testPrincipal(uuid.New(), "bob@example.com")
		principals := newFakePrincipalsRepo(other)
		profiles := newFakeProfilesRepo(models.ActiveProfile{
			ProfileID:   uuid.New(),
			PrincipalID: other.ID,
			Embedding:   vectorAtDistance(0.5),
		})
		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		_, _, err := svc.Register(ctx, models.SystemScope(), registerRequest(), testThresholds)
		assert.NoError(t, err)
	})

	t.Run("rejects an already registered email without force", func(t *testing.T) {
		existing := testPrincipal(uuid.New(), "alice@example.com")
		principals := newFakePrincipalsRepo(existing)
		profiles := newFakeProfilesRepo()
		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		_, _, err := svc.Register(ctx, models.SystemScope(), registerRequest(), testThresholds)
		assert.ErrorIs(t, err, gateerrors.ErrConflict)
	})

	t.Run("force re-enrolls an active principal with a fresh profile set", func(t *testing.T) {
		existing := testPrincipal(uuid.New(), "alice@example.com")
		principals := newFakePrincipalsRepo(existing)
		profiles := newFakeProfilesRepo()

		stale, err := profiles.Create(ctx, &models.Profile{
			PrincipalID: existing.ID,
			Embedding:   vectorAtDistance(0.9),
			Provenance:  models.ProvenanceInitial,
		})
		require.NoError(t, err)

		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		req := registerRequest()
		req.Force = true

		principal, profile, err := svc.Register(ctx, models.SystemScope(), req, testThresholds)
		require.NoError(t, err)

		assert.Equal(t, existing.ID, principal.ID)
		assert.Equal(t, models.ProvenanceForcedReEnrollment, profile.Provenance)
		assert.False(t, profiles.profiles[stale.ID].Active, "old profiles are deactivated")
	})

	t.Run("re-registering a soft-deleted principal reactivates it", func(t *testing.T) {
		existing := testPrincipal(uuid.New(), "alice@example.com")
		existing.Deleted = true
		principals := newFakePrincipalsRepo(existing)
		profiles := newFakeProfilesRepo()
		svc := NewPrincipalsService(principals, profiles,
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		principal, _, err := svc.Register(ctx, models.SystemScope(), registerRequest(), testThresholds)
		require.NoError(t, err)

		assert.Equal(t, existing.ID, principal.ID)
		assert.False(t, principal.Deleted)
	})

	t.Run("detection failure aborts enrollment", func(t *testing.T) {
		svc := NewPrincipalsService(newFakePrincipalsRepo(), newFakeProfilesRepo(),
			&stubExtractor{err: gateerrors.ErrDetectionFailed}, &fixedCredentials{}, slog.Default())

		_, _, err := svc.Register(ctx, models.SystemScope(), registerRequest(), testThresholds)
		assert.ErrorIs(t, err, gateerrors.ErrDetectionFailed)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		svc := NewPrincipalsService(newFakePrincipalsRepo(), newFakeProfilesRepo(),
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		req := registerRequest()
		req.Email = "  "

		_, _, err := svc.Register(ctx, models.SystemScope(), req, testThresholds)
		assert.ErrorIs(t, err, gateerrors.ErrValidation)
	})
}

func TestPrincipalLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("delete soft-deletes within scope", func(t *testing.T) {
		principal := testPrincipal(uuid.New(), "alice@example.com")
		principals := newFakePrincipalsRepo(principal)
		svc := NewPrincipalsService(principals, newFakeProfilesRepo(),
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		require.NoError(t, svc.Delete(ctx, models.SystemScope(), principal.ID))
		assert.True(t, principal.Deleted)
	})

	t.Run("delete from the wrong scope is not found", func(t *testing.T) {
		principal := testPrincipal(uuid.New(), "alice@example.com")
		principals := newFakePrincipalsRepo(principal)
		svc := NewPrincipalsService(principals, newFakeProfilesRepo(),
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		err := svc.Delete(ctx, models.TenantScope(uuid.New()), principal.ID)
		assert.ErrorIs(t, err, gateerrors.ErrNotFound)
	})

	t.Run("face auth toggle is for system accounts only", func(t *testing.T) {
		tenantID := uuid.New()
		user := &models.Principal{
			ID:       uuid.New(),
			Kind:     models.PrincipalKindTenantUser,
			TenantID: &tenantID,
			Email:    "user@example.com",
		}
		principals := newFakePrincipalsRepo(user)
		svc := NewPrincipalsService(principals, newFakeProfilesRepo(),
			&stubExtractor{embedding: probeVector}, &fixedCredentials{}, slog.Default())

		err := svc.SetFaceAuthEnabled(ctx, user.ID, true)
		assert.ErrorIs(t, err, gateerrors.ErrValidation)
	})
}
