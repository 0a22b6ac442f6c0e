package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/facescan"
	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

// PrincipalsRepository defines the principal data access enrollment needs.
type PrincipalsRepository interface {
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
	GetByEmail(ctx context.Context, scope models.Scope, email string) (*models.Principal, error)
	List(ctx context.Context, scope models.Scope) ([]models.Principal, error)
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool) error
	SetFaceAuthEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// ProfilesRepository defines the profile data access enrollment needs.
type ProfilesRepository interface {
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	ListActiveByScope(ctx context.Context, scope models.Scope) ([]models.ActiveProfile, error)
	ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]models.Profile, error)
	DeactivateByPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error)
}

// PrincipalsService handles enrollment and lifecycle of principals.
type PrincipalsService struct {
	principals  PrincipalsRepository
	profiles    ProfilesRepository
	extractor   facescan.Extractor
	credentials CredentialVerifier
	logger      *slog.Logger
}

// NewPrincipalsService creates a new principals service.
func NewPrincipalsService(
	principals PrincipalsRepository,
	profiles ProfilesRepository,
	extractor facescan.Extractor,
	credentials CredentialVerifier,
	logger *slog.Logger,
) *PrincipalsService {
	return &PrincipalsService{
		principals:  principals,
		profiles:    profiles,
		extractor:   extractor,
		credentials: credentials,
		logger:      logger,
	}
}

func validateRegisterRequest(req *models.RegisterPrincipalRequest) error {
	if strings.TrimSpace(req.Email) == "" {
		return gateerrors.NewValidationError("email", "email is required")
	}

	if strings.TrimSpace(req.FullName) == "" {
		return gateerrors.NewValidationError("full_name", "full_name is required")
	}

	if req.Password == "" {
		return gateerrors.NewValidationError("password", "password is required")
	}

	if len(req.Image) == 0 {
		return gateerrors.NewValidationError("image", "image is required")
	}

	return nil
}

// Register enrolls a principal in a scope with its first face profile.
//
// Two guards protect the matching pool, both bypassable with Force:
// a face already enrolled under a different principal of the same scope is a
// conflict, and so is an email already registered there. Re-registering a
// soft-deleted principal reactivates it with a fresh profile set.
func (s *PrincipalsService) Register(
	ctx context.Context, scope models.Scope, req *models.RegisterPrincipalRequest, thresholds models.Thresholds,
) (*models.Principal, *models.Profile, error) {
	if err := validateRegisterRequest(req); err != nil {
		return nil, nil, err
	}

	embedding, err := s.extractor.Extract(ctx, req.Image)
	if err != nil {
		if errors.Is(err, gateerrors.ErrDetectionFailed) {
			return nil, nil, err
		}

		return nil, nil, fmt.Errorf("extraction failed: %w", err)
	}

	if !req.Force {
		if err := s.checkDuplicateFace(ctx, scope, req.Email, embedding, thresholds); err != nil {
			return nil, nil, err
		}
	}

	existing, err := s.principals.GetByEmail(ctx, scope, req.Email)
	if err != nil && !errors.Is(err, gateerrors.ErrNotFound) {
		return nil, nil, err
	}

	if existing != nil {
		return s.reEnroll(ctx, existing, req, embedding)
	}

	hash, err := s.credentials.Hash(req.Password)
	if err != nil {
		return nil, nil, err
	}

	principal := &models.Principal{
		Kind:         models.PrincipalKindTenantUser,
		TenantID:     scope.TenantID,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		PasswordHash: hash,
	}

	if scope.IsSystem() {
		principal.Kind = models.PrincipalKindSystemAccount
		principal.FaceAuthEnabled = true
	}

	created, err := s.principals.Create(ctx, principal)
	if err != nil {
		return nil, nil, err
	}

	profile, err := s.profiles.Create(ctx, &models.Profile{
		PrincipalID: created.ID,
		Embedding:   embedding,
		Provenance:  models.ProvenanceInitial,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("principal enrolled",
		"principal_id", created.ID,
		"scope", scope.String(),
		"profile_id", profile.ID,
	)

	return created, profile, nil
}

// checkDuplicateFace rejects enrollment when the submitted face already
// matches another principal of the scope within the confidence threshold.
func (s *PrincipalsService) checkDuplicateFace(
	ctx context.Context, scope models.Scope, email string, embedding []float32, thresholds models.Thresholds,
) error {
	pool, err := s.profiles.ListActiveByScope(ctx, scope)
	if err != nil {
		return err
	}

	ranked := bestPerPrincipal(embedding, pool)
	if len(ranked) == 0 || ranked[0].distance > thresholds.Confidence {
		return nil
	}

	owner, err := s.principals.GetByID(ctx, ranked[0].principalID)
	if err != nil {
		return err
	}

	if owner.Email == email {
		return nil
	}

	return gateerrors.NewConflictError("face already registered to another principal")
}

// reEnroll handles registration against an existing email: a soft-deleted
// principal is reactivated, an active one requires Force. Either way the old
// profiles are deactivated and replaced by a fresh enrollment profile.
func (s *PrincipalsService) reEnroll(
	ctx context.Context, existing *models.Principal, req *models.RegisterPrincipalRequest, embedding []float32,
) (*models.Principal, *models.Profile, error) {
	if !existing.Deleted && !req.Force {
		return nil, nil, gateerrors.NewConflictError("email already registered")
	}

	if existing.Deleted {
		if err := s.principals.SetDeleted(ctx, existing.ID, false); err != nil {
			return nil, nil, err
		}

		existing.Deleted = false
	}

	hash, err := s.credentials.Hash(req.Password)
	if err != nil {
		return nil, nil, err
	}

	if err := s.principals.SetPasswordHash(ctx, existing.ID, hash); err != nil {
		return nil, nil, err
	}

	if _, err := s.profiles.DeactivateByPrincipal(ctx, existing.ID); err != nil {
		return nil, nil, err
	}

	profile, err := s.profiles.Create(ctx, &models.Profile{
		PrincipalID: existing.ID,
		Embedding:   embedding,
		Provenance:  models.ProvenanceForcedReEnrollment,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("principal re-enrolled",
		"principal_id", existing.ID,
		"profile_id", profile.ID,
	)

	return existing, profile, nil
}

// Get retrieves a principal within the caller's scope.
func (s *PrincipalsService) Get(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Principal, error) {
	principal, err := s.principals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !principalBelongsToScope(principal, scope) {
		return nil, gateerrors.NewNotFoundError("principal", "principal not found")
	}

	return principal, nil
}

// List retrieves the principals of a scope.
func (s *PrincipalsService) List(ctx context.Context, scope models.Scope) ([]models.Principal, error) {
	return s.principals.List(ctx, scope)
}

// ListProfiles retrieves the profiles of a principal within the caller's scope.
func (s *PrincipalsService) ListProfiles(ctx context.Context, scope models.Scope, principalID uuid.UUID) ([]models.Profile, error) {
	if _, err := s.Get(ctx, scope, principalID); err != nil {
		return nil, err
	}

	return s.profiles.ListByPrincipal(ctx, principalID)
}

// Delete soft-deletes a principal, removing it from the matching pool while
// preserving its attempt history.
func (s *PrincipalsService) Delete(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}

	return s.principals.SetDeleted(ctx, id, true)
}

// SetFaceAuthEnabled toggles face authentication for a system account.
func (s *PrincipalsService) SetFaceAuthEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	principal, err := s.principals.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if principal.Kind != models.PrincipalKindSystemAccount {
		return gateerrors.NewValidationError("principal_id", "face auth flag applies to system accounts only")
	}

	return s.principals.SetFaceAuthEnabled(ctx, id, enabled)
}

// principalBelongsToScope reports scope membership regardless of soft-deletion.
func principalBelongsToScope(p *models.Principal, scope models.Scope) bool {
	if scope.IsSystem() {
		return p.Kind == models.PrincipalKindSystemAccount
	}

	return p.Kind == models.PrincipalKindTenantUser &&
		p.TenantID != nil && *p.TenantID == *scope.TenantID
}
