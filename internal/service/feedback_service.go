package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/facegate/facegate/internal/facescan"
	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

// TxBeginner starts database transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ReconcilableAttemptsRepository defines the ledger access reconciliation needs.
type ReconcilableAttemptsRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.LoginAttempt, error)
	MarkReconciled(ctx context.Context, id uuid.UUID, feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool) (*models.LoginAttempt, error)
	MarkReconciledTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool) (*models.LoginAttempt, error)
}

// ProfilesTxWriter appends profiles inside a caller-owned transaction.
type ProfilesTxWriter interface {
	CreateTx(ctx context.Context, tx pgx.Tx, profile *models.Profile) (*models.Profile, error)
}

// FeedbackEventsTxWriter appends feedback events inside a caller-owned transaction.
type FeedbackEventsTxWriter interface {
	CreateTx(ctx context.Context, tx pgx.Tx, event *models.FeedbackEvent) (*models.FeedbackEvent, error)
}

// FeedbackService closes out login attempts with user feedback and, for
// verified correct decisions, enriches the principal's profile set with the
// correction capture.
type FeedbackService struct {
	db          TxBeginner
	attempts    ReconcilableAttemptsRepository
	profiles    ProfilesTxWriter
	events      FeedbackEventsTxWriter
	principals  PrincipalsReader
	extractor   facescan.Extractor
	credentials CredentialVerifier
	logger      *slog.Logger
}

// NewFeedbackService creates a new feedback service.
func NewFeedbackService(
	db TxBeginner,
	attempts ReconcilableAttemptsRepository,
	profiles ProfilesTxWriter,
	events FeedbackEventsTxWriter,
	principals PrincipalsReader,
	extractor facescan.Extractor,
	credentials CredentialVerifier,
	logger *slog.Logger,
) *FeedbackService {
	return &FeedbackService{
		db:          db,
		attempts:    attempts,
		profiles:    profiles,
		events:      events,
		principals:  principals,
		extractor:   extractor,
		credentials: credentials,
		logger:      logger,
	}
}

// Reconcile records one feedback decision for a login attempt. The feedback
// fields are write-once; a second submission fails with AlreadyReconciled no
// matter the decision. A "correct" decision requires the claimed principal's
// credential and a correction image, and all its side effects (ledger update,
// profile insert, feedback event) commit in a single transaction.
func (s *FeedbackService) Reconcile(
	ctx context.Context, scope models.Scope, req *models.ReconcileRequest,
) (*models.ReconcileResult, error) {
	attempt, err := s.attempts.GetByID(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Scope().String() != scope.String() {
		return nil, gateerrors.NewNotFoundError("login attempt", "login attempt not found")
	}

	switch req.Decision {
	case models.FeedbackIncorrect:
		return s.reconcileIncorrect(ctx, attempt)
	case models.FeedbackCorrect:
		return s.reconcileCorrect(ctx, scope, attempt, req)
	default:
		return nil, gateerrors.NewValidationError("decision", "decision must be \"correct\" or \"incorrect\"")
	}
}

func (s *FeedbackService) reconcileIncorrect(
	ctx context.Context, attempt *models.LoginAttempt,
) (*models.ReconcileResult, error) {
	updated, err := s.attempts.MarkReconciled(ctx, attempt.ID, models.FeedbackIncorrect, nil, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login attempt reconciled",
		"attempt_id", attempt.ID,
		"feedback", models.FeedbackIncorrect,
	)

	return reconcileResult(updated, nil), nil
}

func (s *FeedbackService) reconcileCorrect(
	ctx context.Context, scope models.Scope, attempt *models.LoginAttempt, req *models.ReconcileRequest,
) (*models.ReconcileResult, error) {
	if req.ClaimedPrincipalID == nil {
		return nil, gateerrors.NewValidationError("principal_id", "principal_id is required for correct feedback")
	}

	if req.Credential == "" {
		return nil, gateerrors.NewValidationError("password", "password is required for correct feedback")
	}

	if len(req.CorrectionImage) == 0 {
		return nil, gateerrors.NewValidationError("image", "image is required for correct feedback")
	}

	principal, err := s.principals.GetByID(ctx, *req.ClaimedPrincipalID)
	if err != nil {
		return nil, err
	}

	if !principalInScope(principal, scope) {
		return nil, gateerrors.NewNotFoundError("principal", "principal not found")
	}

	// Credential check and extraction both run before any write, so a failed
	// proof or an unusable image leaves the attempt untouched and retryable.
	if err := s.credentials.Verify(principal.PasswordHash, req.Credential); err != nil {
		return nil, err
	}

	embedding, err := s.extractor.Extract(ctx, req.CorrectionImage)
	if err != nil {
		if errors.Is(err, gateerrors.ErrDetectionFailed) {
			return nil, err
		}

		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The flag records that the claim passed the credential and face checks,
	// independent of what the matcher predicted.
	updated, err := s.attempts.MarkReconciledTx(ctx, tx, attempt.ID, models.FeedbackCorrect, &principal.ID, true)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.CreateTx(ctx, tx, &models.Profile{
		PrincipalID: principal.ID,
		Embedding:   embedding,
		Provenance:  models.ProvenanceFeedbackEnrichment,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.events.CreateTx(ctx, tx, &models.FeedbackEvent{
		AttemptID:   attempt.ID,
		PrincipalID: principal.ID,
		ProfileID:   profile.ID,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	s.logger.Info("login attempt reconciled",
		"attempt_id", attempt.ID,
		"feedback", models.FeedbackCorrect,
		"principal_id", principal.ID,
		"enriched_profile_id", profile.ID,
	)

	return reconcileResult(updated, &profile.ID), nil
}

// principalInScope reports whether a principal belongs to the caller's scope
// and is still active there.
func principalInScope(p *models.Principal, scope models.Scope) bool {
	if p.Deleted {
		return false
	}

	if scope.IsSystem() {
		return p.Kind == models.PrincipalKindSystemAccount
	}

	return p.Kind == models.PrincipalKindTenantUser &&
		p.TenantID != nil && *p.TenantID == *scope.TenantID
}

func reconcileResult(attempt *models.LoginAttempt, enrichedProfileID *uuid.UUID) *models.ReconcileResult {
	result := &models.ReconcileResult{
		AttemptID:            attempt.ID,
		UserFeedback:         attempt.UserFeedback,
		ConfirmedPrincipalID: attempt.ConfirmedPrincipalID,
		IsVerifiedAndCorrect: attempt.IsVerifiedAndCorrect,
		EnrichedProfileID:    enrichedProfileID,
	}

	if attempt.ReconciledAt != nil {
		result.ReconciledAt = *attempt.ReconciledAt
	}

	return result
}
