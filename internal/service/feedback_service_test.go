package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

// fakeTx embeds pgx.Tx for the methods the fakes never call.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true

	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}

	return nil
}

type fakeTxBeginner struct {
	lastTx *fakeTx
}

func (f *fakeTxBeginner) Begin(_ context.Context) (pgx.Tx, error) {
	f.lastTx = &fakeTx{}

	return f.lastTx, nil
}

type fakeReconAttempts struct {
	attempts map[uuid.UUID]*models.LoginAttempt
}

func newFakeReconAttempts(attempts ...*models.LoginAttempt) *fakeReconAttempts {
	f := &fakeReconAttempts{attempts: map[uuid.UUID]*models.LoginAttempt{}}
	for _, a := range attempts {
		f.attempts[a.ID] = a
	}

	return f
}

func (f *fakeReconAttempts) GetByID(_ context.Context, id uuid.UUID) (*models.LoginAttempt, error) {
	attempt, ok := f.attempts[id]
	if !ok {
		return nil, gateerrors.NewNotFoundError("login attempt", "login attempt not found")
	}

	return attempt, nil
}

func (f *fakeReconAttempts) reconcile(
	id uuid.UUID, feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool,
) (*models.LoginAttempt, error) {
	attempt, ok := f.attempts[id]
	if !ok {
		return nil, gateerrors.NewNotFoundError("login attempt", "login attempt not found")
	}

	if attempt.UserFeedback != models.FeedbackAbsent {
		return nil, gateerrors.ErrAlreadyReconciled
	}

	now := time.Now()
	attempt.UserFeedback = feedback
	attempt.ConfirmedPrincipalID = confirmedPrincipalID
	attempt.IsVerifiedAndCorrect = verifiedAndCorrect
	attempt.ReconciledAt = &now

	return attempt, nil
}

func (f *fakeReconAttempts) MarkReconciled(
	_ context.Context, id uuid.UUID, feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool,
) (*models.LoginAttempt, error) {
	return f.reconcile(id, feedback, confirmedPrincipalID, verifiedAndCorrect)
}

func (f *fakeReconAttempts) MarkReconciledTx(
	_ context.Context, _ pgx.Tx, id uuid.UUID, feedback string, confirmedPrincipalID *uuid.UUID, verifiedAndCorrect bool,
) (*models.LoginAttempt, error) {
	return f.reconcile(id, feedback, confirmedPrincipalID, verifiedAndCorrect)
}

type fakeProfilesTxWriter struct {
	created []*models.Profile
}

func (f *fakeProfilesTxWriter) CreateTx(_ context.Context, _ pgx.Tx, profile *models.Profile) (*models.Profile, error) {
	created := *profile
	created.ID = uuid.New()
	created.Active = true
	f.created = append(f.created, &created)

	return &created, nil
}

type fakeEventsTxWriter struct {
	created []*models.FeedbackEvent
}

func (f *fakeEventsTxWriter) CreateTx(_ context.Context, _ pgx.Tx, event *models.FeedbackEvent) (*models.FeedbackEvent, error) {
	created := *event
	created.ID = uuid.New()
	f.created = append(f.created, &created)

	return &created, nil
}

type fixedCredentials struct {
	password string
}

func (f *fixedCredentials) Hash(_ string) (string, error) { return "hashed", nil }

func (f *fixedCredentials) Verify(_, password string) error {
	if password != f.password {
		return gateerrors.NewUnauthorizedError("invalid credentials")
	}

	return nil
}

type feedbackFixture struct {
	svc      *FeedbackService
	db       *fakeTxBeginner
	attempts *fakeReconAttempts
	profiles *fakeProfilesTxWriter
	events   *fakeEventsTxWriter
}

func newFeedbackFixture(attempt *models.LoginAttempt, principal *models.Principal) *feedbackFixture {
	db := &fakeTxBeginner{}
	attempts := newFakeReconAttempts(attempt)
	profiles := &fakeProfilesTxWriter{}
	events := &fakeEventsTxWriter{}
	principals := &fakePrincipalsReader{principals: map[uuid.UUID]*models.Principal{}}

	if principal != nil {
		principals.principals[principal.ID] = principal
	}

	svc := NewFeedbackService(
		db, attempts, profiles, events, principals,
		&stubExtractor{embedding: probeVector},
		&fixedCredentials{password: "secret"},
		slog.Default(),
	)

	return &feedbackFixture{svc: svc, db: db, attempts: attempts, profiles: profiles, events: events}
}

func unreconciled(principalID uuid.UUID) *models.LoginAttempt {
	distance := 0.15

	return &models.LoginAttempt{
		ID:                   uuid.New(),
		InitialStatus:        models.AttemptStatusSuccess,
		UserFeedback:         models.FeedbackAbsent,
		BestMatchPrincipalID: &principalID,
		BestMatchDistance:    &distance,
		CreatedAt:            time.Now(),
	}
}

func TestReconcileIncorrect(t *testing.T) {
	ctx := context.Background()
	principal := testPrincipal(uuid.New(), "alice@example.com")
	attempt := unreconciled(principal.ID)
	fx := newFeedbackFixture(attempt, principal)

	result, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
		AttemptID: attempt.ID,
		Decision:  models.FeedbackIncorrect,
	})
	require.NoError(t, err)

	assert.Equal(t, models.FeedbackIncorrect, result.UserFeedback)
	assert.Nil(t, result.ConfirmedPrincipalID)
	assert.False(t, result.IsVerifiedAndCorrect)
	assert.Nil(t, result.EnrichedProfileID)
	assert.Empty(t, fx.profiles.created, "incorrect feedback never enriches profiles")
}

func TestReconcileCorrect(t *testing.T) {
	ctx := context.Background()

	t.Run("verified correct enriches the profile set", func(t *testing.T) {
		principal := testPrincipal(uuid.New(), "alice@example.com")
		attempt := unreconciled(principal.ID)
		fx := newFeedbackFixture(attempt, principal)

		result, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
			AttemptID:          attempt.ID,
			Decision:           models.FeedbackCorrect,
			ClaimedPrincipalID: &principal.ID,
			Credential:         "secret",
			CorrectionImage:    []byte("capture"),
		})
		require.NoError(t, err)

		assert.Equal(t, models.FeedbackCorrect, result.UserFeedback)
		require.NotNil(t, result.ConfirmedPrincipalID)
		assert.Equal(t, principal.ID, *result.ConfirmedPrincipalID)
		assert.True(t, result.IsVerifiedAndCorrect)
		require.NotNil(t, result.EnrichedProfileID)

		require.Len(t, fx.profiles.created, 1)
		assert.Equal(t, models.ProvenanceFeedbackEnrichment, fx.profiles.created[0].Provenance)
		assert.Equal(t, principal.ID, fx.profiles.created[0].PrincipalID)

		require.Len(t, fx.events.created, 1)
		assert.Equal(t, attempt.ID, fx.events.created[0].AttemptID)
		assert.Equal(t, *result.EnrichedProfileID, fx.events.created[0].ProfileID)

		require.NotNil(t, fx.db.lastTx)
		assert.True(t, fx.db.lastTx.committed)
	})

	t.Run("claimed principal differing from prediction still closes verified correct", func(t *testing.T) {
		predicted := uuid.New()
		claimed := testPrincipal(uuid.New(), "bob@example.com")
		attempt := unreconciled(predicted)
		fx := newFeedbackFixture(attempt, claimed)

		result, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
			AttemptID:          attempt.ID,
			Decision:           models.FeedbackCorrect,
			ClaimedPrincipalID: &claimed.ID,
			Credential:         "secret",
			CorrectionImage:    []byte("capture"),
		})
		require.NoError(t, err)

		assert.True(t, result.IsVerifiedAndCorrect)
		require.NotNil(t, result.ConfirmedPrincipalID)
		assert.Equal(t, claimed.ID, *result.ConfirmedPrincipalID)
		assert.Len(t, fx.profiles.created, 1, "enrichment goes to the claimed principal")
		assert.Equal(t, claimed.ID, fx.profiles.created[0].PrincipalID)
	})

	t.Run("no-match attempt closes verified correct on a proven claim", func(t *testing.T) {
		claimed := testPrincipal(uuid.New(), "bob@example.com")
		attempt := unreconciled(claimed.ID)
		attempt.InitialStatus = models.AttemptStatusNoMatch
		attempt.BestMatchPrincipalID = nil
		attempt.BestMatchDistance = nil
		fx := newFeedbackFixture(attempt, claimed)

		result, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
			AttemptID:          attempt.ID,
			Decision:           models.FeedbackCorrect,
			ClaimedPrincipalID: &claimed.ID,
			Credential:         "secret",
			CorrectionImage:    []byte("capture"),
		})
		require.NoError(t, err)

		assert.Equal(t, models.FeedbackCorrect, result.UserFeedback)
		assert.True(t, result.IsVerifiedAndCorrect)
	})

	t.Run("wrong credential leaves the attempt untouched", func(t *testing.T) {
		principal := testPrincipal(uuid.New(), "alice@example.com")
		attempt := unreconciled(principal.ID)
		fx := newFeedbackFixture(attempt, principal)

		_, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
			AttemptID:          attempt.ID,
			Decision:           models.FeedbackCorrect,
			ClaimedPrincipalID: &principal.ID,
			Credential:         "wrong",
			CorrectionImage:    []byte("capture"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, gateerrors.ErrUnauthorized)

		assert.Equal(t, models.FeedbackAbsent, attempt.UserFeedback)
		assert.Empty(t, fx.profiles.created)
		assert.Empty(t, fx.events.created)
	})

	t.Run("detection failure on correction image leaves the attempt untouched", func(t *testing.T) {
		principal := testPrincipal(uuid.New(), "alice@example.com")
		attempt := unreconciled(principal.ID)
		fx := newFeedbackFixture(attempt, principal)
		fx.svc.extractor = &stubExtractor{err: gateerrors.ErrDetectionFailed}

		_, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
			AttemptID:          attempt.ID,
			Decision:           models.FeedbackCorrect,
			ClaimedPrincipalID: &principal.ID,
			Credential:         "secret",
			CorrectionImage:    []byte("capture"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, gateerrors.ErrDetectionFailed)

		assert.Equal(t, models.FeedbackAbsent, attempt.UserFeedback)
		assert.Empty(t, fx.profiles.created)
	})

	t.Run("missing claimed principal fails validation", func(t *testing.T) {
		principal := testPrincipal(uuid.New(), "alice@example.com")
		attempt := unreconciled(principal.ID)
		fx := newFeedbackFixture(attempt, principal)

		_, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
			AttemptID:       attempt.ID,
			Decision:        models.FeedbackCorrect,
			Credential:      "secret",
			CorrectionImage: []byte("capture"),
		})
		assert.ErrorIs(t, err, gateerrors.ErrValidation)
	})
}

func TestReconcileIdempotency(t *testing.T) {
	ctx := context.Background()
	principal := testPrincipal(uuid.New(), "alice@example.com")
	attempt := unreconciled(principal.ID)
	fx := newFeedbackFixture(attempt, principal)

	_, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
		AttemptID: attempt.ID,
		Decision:  models.FeedbackIncorrect,
	})
	require.NoError(t, err)

	_, err = fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
		AttemptID: attempt.ID,
		Decision:  models.FeedbackIncorrect,
	})
	assert.ErrorIs(t, err, gateerrors.ErrAlreadyReconciled)
}

func TestReconcileScoping(t *testing.T) {
	ctx := context.Background()
	principal := testPrincipal(uuid.New(), "alice@example.com")
	attempt := unreconciled(principal.ID)
	tenantID := uuid.New()
	attempt.TenantID = &tenantID
	fx := newFeedbackFixture(attempt, principal)

	_, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
		AttemptID: attempt.ID,
		Decision:  models.FeedbackIncorrect,
	})
	assert.ErrorIs(t, err, gateerrors.ErrNotFound)
}

func TestReconcileInvalidDecision(t *testing.T) {
	ctx := context.Background()
	principal := testPrincipal(uuid.New(), "alice@example.com")
	attempt := unreconciled(principal.ID)
	fx := newFeedbackFixture(attempt, principal)

	_, err := fx.svc.Reconcile(ctx, models.SystemScope(), &models.ReconcileRequest{
		AttemptID: attempt.ID,
		Decision:  "maybe",
	})
	assert.ErrorIs(t, err, gateerrors.ErrValidation)
}
