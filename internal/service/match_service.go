// Package service holds the business logic of the matching engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/facescan"
	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
	"github.com/facegate/facegate/pkg/embeddings"
)

// AttemptsRepository defines the ledger data access the matcher needs.
type AttemptsRepository interface {
	Create(ctx context.Context, req *models.CreateLoginAttemptRequest) (*models.LoginAttempt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.LoginAttempt, error)
	MarkClassified(ctx context.Context, id uuid.UUID, status string, bestMatchPrincipalID *uuid.UUID, bestMatchDistance *float64) error
	List(ctx context.Context, scope models.Scope, limit, offset int) ([]models.LoginAttempt, error)
}

// ProfilesReader loads the matching pool for a scope.
type ProfilesReader interface {
	ListActiveByScope(ctx context.Context, scope models.Scope) ([]models.ActiveProfile, error)
}

// PrincipalsReader resolves matched principal IDs to their details.
type PrincipalsReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
}

// MatchService classifies login captures against a scope's matching pool and
// records every request in the attempt ledger.
type MatchService struct {
	attempts   AttemptsRepository
	profiles   ProfilesReader
	principals PrincipalsReader
	extractor  facescan.Extractor
	logger     *slog.Logger
}

// NewMatchService creates a new match service.
func NewMatchService(
	attempts AttemptsRepository,
	profiles ProfilesReader,
	principals PrincipalsReader,
	extractor facescan.Extractor,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		attempts:   attempts,
		profiles:   profiles,
		principals: principals,
		extractor:  extractor,
		logger:     logger,
	}
}

// principalDistance is one principal's best distance across its active profiles.
type principalDistance struct {
	principalID uuid.UUID
	distance    float64
}

// bestPerPrincipal collapses the pool to each principal's minimum distance
// against the probe, sorted ascending by distance with principal ID as the
// deterministic tie-break.
func bestPerPrincipal(probe []float32, pool []models.ActiveProfile) []principalDistance {
	best := make(map[uuid.UUID]float64)

	for _, profile := range pool {
		d := embeddings.Distance(probe, profile.Embedding)

		current, seen := best[profile.PrincipalID]
		if !seen || d < current {
			best[profile.PrincipalID] = d
		}
	}

	ranked := make([]principalDistance, 0, len(best))
	for id, d := range best {
		ranked = append(ranked, principalDistance{principalID: id, distance: d})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}

		return strings.Compare(ranked[i].principalID.String(), ranked[j].principalID.String()) < 0
	})

	return ranked
}

// ClassifyLogin runs one login capture through the matcher. The ledger row is
// created before extraction so every request leaves a record; classification
// fields are then written exactly once. When extraction fails the attempt is
// closed with status "error" and the extraction error is returned alongside a
// result carrying the attempt ID.
func (s *MatchService) ClassifyLogin(
	ctx context.Context, req *models.CreateLoginAttemptRequest, image []byte, thresholds models.Thresholds,
) (*models.LoginResult, error) {
	if len(image) == 0 {
		return nil, gateerrors.NewValidationError("image", "image is required")
	}

	attempt, err := s.attempts.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	probe, err := s.extractor.Extract(ctx, image)
	if err != nil {
		if markErr := s.attempts.MarkClassified(ctx, attempt.ID, models.AttemptStatusError, nil, nil); markErr != nil {
			s.logger.Error("failed to record extraction failure", "attempt_id", attempt.ID, "error", markErr)
		}

		if errors.Is(err, gateerrors.ErrDetectionFailed) {
			return &models.LoginResult{AttemptID: attempt.ID, Status: models.AttemptStatusError}, err
		}

		return &models.LoginResult{AttemptID: attempt.ID, Status: models.AttemptStatusError},
			fmt.Errorf("extraction failed: %w", err)
	}

	pool, err := s.profiles.ListActiveByScope(ctx, req.Scope)
	if err != nil {
		return nil, err
	}

	ranked := bestPerPrincipal(probe, pool)

	status, bestID, bestDistance := classify(ranked, thresholds)

	if err := s.attempts.MarkClassified(ctx, attempt.ID, status, bestID, bestDistance); err != nil {
		return nil, err
	}

	result := &models.LoginResult{AttemptID: attempt.ID, Status: status, Distance: bestDistance}

	switch status {
	case models.AttemptStatusSuccess:
		principal, err := s.principals.GetByID(ctx, *bestID)
		if err != nil {
			return nil, err
		}

		result.Principal = principal
	case models.AttemptStatusAmbiguous:
		candidates, err := s.buildCandidates(ctx, ranked, thresholds.Fallback)
		if err != nil {
			return nil, err
		}

		result.Candidates = candidates
	}

	s.logger.Info("login attempt classified",
		"attempt_id", attempt.ID,
		"scope", req.Scope.String(),
		"status", status,
	)

	return result, nil
}

// classify maps the ranked distances to an outcome. The nearest principal is
// recorded even on no_match so reconciliation can judge the prediction later.
func classify(ranked []principalDistance, thresholds models.Thresholds) (status string, bestID *uuid.UUID, bestDistance *float64) {
	if len(ranked) == 0 {
		return models.AttemptStatusNoMatch, nil, nil
	}

	best := ranked[0]
	bestID = &best.principalID
	bestDistance = &best.distance

	switch {
	case best.distance <= thresholds.Confidence:
		return models.AttemptStatusSuccess, bestID, bestDistance
	case best.distance <= thresholds.Fallback:
		return models.AttemptStatusAmbiguous, bestID, bestDistance
	default:
		return models.AttemptStatusNoMatch, bestID, bestDistance
	}
}

// buildCandidates resolves every principal within the fallback band to a
// ranked candidate entry.
func (s *MatchService) buildCandidates(
	ctx context.Context, ranked []principalDistance, fallback float64,
) ([]models.Candidate, error) {
	candidates := make([]models.Candidate, 0, len(ranked))

	for _, entry := range ranked {
		if entry.distance > fallback {
			break
		}

		principal, err := s.principals.GetByID(ctx, entry.principalID)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, models.Candidate{
			PrincipalID: principal.ID,
			Email:       principal.Email,
			FullName:    principal.FullName,
			Distance:    entry.distance,
		})
	}

	return candidates, nil
}

// GetAttempt retrieves one ledger row, scoped: callers only see attempts of
// their own scope.
func (s *MatchService) GetAttempt(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.LoginAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if attempt.Scope().String() != scope.String() {
		return nil, gateerrors.NewNotFoundError("login attempt", "login attempt not found")
	}

	return attempt, nil
}

// ListAttempts retrieves a scope's ledger rows, newest first.
func (s *MatchService) ListAttempts(ctx context.Context, scope models.Scope, limit, offset int) ([]models.LoginAttempt, error) {
	if limit <= 0 {
		limit = 100 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}

	return s.attempts.List(ctx, scope, limit, offset)
}
