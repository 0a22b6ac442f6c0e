package service

import (
	"context"
	"time"

	"github.com/facegate/facegate/internal/models"
)

// AttemptCounter aggregates the ledger for one scope and window.
type AttemptCounter interface {
	CountWindow(ctx context.Context, scope models.Scope, since *time.Time) (*models.AttemptWindowCounts, error)
}

// MetricsService derives quality rates from the attempt ledger.
type MetricsService struct {
	attempts AttemptCounter
}

// NewMetricsService creates a new metrics service.
func NewMetricsService(attempts AttemptCounter) *MetricsService {
	return &MetricsService{attempts: attempts}
}

// Report aggregates a scope's ledger, optionally restricted to attempts
// created at or after since. Rates are defined only over attempts that
// received feedback; with no feedback in the window they are nil, never zero.
func (s *MetricsService) Report(
	ctx context.Context, scope models.Scope, since *time.Time,
) (*models.MetricsReport, error) {
	counts, err := s.attempts.CountWindow(ctx, scope, since)
	if err != nil {
		return nil, err
	}

	report := &models.MetricsReport{
		Scope:              scope.String(),
		WindowStart:        since,
		Total:              counts.Total,
		ByInitialStatus:    counts.ByInitialStatus,
		ConfirmedCorrect:   counts.ConfirmedCorrect,
		ConfirmedIncorrect: counts.ConfirmedIncorrect,
	}

	feedbacked := counts.ConfirmedCorrect + counts.ConfirmedIncorrect
	if feedbacked > 0 {
		tpr := float64(counts.ConfirmedCorrect) / float64(feedbacked)
		fpr := float64(counts.ConfirmedIncorrect) / float64(feedbacked)
		report.TruePositiveRate = &tpr
		report.FalsePositiveRate = &fpr
	}

	return report, nil
}
