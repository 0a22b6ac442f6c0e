package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/api/response"
	"github.com/facegate/facegate/internal/models"
)

// MetricsReportService defines the interface for ledger quality reporting.
type MetricsReportService interface {
	Report(ctx context.Context, scope models.Scope, since *time.Time) (*models.MetricsReport, error)
}

// MetricsHandler handles quality report requests on the admin surface.
type MetricsHandler struct {
	service MetricsReportService
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(service MetricsReportService) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// Report handles GET /v1/metrics/report
// @Summary Report windowed match quality for a pool
// @Description Aggregates a scope's attempt ledger. Rates are computed only over attempts with feedback and are null when none exists.
// @Tags Metrics
// @Produce json
// @Param tenant_id query string false "Report on this tenant's pool; omit for the system pool"
// @Param since query string false "Window start, ISO 8601 (e.g. 2026-08-01T00:00:00Z)"
// @Param window query string false "Window as a duration back from now (e.g. 168h); mutually exclusive with since"
// @Success 200 {object} MetricsReport
// @Failure 400 {object} ProblemDetails "Invalid parameters"
// @Security BearerAuth
// @Router /v1/metrics/report [get]
func (h *MetricsHandler) Report(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	scope := models.SystemScope()

	if tenantIDStr := query.Get("tenant_id"); tenantIDStr != "" {
		tenantID, err := uuid.Parse(tenantIDStr)
		if err != nil {
			response.RespondBadRequest(w, "Invalid tenant_id")
			return
		}
		scope = models.TenantScope(tenantID)
	}

	sinceStr := query.Get("since")
	windowStr := query.Get("window")

	if sinceStr != "" && windowStr != "" {
		response.RespondBadRequest(w, "since and window are mutually exclusive")
		return
	}

	var since *time.Time

	if sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			response.RespondBadRequest(w, "Invalid since format, use ISO 8601")
			return
		}
		since = &parsed
	}

	if windowStr != "" {
		window, err := time.ParseDuration(windowStr)
		if err != nil || window <= 0 {
			response.RespondBadRequest(w, "Invalid window duration")
			return
		}
		start := time.Now().Add(-window)
		since = &start
	}

	report, err := h.service.Report(r.Context(), scope, since)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}
