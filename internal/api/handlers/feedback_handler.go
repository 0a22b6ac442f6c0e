package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/api/response"
	"github.com/facegate/facegate/internal/models"
	"github.com/facegate/facegate/internal/observability"
)

// FeedbackService defines the interface for attempt reconciliation business logic.
type FeedbackService interface {
	Reconcile(ctx context.Context, scope models.Scope, req *models.ReconcileRequest) (*models.ReconcileResult, error)
}

// FeedbackHandler handles user feedback on classified login attempts.
type FeedbackHandler struct {
	service FeedbackService
	metrics observability.GateMetrics
}

// NewFeedbackHandler creates a new feedback handler. metrics may be nil.
func NewFeedbackHandler(service FeedbackService, metrics observability.GateMetrics) *FeedbackHandler {
	return &FeedbackHandler{service: service, metrics: metrics}
}

// Reconcile handles POST /v1/auth/feedback and POST /v1/apps/{token}/feedback
// @Summary Reconcile a login attempt
// @Description Applies the user's verdict to a classified attempt. A "correct" verdict requires the claimed principal's credential and a correction image, and enriches that principal's profile set.
// @Tags Feedback
// @Accept multipart/form-data
// @Produce json
// @Param attempt_id formData string true "Attempt ID (UUID)"
// @Param decision formData string true "correct or incorrect"
// @Param principal_id formData string false "Claimed principal ID (required for correct)"
// @Param password formData string false "Claimed principal's credential (required for correct)"
// @Param image formData file false "Correction image (required for correct)"
// @Param image_ref formData string false "Storage reference for the correction image"
// @Success 200 {object} ReconcileResult
// @Failure 400 {object} ProblemDetails "Invalid or incomplete fields"
// @Failure 401 {object} ProblemDetails "Credential verification failed"
// @Failure 404 {object} ProblemDetails "Attempt or principal not found"
// @Failure 409 {object} ProblemDetails "Attempt already reconciled"
// @Failure 422 {object} ProblemDetails "No face detected in the correction image"
// @Security BearerAuth
// @Router /v1/auth/feedback [post]
func (h *FeedbackHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	sc, ok := middleware.ScopeFrom(r.Context())
	if !ok {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	image, err := readImageFile(r, "image")
	if err != nil {
		response.RespondBadRequest(w, "Invalid multipart body")
		return
	}

	attemptID, err := uuid.Parse(r.FormValue("attempt_id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid attempt_id")
		return
	}

	req := &models.ReconcileRequest{
		AttemptID:       attemptID,
		Decision:        r.FormValue("decision"),
		Credential:      r.FormValue("password"),
		CorrectionImage: image,
		ImageRef:        optionalFormValue(r, "image_ref"),
	}

	if principalIDStr := r.FormValue("principal_id"); principalIDStr != "" {
		principalID, err := uuid.Parse(principalIDStr)
		if err != nil {
			response.RespondBadRequest(w, "Invalid principal_id")
			return
		}
		req.ClaimedPrincipalID = &principalID
	}

	result, err := h.service.Reconcile(r.Context(), sc.Scope, req)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordReconciliation(r.Context(), result.UserFeedback, result.IsVerifiedAndCorrect)
	}

	response.RespondJSON(w, http.StatusOK, result)
}
