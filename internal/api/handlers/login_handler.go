package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/api/response"
	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
	"github.com/facegate/facegate/internal/observability"
)

// LoginService defines the interface for login classification business logic.
type LoginService interface {
	ClassifyLogin(ctx context.Context, req *models.CreateLoginAttemptRequest, image []byte, thresholds models.Thresholds) (*models.LoginResult, error)
	GetAttempt(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.LoginAttempt, error)
	ListAttempts(ctx context.Context, scope models.Scope, limit, offset int) ([]models.LoginAttempt, error)
}

// LoginHandler handles face login classification and the attempt ledger.
type LoginHandler struct {
	service LoginService
	metrics observability.GateMetrics
}

// NewLoginHandler creates a new login handler. metrics may be nil.
func NewLoginHandler(service LoginService, metrics observability.GateMetrics) *LoginHandler {
	return &LoginHandler{service: service, metrics: metrics}
}

// Classify handles POST /v1/auth/login and POST /v1/apps/{token}/login
// @Summary Classify a login capture
// @Description Matches a face image against the scope's enrolled pool and records a ledger entry
// @Tags Login
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Face image"
// @Param image_ref formData string false "Storage reference for the capture"
// @Success 200 {object} LoginResult
// @Failure 400 {object} ProblemDetails "Missing or invalid image"
// @Failure 422 {object} LoginResult "No face detected; body carries the recorded attempt ID"
// @Security BearerAuth
// @Router /v1/auth/login [post]
func (h *LoginHandler) Classify(w http.ResponseWriter, r *http.Request) {
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
	if len(image) == 0 {
		response.RespondBadRequest(w, "image file is required")
		return
	}

	req := &models.CreateLoginAttemptRequest{
		Scope:     sc.Scope,
		ImageRef:  optionalFormValue(r, "image_ref"),
		IPAddress: clientIP(r),
		UserAgent: userAgent(r),
	}

	result, err := h.service.ClassifyLogin(r.Context(), req, image, sc.Thresholds)
	if result != nil {
		h.recordAttempt(r.Context(), sc.Scope, result.Status)
	}

	if err != nil {
		// A detection failure still produced a ledger row; return the
		// attempt ID so the caller can reconcile it later.
		if errors.Is(err, gateerrors.ErrDetectionFailed) && result != nil {
			response.RespondJSON(w, http.StatusUnprocessableEntity, result)
			return
		}

		response.RespondServiceError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// GetAttempt handles GET /v1/auth/attempts/{id} and GET /v1/apps/{token}/attempts/{id}
// @Summary Get a login attempt by ID
// @Description Retrieves a single ledger entry; attempts outside the caller's scope are not found
// @Tags Login
// @Produce json
// @Param id path string true "Attempt ID (UUID)"
// @Success 200 {object} LoginAttempt
// @Failure 400 {object} ProblemDetails "Invalid UUID format"
// @Failure 404 {object} ProblemDetails "Attempt not found"
// @Security BearerAuth
// @Router /v1/auth/attempts/{id} [get]
func (h *LoginHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	sc, ok := middleware.ScopeFrom(r.Context())
	if !ok {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return
	}

	attempt, err := h.service.GetAttempt(r.Context(), sc.Scope, id)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, attempt)
}

// ListAttempts handles GET /v1/auth/attempts and GET /v1/apps/{token}/attempts
// @Summary List login attempts
// @Description Lists the scope's ledger entries, newest first
// @Tags Login
// @Produce json
// @Param limit query int false "Number of results to return (max 1000)"
// @Param offset query int false "Number of results to skip"
// @Success 200 {object} []LoginAttempt
// @Failure 400 {object} ProblemDetails "Invalid pagination parameters"
// @Security BearerAuth
// @Router /v1/auth/attempts [get]
func (h *LoginHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	sc, ok := middleware.ScopeFrom(r.Context())
	if !ok {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	query := r.URL.Query()

	var limit, offset int

	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			response.RespondBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			response.RespondBadRequest(w, "Invalid offset parameter")
			return
		}
		offset = parsed
	}

	attempts, err := h.service.ListAttempts(r.Context(), sc.Scope, limit, offset)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, attempts)
}

func (h *LoginHandler) recordAttempt(ctx context.Context, scope models.Scope, status string) {
	if h.metrics == nil {
		return
	}

	h.metrics.RecordLoginAttempt(ctx, scopeKind(scope), status)
}

// scopeKind maps a scope to its metric label.
func scopeKind(scope models.Scope) string {
	if scope.IsSystem() {
		return "system"
	}

	return "tenant"
}
