package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/api/response"
	"github.com/facegate/facegate/internal/models"
	"github.com/facegate/facegate/internal/observability"
)

// PrincipalsService defines the interface for principal enrollment and lifecycle logic.
type PrincipalsService interface {
	Register(ctx context.Context, scope models.Scope, req *models.RegisterPrincipalRequest, thresholds models.Thresholds) (*models.Principal, *models.Profile, error)
	Get(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Principal, error)
	List(ctx context.Context, scope models.Scope) ([]models.Principal, error)
	ListProfiles(ctx context.Context, scope models.Scope, principalID uuid.UUID) ([]models.Profile, error)
	Delete(ctx context.Context, scope models.Scope, id uuid.UUID) error
	SetFaceAuthEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// PrincipalsHandler handles principal registration and lifecycle requests.
type PrincipalsHandler struct {
	service PrincipalsService
	metrics observability.GateMetrics
}

// NewPrincipalsHandler creates a new principals handler. metrics may be nil.
func NewPrincipalsHandler(service PrincipalsService, metrics observability.GateMetrics) *PrincipalsHandler {
	return &PrincipalsHandler{service: service, metrics: metrics}
}

// registerResponse pairs the created principal with its initial profile.
type registerResponse struct {
	Principal *models.Principal `json:"principal"`
	Profile   *models.Profile   `json:"profile"`
}

// Register handles POST /v1/auth/register and POST /v1/apps/{token}/users
// @Summary Register a principal with a face profile
// @Description Enrolls a new principal from a face image. Duplicate faces and duplicate emails in the same pool are conflicts unless force is set.
// @Tags Principals
// @Accept multipart/form-data
// @Produce json
// @Param email formData string true "Email, unique per pool"
// @Param full_name formData string true "Display name"
// @Param role formData string false "Role label"
// @Param password formData string true "Credential for feedback verification"
// @Param force formData bool false "Bypass duplicate guards and re-enroll"
// @Param image formData file true "Face image"
// @Param image_ref formData string false "Storage reference for the enrollment image"
// @Success 201 {object} registerResponse
// @Failure 400 {object} ProblemDetails "Missing or invalid fields"
// @Failure 409 {object} ProblemDetails "Face or email already enrolled"
// @Failure 422 {object} ProblemDetails "No face detected"
// @Security BearerAuth
// @Router /v1/auth/register [post]
func (h *PrincipalsHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	req := &models.RegisterPrincipalRequest{
		Email:    r.FormValue("email"),
		FullName: r.FormValue("full_name"),
		Role:     optionalFormValue(r, "role"),
		Password: r.FormValue("password"),
		Image:    image,
		ImageRef: optionalFormValue(r, "image_ref"),
		Force:    r.FormValue("force") == "true",
	}

	principal, profile, err := h.service.Register(r.Context(), sc.Scope, req, sc.Thresholds)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordEnrollment(r.Context(), scopeKind(sc.Scope), profile.Provenance)
	}

	response.RespondJSON(w, http.StatusCreated, registerResponse{Principal: principal, Profile: profile})
}

// Get handles GET /v1/auth/principals/{id} and GET /v1/apps/{token}/users/{id}
// @Summary Get a principal by ID
// @Tags Principals
// @Produce json
// @Param id path string true "Principal ID (UUID)"
// @Success 200 {object} Principal
// @Failure 400 {object} ProblemDetails "Invalid UUID format"
// @Failure 404 {object} ProblemDetails "Principal not found"
// @Security BearerAuth
// @Router /v1/auth/principals/{id} [get]
func (h *PrincipalsHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	principal, err := h.service.Get(r.Context(), sc.Scope, id)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, principal)
}

// List handles GET /v1/auth/principals and GET /v1/apps/{token}/users
// @Summary List the scope's principals
// @Tags Principals
// @Produce json
// @Success 200 {object} []Principal
// @Security BearerAuth
// @Router /v1/auth/principals [get]
func (h *PrincipalsHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := middleware.ScopeFrom(r.Context())
	if !ok {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	principals, err := h.service.List(r.Context(), sc.Scope)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, principals)
}

// ListProfiles handles GET /v1/auth/principals/{id}/profiles and GET /v1/apps/{token}/users/{id}/profiles
// @Summary List a principal's face profiles
// @Description Lists all profiles, active and inactive, with provenance. Embeddings are not returned.
// @Tags Principals
// @Produce json
// @Param id path string true "Principal ID (UUID)"
// @Success 200 {object} []Profile
// @Failure 400 {object} ProblemDetails "Invalid UUID format"
// @Failure 404 {object} ProblemDetails "Principal not found"
// @Security BearerAuth
// @Router /v1/auth/principals/{id}/profiles [get]
func (h *PrincipalsHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
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

	profiles, err := h.service.ListProfiles(r.Context(), sc.Scope, id)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, profiles)
}

// Delete handles DELETE /v1/auth/principals/{id} and DELETE /v1/apps/{token}/users/{id}
// @Summary Soft-delete a principal
// @Description Marks the principal deleted. Its ledger history is retained; re-registering the same email reactivates it.
// @Tags Principals
// @Param id path string true "Principal ID (UUID)"
// @Success 204 "No Content"
// @Failure 400 {object} ProblemDetails "Invalid UUID format"
// @Failure 404 {object} ProblemDetails "Principal not found"
// @Security BearerAuth
// @Router /v1/auth/principals/{id} [delete]
func (h *PrincipalsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.Delete(r.Context(), sc.Scope, id); err != nil {
		response.RespondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setFaceAuthRequest toggles face authentication for a system account.
type setFaceAuthRequest struct {
	FaceAuthEnabled *bool `json:"face_auth_enabled"`
}

// SetFaceAuthEnabled handles PATCH /v1/auth/principals/{id}/face-auth
// @Summary Toggle face authentication for a system account
// @Description Disabled principals stay enrolled but leave the matching pool.
// @Tags Principals
// @Accept json
// @Param id path string true "Principal ID (UUID)"
// @Param request body setFaceAuthRequest true "Desired state"
// @Success 204 "No Content"
// @Failure 400 {object} ProblemDetails "Invalid request"
// @Failure 404 {object} ProblemDetails "Principal not found"
// @Security BearerAuth
// @Router /v1/auth/principals/{id}/face-auth [patch]
func (h *PrincipalsHandler) SetFaceAuthEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return
	}

	var req setFaceAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}
	if req.FaceAuthEnabled == nil {
		response.RespondBadRequest(w, "face_auth_enabled is required")
		return
	}

	if err := h.service.SetFaceAuthEnabled(r.Context(), id, *req.FaceAuthEnabled); err != nil {
		response.RespondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
