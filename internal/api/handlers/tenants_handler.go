package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/api/response"
	"github.com/facegate/facegate/internal/models"
)

// TenantsService defines the interface for tenant administration logic.
type TenantsService interface {
	CreateTenant(ctx context.Context, req *models.CreateTenantRequest) (*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	UpdateTenant(ctx context.Context, id uuid.UUID, req *models.UpdateTenantRequest) (*models.Tenant, error)
	DeleteTenant(ctx context.Context, id uuid.UUID) error
}

// TenantsHandler handles tenant administration requests.
type TenantsHandler struct {
	service TenantsService
}

// NewTenantsHandler creates a new tenants handler.
func NewTenantsHandler(service TenantsService) *TenantsHandler {
	return &TenantsHandler{service: service}
}

// Create handles POST /v1/tenants
// @Summary Create a tenant
// @Description Creates a tenant with its own matching pool and thresholds. The API token is returned only in this response.
// @Tags Tenants
// @Accept json
// @Produce json
// @Param request body CreateTenantRequest true "Tenant to create"
// @Success 201 {object} Tenant
// @Failure 400 {object} ProblemDetails "Invalid name or thresholds"
// @Security BearerAuth
// @Router /v1/tenants [post]
func (h *TenantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	tenant, err := h.service.CreateTenant(r.Context(), &req)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, tenant)
}

// Get handles GET /v1/tenants/{id}
// @Summary Get a tenant by ID
// @Tags Tenants
// @Produce json
// @Param id path string true "Tenant ID (UUID)"
// @Success 200 {object} Tenant
// @Failure 400 {object} ProblemDetails "Invalid UUID format"
// @Failure 404 {object} ProblemDetails "Tenant not found"
// @Security BearerAuth
// @Router /v1/tenants/{id} [get]
func (h *TenantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return
	}

	tenant, err := h.service.GetTenant(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, tenant)
}

// List handles GET /v1/tenants
// @Summary List tenants
// @Tags Tenants
// @Produce json
// @Success 200 {object} []Tenant
// @Security BearerAuth
// @Router /v1/tenants [get]
func (h *TenantsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, tenants)
}

// Update handles PATCH /v1/tenants/{id}
// @Summary Update a tenant
// @Description Updates name or thresholds. The API token never changes.
// @Tags Tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID (UUID)"
// @Param request body UpdateTenantRequest true "Fields to update"
// @Success 200 {object} Tenant
// @Failure 400 {object} ProblemDetails "Invalid request or thresholds"
// @Failure 404 {object} ProblemDetails "Tenant not found"
// @Security BearerAuth
// @Router /v1/tenants/{id} [patch]
func (h *TenantsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return
	}

	var req models.UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	tenant, err := h.service.UpdateTenant(r.Context(), id, &req)
	if err != nil {
		response.RespondServiceError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, tenant)
}

// Delete handles DELETE /v1/tenants/{id}
// @Summary Delete a tenant
// @Description Removes the tenant and cascades to its principals, profiles and ledger.
// @Tags Tenants
// @Param id path string true "Tenant ID (UUID)"
// @Success 204 "No Content"
// @Failure 400 {object} ProblemDetails "Invalid UUID format"
// @Failure 404 {object} ProblemDetails "Tenant not found"
// @Security BearerAuth
// @Router /v1/tenants/{id} [delete]
func (h *TenantsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return
	}

	if err := h.service.DeleteTenant(r.Context(), id); err != nil {
		response.RespondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
