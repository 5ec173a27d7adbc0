package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/handler/dto"
	"github.com/partnerportal/portal/internal/middleware"
	"github.com/partnerportal/portal/internal/service"
)

// IntegrationHandler handles owner-facing integration endpoints. Every
// route runs behind middleware.RequireSession.
type IntegrationHandler struct {
	svc    *service.IntegrationService
	logger *slog.Logger
}

// NewIntegrationHandler creates a new IntegrationHandler.
func NewIntegrationHandler(svc *service.IntegrationService, logger *slog.Logger) *IntegrationHandler {
	return &IntegrationHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/integrations.
func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req dto.CreateIntegrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateIntegrationLabel(req.String); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := h.svc.Create(r.Context(), ownerID, req.String)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/v1/integrations.
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	list, err := h.svc.List(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/integrations/{id}.
func (h *IntegrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	in, err := h.svc.Get(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, in)
}

// Update handles PATCH /api/v1/integrations/{id}.
func (h *IntegrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req dto.UpdateIntegrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.String != nil {
		if err := middleware.ValidateIntegrationLabel(*req.String); err != nil {
			writeValidationError(w, err)
			return
		}
	}

	updated, err := h.svc.Update(r.Context(), ownerID, chi.URLParam(r, "id"), service.IntegrationPatch{String: req.String})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// RegenerateKey handles POST /api/v1/integrations/{id}/regenerate-key.
func (h *IntegrationHandler) RegenerateKey(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	updated, err := h.svc.RegenerateAPIKey(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/integrations/{id}.
func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	if err := h.svc.Remove(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Integration deleted successfully"})
}

func (h *IntegrationHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return "", false
	}
	return userID, true
}
