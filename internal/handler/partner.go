package handler

import (
	"net/http"

	"github.com/partnerportal/portal/internal/auth"
)

// PartnerHandler serves endpoints called by partners with an API key.
type PartnerHandler struct{}

// NewPartnerHandler creates a new PartnerHandler.
func NewPartnerHandler() *PartnerHandler {
	return &PartnerHandler{}
}

// Me handles GET /api/v1/partner/me. It returns the calling integration
// without its API key.
func (h *PartnerHandler) Me(w http.ResponseWriter, r *http.Request) {
	in := auth.IntegrationFromContext(r.Context())
	if in == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required")
		return
	}
	writeJSON(w, http.StatusOK, in.ToPublicResponse())
}
