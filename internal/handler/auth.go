package handler

import (
	"log/slog"
	"net/http"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/handler/dto"
	"github.com/partnerportal/portal/internal/middleware"
	"github.com/partnerportal/portal/internal/service"
)

// AuthHandler handles account and password-reset endpoints.
type AuthHandler struct {
	accounts *service.AuthService
	resets   *service.ResetService
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *service.AuthService, resets *service.ResetService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		resets:   resets,
		logger:   logger,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateEmail(req.Email); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := middleware.ValidatePassword(req.Password); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateEmail(req.Email); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.Password == "" {
		writeValidationError(w, middleware.ErrPasswordRequired)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Profile handles GET /api/v1/auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	profile, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ForgotPassword handles POST /api/v1/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateEmail(req.Email); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.resets.RequestReset(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: result.Message})
}

// ResetPassword handles POST /api/v1/auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateToken(req.Token); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := middleware.ValidatePassword(req.NewPassword); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.resets.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: result.Message})
}

// ValidateResetToken handles POST /api/v1/auth/validate-reset-token.
// Unusable tokens are a 200 with valid=false.
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateResetTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateToken(req.Token); err != nil {
		writeValidationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.resets.ValidateResetToken(r.Context(), req.Token))
}
