// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/partnerportal/portal/internal/handler/dto"
	"github.com/partnerportal/portal/internal/middleware"
	"github.com/partnerportal/portal/internal/service"
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{Code: code, Message: message},
	})
}

// decodeJSON reads a JSON body into dst and writes the error response when
// it cannot. It reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// writeValidationError reports a failed input check. Validation errors
// carry client-safe text.
func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		status, code = http.StatusConflict, "QUOTA_EXCEEDED"
	case errors.Is(err, service.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, service.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrExpiredToken):
		status, code = http.StatusBadRequest, "TOKEN_EXPIRED"
	case errors.Is(err, service.ErrInvalidToken):
		status, code = http.StatusBadRequest, "INVALID_TOKEN"
	case errors.Is(err, service.ErrDeliveryFailed):
		status, code = http.StatusBadRequest, "DELIVERY_FAILED"
	case errors.Is(err, service.ErrInvalidInput):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	default:
		logger.Error("internal_error",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeError(w, status, code, service.PublicMessage(err, http.StatusText(status)))
}
