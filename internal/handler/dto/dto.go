// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ValidateResetTokenRequest is the body of POST /auth/validate-reset-token.
type ValidateResetTokenRequest struct {
	Token string `json:"token"`
}

// CreateIntegrationRequest is the body of POST /integrations.
type CreateIntegrationRequest struct {
	String string `json:"string"`
}

// UpdateIntegrationRequest is the body of PATCH /integrations/{id}.
// Fields other than these are ignored.
type UpdateIntegrationRequest struct {
	String *string `json:"string,omitempty"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the body of an ErrorResponse.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
