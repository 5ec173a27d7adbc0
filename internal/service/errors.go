package service

import (
	"errors"

	"github.com/samber/oops"
)

// Service errors. Callers match them with errors.Is; the user-facing text
// travels as the oops public message.
var (
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("expired token")
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrInvalidInput   = errors.New("invalid input")
)

// Public messages.
const (
	MsgEmailTaken         = "User with this email already exists"
	MsgInvalidCredentials = "Invalid credentials"
	MsgUserNotFound       = "User not found"
	MsgResetRequested     = "If an account with that email exists, a password reset link has been sent."
	MsgResetDone          = "Password has been reset successfully."
	MsgResetExpired       = "Reset token has expired."
	MsgResetExpiredRetry  = "Reset token has expired. Please request a new one."
	MsgResetInvalid       = "Invalid reset token."
	MsgResetWrongType     = "Invalid token type."
	MsgDeliveryFailed     = "Failed to send password reset email. Please try again."
	MsgIntegrationMissing = "Integration not found"
	MsgStringTaken        = "This unique string is already taken. Please choose another one."
	MsgInvalidAPIKey      = "Invalid API key"
)

// fail wraps a sentinel with a stable error code and a public message.
func fail(code, public string, sentinel error) error {
	return oops.Code(code).Public(public).Wrap(sentinel)
}

// PublicMessage returns the user-facing message attached to err, or fallback.
func PublicMessage(err error, fallback string) string {
	return oops.GetPublic(err, fallback)
}
