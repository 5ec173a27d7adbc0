package middleware

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/partnerportal/portal/internal/model"
	"github.com/partnerportal/portal/internal/service"
)

// Validation limits.
const (
	// MaxEmailLength is the RFC 5321 path limit.
	MaxEmailLength = 254

	// MaxLabelInputLength bounds the raw integration label before normalization.
	MaxLabelInputLength = 100

	// MaxTokenLength bounds reset tokens accepted from clients.
	MaxTokenLength = 2048
)

// Validation errors. Their text is returned to clients as-is.
var (
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailTooLong     = errors.New("email exceeds maximum length")
	ErrEmailInvalid     = errors.New("email must be a valid address")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordLength   = errors.New("password must be between 8 and 128 characters")
	ErrPasswordEncoding = errors.New("password must be valid UTF-8 without control characters")
	ErrLabelRequired    = errors.New("string is required")
	ErrLabelTooLong     = errors.New("string exceeds maximum length")
	ErrLabelInvalid     = errors.New("string must contain 3 to 50 letters, digits or underscores")
	ErrTokenRequired    = errors.New("token is required")
	ErrTokenTooLong     = errors.New("token exceeds maximum length")
)

// ValidateEmail checks the shape of an email address. It accepts a bare
// address only, not "Name <addr>" forms.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrEmailInvalid
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return ErrEmailInvalid
	}
	return nil
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if !utf8.ValidString(password) {
		return ErrPasswordEncoding
	}
	for _, r := range password {
		if unicode.IsControl(r) {
			return ErrPasswordEncoding
		}
	}

	n := utf8.RuneCountInString(password)
	if n < service.MinPasswordLength || n > service.MaxPasswordLength {
		return ErrPasswordLength
	}
	return nil
}

// ValidateIntegrationLabel checks a raw integration label. The label is
// valid when its normalized form has an acceptable length.
func ValidateIntegrationLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return ErrLabelRequired
	}
	if len(label) > MaxLabelInputLength {
		return ErrLabelTooLong
	}
	if !model.ValidIntegrationString(model.NormalizeIntegrationString(label)) {
		return ErrLabelInvalid
	}
	return nil
}

// ValidateToken checks a client-supplied reset token for presence and size.
func ValidateToken(token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	if len(token) > MaxTokenLength {
		return ErrTokenTooLong
	}
	return nil
}
