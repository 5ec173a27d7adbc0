// Package notify delivers transactional email for the portal.
package notify

import "context"

// Notification kinds, used for template names and metric labels.
const (
	KindWelcome                   = "welcome"
	KindPasswordReset             = "password-reset"
	KindPasswordResetConfirmation = "password-reset-confirmation"
)

// Subjects for outbound mail.
const (
	SubjectWelcome                   = "Welcome - Partner Portal"
	SubjectPasswordReset             = "Password Reset Request - Partner Portal"
	SubjectPasswordResetConfirmation = "Password Reset Successful - Partner Portal"
)

// Notifier sends account email. Each method reports whether the message was
// accepted by the transport; callers decide whether a failure matters.
type Notifier interface {
	SendWelcome(ctx context.Context, email string) bool
	SendPasswordReset(ctx context.Context, email, token string) bool
	SendPasswordResetConfirmation(ctx context.Context, email string) bool
}
