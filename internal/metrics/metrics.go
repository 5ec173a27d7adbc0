// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by the account and integration counters.
const (
	OutcomeSuccess            = "success"
	OutcomeConflict           = "conflict"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeUnknownEmail       = "unknown_email"
	OutcomeDeliveryFailed     = "delivery_failed"
	OutcomeExpired            = "expired"
	OutcomeInvalid            = "invalid"
	OutcomeQuotaExceeded      = "quota_exceeded"
	OutcomeError              = "error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncRegistration(outcome string)
	IncLogin(outcome string)
	ObserveHashDuration(duration time.Duration)

	// Password reset metrics
	IncPasswordResetRequest(outcome string)
	IncPasswordReset(outcome string)

	// Integration metrics
	IncIntegrationCreated(outcome string)
	IncIntegrationUpdated()
	IncIntegrationDeleted()
	IncAPIKeyRegenerated()
	IncAPIKeyValidation(outcome string, cacheHit bool)

	// Notification metrics
	IncNotification(kind, outcome string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
