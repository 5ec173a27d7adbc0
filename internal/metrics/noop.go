package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRegistration is a no-op.
func (n *NoopRecorder) IncRegistration(outcome string) {}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(outcome string) {}

// ObserveHashDuration is a no-op.
func (n *NoopRecorder) ObserveHashDuration(duration time.Duration) {}

// IncPasswordResetRequest is a no-op.
func (n *NoopRecorder) IncPasswordResetRequest(outcome string) {}

// IncPasswordReset is a no-op.
func (n *NoopRecorder) IncPasswordReset(outcome string) {}

// IncIntegrationCreated is a no-op.
func (n *NoopRecorder) IncIntegrationCreated(outcome string) {}

// IncIntegrationUpdated is a no-op.
func (n *NoopRecorder) IncIntegrationUpdated() {}

// IncIntegrationDeleted is a no-op.
func (n *NoopRecorder) IncIntegrationDeleted() {}

// IncAPIKeyRegenerated is a no-op.
func (n *NoopRecorder) IncAPIKeyRegenerated() {}

// IncAPIKeyValidation is a no-op.
func (n *NoopRecorder) IncAPIKeyValidation(outcome string, cacheHit bool) {}

// IncNotification is a no-op.
func (n *NoopRecorder) IncNotification(kind, outcome string) {}
