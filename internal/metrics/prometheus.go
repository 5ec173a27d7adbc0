package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exports metrics through a dedicated registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	registrations       *prometheus.CounterVec
	logins              *prometheus.CounterVec
	hashDuration        prometheus.Histogram
	resetRequests       *prometheus.CounterVec
	resets              *prometheus.CounterVec
	integrationsCreated *prometheus.CounterVec
	integrationsUpdated prometheus.Counter
	integrationsDeleted prometheus.Counter
	keysRegenerated     prometheus.Counter
	keyValidations      *prometheus.CounterVec
	notifications       *prometheus.CounterVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors
// registered alongside the portal metrics.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_registrations_total",
			Help: "Account registrations by outcome",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_password_hash_duration_seconds",
			Help:    "Time spent deriving password hashes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		resetRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_password_reset_requests_total",
			Help: "Forgot-password requests by outcome",
		}, []string{"outcome"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_password_resets_total",
			Help: "Password reset completions by outcome",
		}, []string{"outcome"}),
		integrationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_integrations_created_total",
			Help: "Integration create attempts by outcome",
		}, []string{"outcome"}),
		integrationsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_integrations_updated_total",
			Help: "Integrations updated",
		}),
		integrationsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_integrations_deleted_total",
			Help: "Integrations deleted",
		}),
		keysRegenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_api_keys_regenerated_total",
			Help: "API keys rotated",
		}),
		keyValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_api_key_validations_total",
			Help: "API key validations by outcome and cache hit",
		}, []string{"outcome", "cache_hit"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_notifications_total",
			Help: "Outbound notifications by kind and outcome",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.registrations,
		p.logins,
		p.hashDuration,
		p.resetRequests,
		p.resets,
		p.integrationsCreated,
		p.integrationsUpdated,
		p.integrationsDeleted,
		p.keysRegenerated,
		p.keyValidations,
		p.notifications,
	)

	return p
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) IncRegistration(outcome string) {
	p.registrations.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncLogin(outcome string) {
	p.logins.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveHashDuration(duration time.Duration) {
	p.hashDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncPasswordResetRequest(outcome string) {
	p.resetRequests.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncPasswordReset(outcome string) {
	p.resets.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncIntegrationCreated(outcome string) {
	p.integrationsCreated.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncIntegrationUpdated() {
	p.integrationsUpdated.Inc()
}

func (p *PrometheusRecorder) IncIntegrationDeleted() {
	p.integrationsDeleted.Inc()
}

func (p *PrometheusRecorder) IncAPIKeyRegenerated() {
	p.keysRegenerated.Inc()
}

func (p *PrometheusRecorder) IncAPIKeyValidation(outcome string, cacheHit bool) {
	p.keyValidations.WithLabelValues(outcome, strconv.FormatBool(cacheHit)).Inc()
}

func (p *PrometheusRecorder) IncNotification(kind, outcome string) {
	p.notifications.WithLabelValues(kind, outcome).Inc()
}
