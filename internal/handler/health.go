package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// readyTimeout bounds all dependency checks of one readiness probe.
const readyTimeout = 3 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db     HealthChecker
	cache  HealthChecker
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for db or cache when the dependency is not in use.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe. It returns 200 only if every configured
// dependency answers. Failure details go to the log, not the response.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := map[string]string{
		"database": h.check(ctx, "database", h.db),
		"cache":    h.check(ctx, "cache", h.cache),
	}

	status, code := "ok", http.StatusOK
	for _, result := range checks {
		if result == "error" {
			status, code = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}

func (h *HealthHandler) check(ctx context.Context, name string, checker HealthChecker) string {
	if checker == nil {
		return "not configured"
	}
	if err := checker.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed",
			slog.String("dependency", name),
			slog.String("error", err.Error()),
		)
		return "error"
	}
	return "ok"
}
