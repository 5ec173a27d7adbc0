package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/model"
	"github.com/partnerportal/portal/internal/service"
)

const (
	// minAuthDuration is the minimum time a rejected API key request takes,
	// so malformed, unknown and errored keys are indistinguishable by timing.
	minAuthDuration = 200 * time.Millisecond

	// APIKeyHeader carries partner API keys.
	APIKeyHeader = "X-API-Key"
)

// SessionVerifier verifies session tokens. auth.TokenService satisfies it.
type SessionVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// APIKeyValidator resolves an API key to its integration.
// service.IntegrationService satisfies it.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, key string) (*model.Integration, error)
}

// SessionConfig holds configuration for RequireSession.
type SessionConfig struct {
	Logger *slog.Logger
	Tokens SessionVerifier
}

// RequireSession authenticates requests with a bearer session token and
// stores the verified claims in the request context. Password-reset tokens
// are rejected.
func RequireSession(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}

			claims, err := cfg.Tokens.Verify(raw)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, auth.ErrTokenExpired) {
					reason = "expired_token"
				}
				logAuthFailure(cfg.Logger, r, reason)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}

			if claims.Type != auth.TokenTypeSession {
				logAuthFailure(cfg.Logger, r, "wrong_token_type")
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}

			req := r.WithContext(auth.ContextWithSession(r.Context(), claims))
			recordCaller(req)
			next.ServeHTTP(w, req)
		})
	}
}

// APIKeyConfig holds configuration for RequireAPIKey.
type APIKeyConfig struct {
	Logger    *slog.Logger
	Validator APIKeyValidator
}

// RequireAPIKey authenticates partner requests by the X-API-Key header and
// stores the integration in the request context.
func RequireAPIKey(cfg APIKeyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if key == "" {
				logAuthFailure(cfg.Logger, r, "missing_key")
				padAuthFailure(startTime)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required")
				return
			}

			in, err := cfg.Validator.ValidateAPIKey(r.Context(), key)
			if err != nil {
				status, code, message := http.StatusForbidden, "FORBIDDEN", service.MsgInvalidAPIKey
				if !errors.Is(err, service.ErrForbidden) {
					cfg.Logger.Error("api key validation error",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					status, code, message = http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
				} else {
					logAuthFailure(cfg.Logger, r, "invalid_key")
				}
				padAuthFailure(startTime)
				writeError(w, status, code, message)
				return
			}

			cfg.Logger.Debug("api key authenticated",
				slog.String("integration_id", in.ID),
				slog.String("key", auth.MaskAPIKey(key)),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			req := r.WithContext(auth.ContextWithIntegration(r.Context(), in))
			recordCaller(req)
			next.ServeHTTP(w, req)
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func padAuthFailure(start time.Time) {
	if elapsed := time.Since(start); elapsed < minAuthDuration {
		time.Sleep(minAuthDuration - elapsed)
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}
