package auth

import (
	"context"

	"github.com/partnerportal/portal/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	sessionContextKey     contextKey = "session_claims"
	integrationContextKey contextKey = "integration"
)

// ContextWithSession stores verified session claims in ctx.
func ContextWithSession(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, sessionContextKey, claims)
}

// SessionFromContext returns the session claims, or nil when the request is unauthenticated.
func SessionFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(sessionContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// UserIDFromContext returns the authenticated user id or "".
func UserIDFromContext(ctx context.Context) string {
	claims := SessionFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.UserID()
}

// ContextWithIntegration stores the integration authenticated by API key.
func ContextWithIntegration(ctx context.Context, in *model.Integration) context.Context {
	return context.WithValue(ctx, integrationContextKey, in)
}

// IntegrationFromContext returns the API-key authenticated integration or nil.
func IntegrationFromContext(ctx context.Context) *model.Integration {
	in, ok := ctx.Value(integrationContextKey).(*model.Integration)
	if !ok {
		return nil
	}
	return in
}
