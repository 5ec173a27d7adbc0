package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/partnerportal/portal/internal/handler"
	"github.com/partnerportal/portal/internal/middleware"
)

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(a *app) *chi.Mux {
	cfg, logger := a.cfg, a.logger

	var cacheCheck handler.HealthChecker
	if a.cache != nil {
		cacheCheck = a.cache
	}

	healthHandler := handler.NewHealthHandler(a.store, cacheCheck, logger)
	authHandler := handler.NewAuthHandler(a.accounts, a.resets, logger)
	integrationHandler := handler.NewIntegrationHandler(a.integrations, logger)
	partnerHandler := handler.NewPartnerHandler()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	requireSession := middleware.RequireSession(middleware.SessionConfig{
		Logger: logger,
		Tokens: a.tokens,
	})
	requireAPIKey := middleware.RequireAPIKey(middleware.APIKeyConfig{
		Logger:    logger,
		Validator: a.integrations,
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
			r.Post("/validate-reset-token", authHandler.ValidateResetToken)
			r.With(requireSession).Get("/profile", authHandler.Profile)
		})

		// Integration management (owner session)
		r.Route("/integrations", func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/", integrationHandler.Create)
			r.Get("/", integrationHandler.List)
			r.Get("/{id}", integrationHandler.Get)
			r.Patch("/{id}", integrationHandler.Update)
			r.Post("/{id}/regenerate-key", integrationHandler.RegenerateKey)
			r.Delete("/{id}", integrationHandler.Delete)
		})

		// Partner endpoints (API key)
		r.With(requireAPIKey).Get("/partner/me", partnerHandler.Me)
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
