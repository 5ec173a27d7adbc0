package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/cache"
	"github.com/partnerportal/portal/internal/config"
	"github.com/partnerportal/portal/internal/metrics"
	"github.com/partnerportal/portal/internal/notify"
	"github.com/partnerportal/portal/internal/repository"
	"github.com/partnerportal/portal/internal/server"
	"github.com/partnerportal/portal/internal/service"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
}

// store is what the services need from persistence plus lifecycle hooks.
type store interface {
	service.CredentialStore
	Ping(ctx context.Context) error
	Close()
}

// app holds the wired dependencies of one server process.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        store
	cache        *cache.Cache
	tokens       *auth.TokenService
	tasks        *service.Tasks
	recorder     metrics.Recorder
	metrics      http.Handler
	accounts     *service.AuthService
	resets       *service.ResetService
	integrations *service.IntegrationService
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := initLogger(cfg)
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)))
		return err
	}

	srv := server.New(setupRouter(a), server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: notifications drain before the stores they may read close.
	srv.OnShutdown("database", func(context.Context) error {
		a.store.Close()
		return nil
	})
	if a.cache != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return a.cache.Close()
		})
	}
	srv.OnShutdown("notifications", a.tasks.Wait)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"cache_enabled", a.cache != nil,
		"metrics_enabled", a.metrics != nil,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}

// newApp connects to the backing stores and builds the services. Empty
// DATABASE_URL selects the in-memory store; empty REDIS_URL disables caching.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.recorder = metrics.NewNoop()
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		a.recorder = prom
		a.metrics = prom.Handler()
	}

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		a.store = repository.NewMemoryStore()
	} else {
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("database_url", redactURL(cfg.DatabaseURL)).Wrap(err)
		}
		a.store = repo
		logger.Info("connected to database")
	}

	// A nil *cache.Cache must not reach the service as a non-nil interface.
	var lookups service.IntegrationCache
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			a.store.Close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("redis_url", redactURL(cfg.RedisURL)).Wrap(err)
		}
		a.cache = c
		lookups = c
		logger.Info("connected to Redis")
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		DefaultTTL: cfg.JWTExpiresIn,
		Issuer:     cfg.JWTIssuer,
	})
	if err != nil {
		a.close()
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	a.tokens = tokens

	hasher, err := auth.NewArgon2Hasher(auth.Argon2Params{
		Memory:      cfg.HashMemoryKiB,
		Iterations:  cfg.HashIterations,
		Parallelism: cfg.HashParallelism,
	})
	if err != nil {
		a.close()
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	notifier := notify.New(notify.MailgunConfig{
		APIKey:      cfg.MailgunAPIKey,
		Domain:      cfg.MailgunDomain,
		BaseURL:     cfg.MailgunBaseURL,
		FromEmail:   cfg.MailgunFromEmail,
		FromName:    cfg.MailgunFromName,
		FrontendURL: cfg.FrontendURL,
	}, a.recorder, logger)

	a.tasks = service.NewTasks(logger)
	a.accounts = service.NewAuthService(a.store, hasher, tokens, notifier, a.tasks, a.recorder, logger)
	a.resets = service.NewResetService(a.store, hasher, tokens, notifier, a.tasks, a.recorder, logger)
	a.integrations = service.NewIntegrationService(a.store, lookups, cfg.IntegrationQuota, a.recorder, logger)

	return a, nil
}

func (a *app) close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	a.store.Close()
}
