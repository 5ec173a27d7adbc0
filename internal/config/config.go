// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL). Empty runs an in-memory store in development.
	DatabaseURL string `env:"DATABASE_URL"`

	// Cache (Redis). Empty disables the API-key lookup cache.
	RedisURL string `env:"REDIS_URL"`

	// Tokens
	JWTSecret    string        `env:"JWT_SECRET,required,unset"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"168h"`
	JWTIssuer    string        `env:"JWT_ISSUER" envDefault:"partner-portal"`

	// Password hashing (argon2id). Zero keeps the built-in default.
	HashMemoryKiB   uint32 `env:"HASH_MEMORY_KIB" envDefault:"65536"`
	HashIterations  uint32 `env:"HASH_ITERATIONS" envDefault:"3"`
	HashParallelism uint8  `env:"HASH_PARALLELISM" envDefault:"4"`

	// Integrations per user
	IntegrationQuota int `env:"INTEGRATION_QUOTA" envDefault:"5"`

	// Mail delivery (Mailgun). Without an API key and domain, mail is disabled.
	MailgunAPIKey    string `env:"MAILGUN_API_KEY,unset"`
	MailgunDomain    string `env:"MAILGUN_DOMAIN"`
	MailgunBaseURL   string `env:"MAILGUN_BASE_URL" envDefault:"https://api.mailgun.net"`
	MailgunFromEmail string `env:"MAILGUN_FROM_EMAIL" envDefault:"noreply@example.com"`
	MailgunFromName  string `env:"MAILGUN_FROM_NAME" envDefault:"Partner Portal"`
	FrontendURL      string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://portal.example.com,*.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KiB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`

	// Expose Prometheus metrics on /metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// minJWTSecretLength matches the HS256 key size the token service accepts.
const minJWTSecretLength = 32

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength))
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.DatabaseURL == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("DATABASE_URL is required outside development"))
	}
	if c.IntegrationQuota <= 0 {
		errs = append(errs, errors.New("INTEGRATION_QUOTA must be positive"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
