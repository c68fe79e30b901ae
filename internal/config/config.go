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

// maxLicenseBatch is the hard upper bound on keys per issue call.
const maxLicenseBatch = 100

// minJWTSecretLen is the shortest accepted HS256 secret.
const minJWTSecretLen = 32

// Validation errors.
var (
	ErrInvalidLicenseBatch = errors.New("LICENSE_MAX_BATCH must be between 1 and 100")
	ErrWeakJWTSecret       = errors.New("JWT_SECRET must be at least 32 bytes")
	ErrInvalidRateLimit    = errors.New("issue rate limit values must not be negative")
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required for this command")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required for this command")
)

// Config holds the API server configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Cache (Redis): session revocation and rate limits
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Session tokens issued by the identity provider
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer   string `env:"JWT_ISSUER" envDefault:""`
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// License issuance
	LicenseMaxBatch int `env:"LICENSE_MAX_BATCH" envDefault:"100"`

	// Per-principal issue rate limiting
	RateLimitIssueEnabled   bool `env:"RATE_LIMIT_ISSUE_ENABLED" envDefault:"true"`
	RateLimitIssuePerMinute int  `env:"RATE_LIMIT_ISSUE_PER_MINUTE" envDefault:"30"`
	RateLimitIssueBurst     int  `env:"RATE_LIMIT_ISSUE_BURST" envDefault:"5"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://admin.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`

	// Prometheus endpoint
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

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
	return splitList(c.CORSAllowedOrigins)
}

// Validate checks values the env tags cannot express.
func (c *Config) Validate() error {
	if c.LicenseMaxBatch < 1 || c.LicenseMaxBatch > maxLicenseBatch {
		return ErrInvalidLicenseBatch
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return ErrWeakJWTSecret
	}
	if c.RateLimitIssuePerMinute < 0 || c.RateLimitIssueBurst < 0 {
		return ErrInvalidRateLimit
	}
	return nil
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

// CLIConfig holds the licensectl configuration. Nothing is required up
// front; each command asks for what it uses.
type CLIConfig struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`
	RedisURL    string `env:"REDIS_URL" envDefault:""`

	JWTSecret   string `env:"JWT_SECRET" envDefault:""`
	JWTIssuer   string `env:"JWT_ISSUER" envDefault:""`
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:""`

	Token string `env:"KEYDESK_TOKEN" envDefault:""`

	LicenseMaxBatch int `env:"LICENSE_MAX_BATCH" envDefault:"100"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadCLI parses environment variables for licensectl.
func LoadCLI() (*CLIConfig, error) {
	cfg := &CLIConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LicenseMaxBatch < 1 || cfg.LicenseMaxBatch > maxLicenseBatch {
		return nil, fmt.Errorf("invalid config: %w", ErrInvalidLicenseBatch)
	}
	return cfg, nil
}

// RequireDatabase reports whether a database URL is configured.
func (c *CLIConfig) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

// RequireJWTSecret reports whether a usable session token secret is configured.
func (c *CLIConfig) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return ErrWeakJWTSecret
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
