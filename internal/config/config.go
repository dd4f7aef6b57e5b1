// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Gateward server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Auth    AuthConfig    `koanf:"auth"`
	Policy  PolicyConfig  `koanf:"policy"`
	Cache   CacheConfig   `koanf:"cache"`
	Audit   AuditConfig   `koanf:"audit"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// Timeout bounds request read/write and graceful shutdown.
	Timeout time.Duration `koanf:"timeout"`

	// Environment is "development" or "production".
	Environment string `koanf:"environment"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs is the request budget per window per client IP.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limiting window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// RateLimitDisabled turns off HTTP rate limiting entirely.
	RateLimitDisabled bool `koanf:"rate_limit_disabled"`
}

// AuthConfig holds identity resolution settings.
type AuthConfig struct {
	// JWTSecret signs access tokens. Required, minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// Issuer is stamped into and required of every token.
	Issuer string `koanf:"issuer"`

	// AdminUsername/AdminPassword seed the credential store.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// TokenRateBurst is the number of token requests allowed per
	// TokenRateWindow per client IP before 429.
	TokenRateBurst  int           `koanf:"token_rate_burst"`
	TokenRateWindow time.Duration `koanf:"token_rate_window"`
}

// PolicyConfig holds permission validator settings.
type PolicyConfig struct {
	// ModelPath/PolicyPath override the embedded casbin model and
	// policy files when set.
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`

	// DefaultRole is granted to every authenticated subject.
	DefaultRole string `koanf:"default_role"`

	// CacheEnabled turns on the decision cache in front of the enforcer.
	CacheEnabled bool `koanf:"cache_enabled"`

	// CacheTTL bounds how long a cached decision may be reused.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	Remote RemotePolicyConfig `koanf:"remote"`
}

// RemotePolicyConfig configures the optional external policy decision
// point consulted instead of the embedded enforcer.
type RemotePolicyConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL is the decision endpoint, e.g. https://pdp.internal/v1/decide.
	URL string `koanf:"url"`

	// Timeout bounds a single decision request.
	Timeout time.Duration `koanf:"timeout"`

	// RetryCount is how many times a failed request is retried.
	RetryCount int `koanf:"retry_count"`

	// BreakerMaxFailures consecutive failures open the circuit.
	BreakerMaxFailures int `koanf:"breaker_max_failures"`

	// BreakerOpenTimeout is how long the circuit stays open.
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	// Enabled turns the private response cache on.
	Enabled bool `koanf:"enabled"`

	// Capacity is the maximum number of cached responses.
	Capacity int `koanf:"capacity"`

	// DefaultTTL applies to entries whose response carries no max-age.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// AuditConfig holds decision audit settings.
type AuditConfig struct {
	Enabled bool `koanf:"enabled"`

	// Store selects the event store backend: memory or badger.
	Store string `koanf:"store"`

	// StorePath is the badger directory (badger store only).
	StorePath string `koanf:"store_path"`

	// RetentionTTL is how long events are kept.
	RetentionTTL time.Duration `koanf:"retention_ttl"`

	// BufferSize is the publish buffer; events beyond it are dropped
	// rather than blocking requests.
	BufferSize int `koanf:"buffer_size"`

	// CleanupInterval is how often expired events are swept.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// StreamEnabled exposes the live websocket decision stream.
	StreamEnabled bool `koanf:"stream_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validatePolicy(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitReqs)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.Auth.JWTSecret))
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %v", c.Auth.TokenTTL)
	}
	if c.Server.Environment == "production" {
		if c.Auth.AdminUsername == "" || c.Auth.AdminPassword == "" {
			return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required in production")
		}
	}
	if c.Auth.AdminPassword != "" && len(c.Auth.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}

func (c *Config) validatePolicy() error {
	if c.Policy.DefaultRole == "" {
		return fmt.Errorf("POLICY_DEFAULT_ROLE must not be empty")
	}
	if c.Policy.CacheEnabled && c.Policy.CacheTTL <= 0 {
		return fmt.Errorf("POLICY_CACHE_TTL must be positive when the decision cache is enabled")
	}
	if c.Policy.Remote.Enabled {
		if c.Policy.Remote.URL == "" {
			return fmt.Errorf("POLICY_REMOTE_URL is required when POLICY_REMOTE_ENABLED=true")
		}
		if c.Policy.Remote.Timeout <= 0 {
			return fmt.Errorf("POLICY_REMOTE_TIMEOUT must be positive, got %v", c.Policy.Remote.Timeout)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("CACHE_CAPACITY must be at least 1, got %d", c.Cache.Capacity)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive, got %v", c.Cache.DefaultTTL)
	}
	return nil
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	switch c.Audit.Store {
	case "memory":
	case "badger":
		if c.Audit.StorePath == "" {
			return fmt.Errorf("AUDIT_STORE_PATH is required when AUDIT_STORE=badger")
		}
	default:
		return fmt.Errorf("AUDIT_STORE must be memory or badger, got %q", c.Audit.Store)
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1, got %d", c.Audit.BufferSize)
	}
	if c.Audit.RetentionTTL <= 0 {
		return fmt.Errorf("AUDIT_RETENTION_TTL must be positive, got %v", c.Audit.RetentionTTL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, disabled; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
