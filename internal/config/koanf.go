// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gateward/config.yaml",
	"/etc/gateward/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all built-in defaults. Defaults
// are applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8473,
			Timeout:           30 * time.Second,
			Environment:       "development",
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Auth: AuthConfig{
			JWTSecret:       "",
			TokenTTL:        24 * time.Hour,
			Issuer:          "gateward",
			AdminUsername:   "",
			AdminPassword:   "",
			TokenRateBurst:  5,
			TokenRateWindow: 5 * time.Minute,
		},
		Policy: PolicyConfig{
			ModelPath:    "",
			PolicyPath:   "",
			DefaultRole:  "viewer",
			CacheEnabled: true,
			CacheTTL:     5 * time.Minute,
			Remote: RemotePolicyConfig{
				Enabled:            false,
				URL:                "",
				Timeout:            5 * time.Second,
				RetryCount:         2,
				BreakerMaxFailures: 5,
				BreakerOpenTimeout: 30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Enabled:         true,
			Capacity:        1024,
			DefaultTTL:      time.Minute,
			CleanupInterval: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:         true,
			Store:           "memory",
			StorePath:       "/data/gateward/audit",
			RetentionTTL:    90 * 24 * time.Hour,
			BufferSize:      1024,
			CleanupInterval: time.Hour,
			StreamEnabled:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. The returned Config is validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring CONFIG_PATH first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied through environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unknown variables map to "" and are skipped, so arbitrary
// process environment never pollutes the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - JWT_SECRET -> auth.jwt_secret
//   - POLICY_CACHE_TTL -> policy.cache_ttl
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"environment":         "server.environment",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",
		"disable_rate_limit":  "server.rate_limit_disabled",

		// Auth
		"jwt_secret":        "auth.jwt_secret",
		"token_ttl":         "auth.token_ttl",
		"token_issuer":      "auth.issuer",
		"admin_username":    "auth.admin_username",
		"admin_password":    "auth.admin_password",
		"token_rate_burst":  "auth.token_rate_burst",
		"token_rate_window": "auth.token_rate_window",

		// Policy
		"policy_model_path":          "policy.model_path",
		"policy_policy_path":         "policy.policy_path",
		"policy_default_role":        "policy.default_role",
		"policy_cache_enabled":       "policy.cache_enabled",
		"policy_cache_ttl":           "policy.cache_ttl",
		"policy_remote_enabled":      "policy.remote.enabled",
		"policy_remote_url":          "policy.remote.url",
		"policy_remote_timeout":      "policy.remote.timeout",
		"policy_remote_retries":      "policy.remote.retry_count",
		"policy_remote_breaker_max":  "policy.remote.breaker_max_failures",
		"policy_remote_breaker_open": "policy.remote.breaker_open_timeout",

		// Response cache
		"cache_enabled":          "cache.enabled",
		"cache_capacity":         "cache.capacity",
		"cache_default_ttl":      "cache.default_ttl",
		"cache_cleanup_interval": "cache.cleanup_interval",

		// Audit
		"audit_enabled":          "audit.enabled",
		"audit_store":            "audit.store",
		"audit_store_path":       "audit.store_path",
		"audit_retention_ttl":    "audit.retention_ttl",
		"audit_buffer_size":      "audit.buffer_size",
		"audit_cleanup_interval": "audit.cleanup_interval",
		"audit_stream_enabled":   "audit.stream_enabled",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
