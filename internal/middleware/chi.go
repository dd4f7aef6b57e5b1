// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// ChiConfig configures the Chi-ecosystem middleware factories.
type ChiConfig struct {
	// CORSAllowedOrigins lists origins allowed to call the API.
	// Empty means cross-origin requests are refused, which is the
	// safe default for an authorization gateway.
	CORSAllowedOrigins []string

	// CORSMaxAge is how long browsers may cache preflight results,
	// in seconds.
	CORSMaxAge int

	// RateLimitRequests allows this many requests per client IP per
	// window. Zero disables rate limiting.
	RateLimitRequests int

	// RateLimitWindow is the rate limit window.
	RateLimitWindow time.Duration
}

// DefaultChiConfig returns secure defaults: no CORS origins and a
// moderate per-IP rate limit.
func DefaultChiConfig() ChiConfig {
	return ChiConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

// Chi builds CORS and rate limiting middleware from the production
// hardened go-chi implementations.
type Chi struct {
	config ChiConfig
	cors   func(http.Handler) http.Handler
}

// NewChi creates the middleware factory for the given configuration.
func NewChi(config ChiConfig) *Chi {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Age"},
		AllowCredentials: false,
		MaxAge:           config.CORSMaxAge,
	})

	return &Chi{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns the CORS middleware.
func (c *Chi) CORS() func(http.Handler) http.Handler {
	return c.cors
}

// RateLimit returns per-IP rate limiting middleware, or a pass-through
// when rate limiting is disabled.
func (c *Chi) RateLimit() func(http.Handler) http.Handler {
	if c.config.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		c.config.RateLimitRequests,
		c.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}
