// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/gateward/internal/audit"
	"github.com/tomtom215/gateward/internal/auth"
	"github.com/tomtom215/gateward/internal/authz"
	"github.com/tomtom215/gateward/internal/config"
	"github.com/tomtom215/gateward/internal/middleware"
	"github.com/tomtom215/gateward/internal/respcache"
)

// Router assembly errors.
var (
	// ErrNoResolver indicates the router was built without an
	// identity resolver.
	ErrNoResolver = errors.New("identity resolver is required")

	// ErrNoTokenHandler indicates the router was built without the
	// token issuance handler.
	ErrNoTokenHandler = errors.New("token handler is required")
)

// Deps carries the collaborators the router wires together. Engine,
// Bridge, Resolver, and Tokens are required; the rest degrade
// gracefully when nil (no cache, no admin surface, no audit).
type Deps struct {
	Resolver *auth.Resolver
	Tokens   *auth.TokenHandler
	Engine   *authz.Engine
	Bridge   *authz.Bridge
	Recorder authz.DecisionRecorder

	Cache      *respcache.Middleware
	Policy     PolicyAdmin
	AuditStore audit.Store
	AuditHub   *audit.Hub

	Health *HealthHandler
}

// NewRouter builds the full HTTP surface. Filter construction happens
// here, once per protected route, so a misconfigured route fails at
// assembly time.
func NewRouter(cfg *config.Config, deps Deps) (chi.Router, error) {
	if deps.Resolver == nil {
		return nil, ErrNoResolver
	}
	if deps.Tokens == nil {
		return nil, ErrNoTokenHandler
	}
	if deps.Health == nil {
		deps.Health = NewHealthHandler("")
	}

	filters, err := buildFilters(deps)
	if err != nil {
		return nil, err
	}

	chiFactories := middleware.NewChi(middleware.ChiConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  rateLimitRequests(cfg),
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})

	reports := NewReportsHandler()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiFactories.CORS())
	r.Use(chiFactories.RateLimit())
	r.Use(middleware.Metrics)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/doc.json", OpenAPIDoc)
	r.Get("/swagger/*", SwaggerUI())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", deps.Health.Health)
		r.Get("/health/live", deps.Health.Live)
		r.Get("/health/ready", deps.Health.Ready)

		r.Post("/auth/token", deps.Tokens.IssueToken)

		// Everything below resolves the caller's identity first. The
		// resolver is lenient: a missing or invalid credential yields
		// the anonymous subject, and the filter on each route is the
		// single place that turns that into a 401.
		r.Group(func(r chi.Router) {
			r.Use(deps.Resolver.Middleware)

			r.Route("/reports", func(r chi.Router) {
				r.With(cacheThen(deps.Cache, filters.reportsExport)).
					Get("/export", reports.Export)
				r.With(cacheThen(deps.Cache, filters.reportsSummary)).
					Get("/summary", reports.Summary)
			})

			if deps.Policy != nil {
				policyHandler := NewPolicyHandler(deps.Policy)
				r.Route("/authz/policies", func(r chi.Router) {
					r.Use(filters.policyAdmin.Middleware)
					r.Get("/", policyHandler.ListGrants)
					r.Post("/", policyHandler.AddGrant)
					r.Delete("/", policyHandler.RemoveGrant)
				})
				r.Route("/authz/roles/{subject}", func(r chi.Router) {
					r.Use(filters.roleAdmin.Middleware)
					r.Get("/", policyHandler.GetRoles)
					r.Put("/", policyHandler.PutRoles)
				})
			}

			if deps.AuditStore != nil {
				auditHandler := NewAuditHandler(deps.AuditStore, deps.AuditHub)
				r.Route("/authz/audit", func(r chi.Router) {
					r.Use(filters.auditAdmin.Middleware)
					r.Get("/", auditHandler.Query)
					r.Get("/stream", auditHandler.Stream)
				})
			}
		})
	})

	return r, nil
}

// routeFilters holds the per-route authorization filters. Handler and
// action names are pinned explicitly rather than derived from handler
// types, so granted permissions survive refactors.
type routeFilters struct {
	reportsExport  *authz.Filter
	reportsSummary *authz.Filter
	policyAdmin    *authz.Filter
	roleAdmin      *authz.Filter
	auditAdmin     *authz.Filter
}

func buildFilters(deps Deps) (*routeFilters, error) {
	build := func(handler, action string) (*authz.Filter, error) {
		f, err := authz.NewFilter(
			authz.FilterConfig{Handler: handler, Action: action},
			deps.Engine, deps.Bridge, deps.Recorder,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s|%s filter: %w", handler, action, err)
		}
		return f, nil
	}

	var (
		filters routeFilters
		err     error
	)
	if filters.reportsExport, err = build("Reports", "Export"); err != nil {
		return nil, err
	}
	if filters.reportsSummary, err = build("Reports", "Summary"); err != nil {
		return nil, err
	}
	if filters.policyAdmin, err = build("Authz", "Policies"); err != nil {
		return nil, err
	}
	if filters.roleAdmin, err = build("Authz", "Roles"); err != nil {
		return nil, err
	}
	if filters.auditAdmin, err = build("Authz", "Audit"); err != nil {
		return nil, err
	}
	return &filters, nil
}

// cacheThen stacks the response cache outside the authorization
// filter: the cache's callback collector must be on the context before
// the filter's bridge runs, and stored entries must be revalidated
// before they are served. Without a cache the filter stands alone.
func cacheThen(cache *respcache.Middleware, filter *authz.Filter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := filter.Middleware(next)
		if cache == nil {
			return protected
		}
		return cache.Handler(protected)
	}
}

func rateLimitRequests(cfg *config.Config) int {
	if cfg.Server.RateLimitDisabled {
		return 0
	}
	return cfg.Server.RateLimitReqs
}
