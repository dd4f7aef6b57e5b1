// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package main is the entry point for the Gateward server.
//
// Gateward is an authorization gateway: every protected route runs
// through a permission filter, and responses it allows are cached in a
// private response cache that re-runs the same permission check before
// serving a stored response to anyone. The permission decision and the
// cache therefore can never disagree.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (env > file > defaults)
//  2. Identity: credential store, JWT token manager, lenient resolver
//  3. Policy: embedded Casbin enforcer or remote decision point
//  4. Audit: event store, Watermill pipeline, live stream hub
//  5. Response cache: private LRU cache with per-access revalidation
//  6. HTTP server: chi router with per-route authorization filters
//  7. Supervision: suture tree running the audit and API layers
//
// # Configuration
//
// Required settings:
//   - JWT_SECRET: 32+ character secret for token signing
//   - ADMIN_USERNAME / ADMIN_PASSWORD: seed account (8+ char password)
//
// Every setting can also come from a YAML file (CONFIG_PATH or
// config.yaml); environment variables win over file values.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the server stops
// accepting connections, in-flight requests drain within the configured
// timeout, and the audit pipeline flushes before the stores close.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/gateward/internal/api"
	"github.com/tomtom215/gateward/internal/audit"
	"github.com/tomtom215/gateward/internal/auth"
	"github.com/tomtom215/gateward/internal/authz"
	"github.com/tomtom215/gateward/internal/config"
	"github.com/tomtom215/gateward/internal/logging"
	"github.com/tomtom215/gateward/internal/policy"
	"github.com/tomtom215/gateward/internal/respcache"
	"github.com/tomtom215/gateward/internal/supervisor"
	"github.com/tomtom215/gateward/internal/supervisor/services"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet; the default logger applies.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Bool("cache", cfg.Cache.Enabled).
		Bool("audit", cfg.Audit.Enabled).
		Bool("remote_policy", cfg.Policy.Remote.Enabled).
		Msg("Starting Gateward")

	// Identity: credential store seeded with the admin account, JWT
	// issuance, and the lenient resolver. Resolution never rejects a
	// request; the per-route filter is the single 401 point.
	creds := auth.NewCredentialStore()
	if cfg.Auth.AdminUsername != "" {
		if err := creds.Add(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, "admin"); err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed admin account")
		}
	}

	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}
	tokenHandler := auth.NewTokenHandler(tokens, creds, cfg.Auth.TokenRateBurst, cfg.Auth.TokenRateWindow)
	defer tokenHandler.Close()
	resolver := auth.NewResolver(tokens, creds)

	// Policy: the embedded enforcer carries the admin surface; the
	// remote decision point does not, its policies live elsewhere.
	var (
		validator   authz.AccessValidator
		policyAdmin api.PolicyAdmin
	)
	if cfg.Policy.Remote.Enabled {
		remote, err := policy.NewRemoteValidator(cfg.Policy.Remote)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize remote policy validator")
		}
		validator = remote
		logging.Info().Str("url", cfg.Policy.Remote.URL).Msg("Remote policy decision point enabled")
	} else {
		enforcer, err := policy.NewEnforcer(cfg.Policy)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize policy enforcer")
		}
		defer enforcer.Close()
		validator = enforcer
		policyAdmin = enforcer
	}

	engine, err := authz.NewEngine(auth.ContextAccessor{}, validator)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create decision engine")
	}

	// Audit: the recorder buffers events off the request path; the
	// pipeline fans them out to the log, the store, and the stream.
	var (
		recorder   authz.DecisionRecorder = authz.NopRecorder{}
		auditStore audit.Store
		auditHub   *audit.Hub
		pipeline   *audit.Pipeline
	)
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(cfg.Audit)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open audit store")
		}
		defer func() {
			if err := auditStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing audit store")
			}
		}()

		if cfg.Audit.StreamEnabled {
			auditHub = audit.NewHub()
		}

		pipeline, err = audit.NewPipeline(cfg.Audit, auditStore, auditHub)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to build audit pipeline")
		}
		recorder = pipeline.Recorder()
	}

	bridge, err := authz.NewBridge(engine, recorder)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create revalidation bridge")
	}

	// Response cache. The store runs its own expiry janitor.
	var cache *respcache.Middleware
	if cfg.Cache.Enabled {
		cacheStore := respcache.NewStore(cfg.Cache.Capacity, cfg.Cache.DefaultTTL, cfg.Cache.CleanupInterval)
		defer cacheStore.Close()
		cache, err = respcache.NewMiddleware(cacheStore)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create response cache")
		}
	}

	health := api.NewHealthHandler(version)

	router, err := api.NewRouter(cfg, api.Deps{
		Resolver:   resolver,
		Tokens:     tokenHandler,
		Engine:     engine,
		Bridge:     bridge,
		Recorder:   recorder,
		Cache:      cache,
		Policy:     policyAdmin,
		AuditStore: auditStore,
		AuditHub:   auditHub,
		Health:     health,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build router")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	// Supervision: audit layer and API layer restart independently.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.Timeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if pipeline != nil {
		tree.AddAuditService(pipeline)
		tree.AddAuditService(pipeline.Recorder())
		if auditHub != nil {
			tree.AddAuditService(auditHub)
		}
		tree.AddAuditService(services.NewJanitorService("audit-retention", cfg.Audit.CleanupInterval,
			func(ctx context.Context) error {
				removed, err := auditStore.CleanupExpired(ctx)
				if err != nil {
					return err
				}
				if removed > 0 {
					logging.Debug().Int("removed", removed).Msg("Expired audit events removed")
				}
				return nil
			}))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	if pipeline != nil {
		select {
		case <-pipeline.Running():
		case <-ctx.Done():
		}
	}
	health.SetReady(true)
	logging.Info().Msg("Gateward ready")

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	health.SetReady(false)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Gateward stopped gracefully")
}
