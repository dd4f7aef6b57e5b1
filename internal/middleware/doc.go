// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

/*
Package middleware provides the infrastructure middleware the router
stacks around every request: request id stamping, Prometheus HTTP
instrumentation, and Chi-ecosystem factories for CORS and rate
limiting.

The authorization, identity, and caching middlewares live with their
own packages (internal/authz, internal/auth, internal/respcache); this
package carries only concerns that apply uniformly to all routes.

The router assembles the stack outermost first:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiFactories.CORS())
	r.Use(chiFactories.RateLimit())
	r.Use(middleware.Metrics)

All components are safe for concurrent use; per-request state lives in
the request context or in stack-local wrappers.
*/
package middleware
