// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

/*
Package api assembles the HTTP surface of the gateway: the demo report
operations the authorization filter protects, the policy and audit
admin endpoints, health probes, Prometheus metrics, and the Swagger UI.

The interesting part is the per-route middleware order on protected
routes:

	response cache -> authorization filter -> handler

The cache middleware installs the revalidation callback collector on
the request context before the filter runs; the filter's bridge
registers the operation's callback with it on every allow. A stored
response is then re-authorized for the current caller each time the
cache considers serving it.

Handlers respond with the envelopes in response.go; payloads are
validated with internal/validation before any state changes.
*/
package api
