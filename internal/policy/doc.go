// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

// Package policy supplies the permission backends the authorization
// engine consults. All of them implement authz.AccessValidator and
// answer one question: may this subject perform this operation.
//
// Three backends are provided:
//
//   - Enforcer: Casbin RBAC with role inheritance and keyMatch wildcard
//     grants. The model and a default policy are embedded; both can be
//     overridden by files. Policies are mutable at runtime through the
//     admin endpoints, and a TTL decision cache sits in front of the
//     enforcer with full invalidation on any mutation.
//   - StaticValidator: an immutable in-memory grant table for tests and
//     file-only deployments.
//   - RemoteValidator: an external policy decision point queried over
//     HTTP, wrapped in a circuit breaker. Transport failures and an
//     open breaker surface as validator faults, never as denials.
//
// Operations are opaque strings to every backend. Whether a grant names
// a composed "handler|action|method" descriptor or an explicit override
// is a concern of the authorization layer, not of policy storage.
package policy
