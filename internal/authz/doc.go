// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

/*
Package authz gates request handling behind a permission check and keeps
that check consistent with response caching.

The same logical decision runs twice: once when the request first
reaches the operation, and once whenever the response cache considers
serving a stored response. Both runs use the decision engine, so a
cached response is never served to a caller who would not have been
allowed to produce it.

Components:

  - Descriptor building: derives the operation identifier
    "handler|action|method" from request metadata, or uses an explicit
    override verbatim.
  - Engine: pure decision function mapping (subject, operation) to
    Authorized, deny 401, or deny 403. Collaborator faults surface as
    errors, never as denials.
  - Bridge: on an allow decision, marks the response as private to
    shared caches and registers a revalidation callback carrying the
    operation identifier; on revalidation it re-runs the engine with the
    then-current caller.
  - Responder: converts a deny decision into a terminal JSON response.
  - Filter: the per-route middleware that wires the above together.

Decision outcomes and configuration errors are disjoint by type: a deny
is a Decision value, a missing collaborator is a constructor error, and
a validator fault is an error from Decide. None of the three is ever
expressed as one of the others.

The engine instance is shared across all requests and the revalidation
path, so every evaluation is stateless with respect to engine fields.
There is no locking because there is nothing mutable to protect.
*/
package authz
