// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

/*
Package auth resolves request credentials into subjects.

The package is deliberately lenient: the resolver middleware never
rejects a request. Missing, malformed, or invalid credentials resolve to
the anonymous subject and the request continues down the chain. The
authorization layer is the single place that decides whether an
anonymous subject may proceed, which keeps the 401 decision out of the
transport plumbing.

Key Components:

  - Subject: value type carrying identity for the lifetime of a request
  - TokenManager: HMAC-SHA256 access token issuance and validation
  - CredentialStore: bcrypt-backed username/password verification
  - Resolver: middleware that resolves Bearer, Basic, or cookie
    credentials into a Subject on the request context
  - TokenHandler: POST endpoint that exchanges credentials for a token
  - RateLimiter: per-IP token bucket guarding the token endpoint

Credential Resolution Order:

 1. Authorization: Bearer <token> (JWT, HS256)
 2. Authorization: Basic <base64> (bcrypt verification)
 3. "token" cookie (JWT, for browser clients)
 4. Nothing valid: the anonymous subject

Usage:

	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
	    return err
	}
	creds := auth.NewCredentialStore()
	if err := creds.Add(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, "admin"); err != nil {
	    return err
	}

	resolver := auth.NewResolver(tokens, creds)
	r.Use(resolver.Middleware)

Thread Safety:

All components are safe for concurrent use. TokenManager is read-only
after construction, CredentialStore and RateLimiter guard their maps
with mutexes, and Subject values are copied into each request context.
*/
package auth
