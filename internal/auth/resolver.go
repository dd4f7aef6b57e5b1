// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package auth

import (
	"net/http"
	"strings"

	"github.com/tomtom215/gateward/internal/logging"
)

// Resolver turns request credentials into a Subject on the request
// context. It never rejects a request: anything missing, malformed, or
// invalid resolves to the anonymous subject and the request continues.
// The authorization layer is the single place that converts lack of
// identity into a 401.
type Resolver struct {
	tokens *TokenManager
	creds  *CredentialStore
}

// NewResolver creates a resolver backed by the given token manager and
// credential store.
func NewResolver(tokens *TokenManager, creds *CredentialStore) *Resolver {
	return &Resolver{
		tokens: tokens,
		creds:  creds,
	}
}

// Middleware resolves credentials and stores the resulting subject on
// the request context.
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := rv.Resolve(r)
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

// Resolve inspects the request's credentials and returns the subject
// they identify, or the anonymous subject.
func (rv *Resolver) Resolve(r *http.Request) Subject {
	authHeader := r.Header.Get("Authorization")

	switch {
	case strings.HasPrefix(authHeader, "Bearer "):
		return rv.resolveBearer(r, strings.TrimPrefix(authHeader, "Bearer "))
	case strings.HasPrefix(authHeader, "Basic "):
		return rv.resolveBasic(r, authHeader)
	case authHeader != "":
		logging.Ctx(r.Context()).Debug().Msg("Unsupported authorization scheme, continuing as anonymous")
		credentialResolutions.WithLabelValues("none", "invalid").Inc()
		return Anonymous()
	}

	// Browser clients carry the token in a cookie instead.
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return rv.resolveCookie(r, cookie.Value)
	}

	credentialResolutions.WithLabelValues("none", "anonymous").Inc()
	return Anonymous()
}

func (rv *Resolver) resolveBearer(r *http.Request, token string) Subject {
	claims, err := rv.tokens.Validate(token)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Bearer token rejected, continuing as anonymous")
		credentialResolutions.WithLabelValues("bearer", "invalid").Inc()
		return Anonymous()
	}
	credentialResolutions.WithLabelValues("bearer", "authenticated").Inc()
	return SubjectFromClaims(claims)
}

func (rv *Resolver) resolveBasic(r *http.Request, authHeader string) Subject {
	username, password, err := DecodeBasic(authHeader)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Basic credentials rejected, continuing as anonymous")
		credentialResolutions.WithLabelValues("basic", "invalid").Inc()
		return Anonymous()
	}

	subject, err := rv.creds.Verify(username, password)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Str("username", username).Msg("Basic credentials rejected, continuing as anonymous")
		credentialResolutions.WithLabelValues("basic", "invalid").Inc()
		return Anonymous()
	}

	credentialResolutions.WithLabelValues("basic", "authenticated").Inc()
	return subject
}

func (rv *Resolver) resolveCookie(r *http.Request, token string) Subject {
	claims, err := rv.tokens.Validate(token)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Cookie token rejected, continuing as anonymous")
		credentialResolutions.WithLabelValues("cookie", "invalid").Inc()
		return Anonymous()
	}
	credentialResolutions.WithLabelValues("cookie", "authenticated").Inc()
	return SubjectFromClaims(claims)
}
