// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package auth

import (
	"context"
	"errors"
)

// Standard credential errors
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Subject is the identity a request acts as. It is a value type: a
// request without valid credentials carries the anonymous subject, never
// a nil pointer, so downstream code can read fields without guards.
type Subject struct {
	// ID uniquely identifies the subject. For token credentials this is
	// the token's sub claim, for Basic credentials the username.
	ID string `json:"id"`

	// Name is the human-readable username.
	Name string `json:"name"`

	// Roles contains the subject's assigned roles, used by the policy
	// layer for permission checks.
	Roles []string `json:"roles,omitempty"`

	// Authenticated reports whether the subject presented valid
	// credentials. The anonymous subject has Authenticated false.
	Authenticated bool `json:"authenticated"`
}

// AnonymousID is the subject ID used for requests without credentials.
// Policies may grant permissions to it for public operations.
const AnonymousID = "anonymous"

// Anonymous returns the subject attached to requests that carry no
// valid credentials.
func Anonymous() Subject {
	return Subject{ID: AnonymousID, Name: AnonymousID}
}

// HasRole checks if the subject has a specific role.
func (s Subject) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type contextKey string

const subjectContextKey contextKey = "subject"

// WithSubject returns a context carrying the given subject.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// SubjectFrom extracts the subject from ctx. The second return value is
// false when no subject was stored, which means the resolver middleware
// did not run for this request.
func SubjectFrom(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(subjectContextKey).(Subject)
	return s, ok
}

// ContextAccessor reads the current subject from a request context. It
// is the production accessor handed to the authorization layer; tests
// substitute fixed accessors instead.
type ContextAccessor struct{}

// Current returns the subject stored on ctx, or the anonymous subject
// when the resolver did not run.
func (ContextAccessor) Current(ctx context.Context) Subject {
	if s, ok := SubjectFrom(ctx); ok {
		return s
	}
	return Anonymous()
}
