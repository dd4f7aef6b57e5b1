// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/gateward/internal/auth"
)

// Configuration errors raised at construction time. They are disjoint
// from authorization outcomes: a misconfigured filter fails loudly when
// the server assembles, never as a 401 or 403 at request time.
var (
	// ErrNoSubjectAccessor indicates the engine was built without a
	// subject accessor.
	ErrNoSubjectAccessor = errors.New("subject accessor is required")

	// ErrNoAccessValidator indicates the engine was built without an
	// access validator.
	ErrNoAccessValidator = errors.New("access validator is required")
)

// SubjectAccessor supplies the subject a request acts as. It is queried
// fresh on every decision and must reflect the calling request's
// identity, never a globally shared value.
type SubjectAccessor interface {
	Current(ctx context.Context) auth.Subject
}

// AccessValidator reports whether a subject holds permission for an
// operation. Implementations must be safe for concurrent use. The error
// return is a backend fault, not a denial.
type AccessValidator interface {
	HasPermission(ctx context.Context, subject auth.Subject, operation string) (bool, error)
}

// Engine is the pure decision function mapping (subject, operation) to
// an authorization decision. One engine instance serves all concurrent
// requests and the cache revalidation path; Decide reads only its
// parameters and the injected collaborators.
type Engine struct {
	subjects  SubjectAccessor
	validator AccessValidator
}

// NewEngine creates a decision engine. Both collaborators are required;
// a nil collaborator is a configuration error.
func NewEngine(subjects SubjectAccessor, validator AccessValidator) (*Engine, error) {
	if subjects == nil {
		return nil, ErrNoSubjectAccessor
	}
	if validator == nil {
		return nil, ErrNoAccessValidator
	}
	return &Engine{
		subjects:  subjects,
		validator: validator,
	}, nil
}

// Decide evaluates the operation for the subject carried by ctx.
// In order, first matching rule wins:
//
//  1. Unauthenticated subject: deny with status 401. The permission
//     validator is never consulted.
//  2. Validator reports no permission: deny with status 403.
//  3. Otherwise: Authorized.
//
// A non-nil error means the validator itself failed. That is a
// server-side fault the caller must surface as a 5xx; it is never an
// authorization outcome, and the returned Decision is meaningless.
func (e *Engine) Decide(ctx context.Context, operation string) (Decision, error) {
	subject := e.subjects.Current(ctx)
	if !subject.Authenticated {
		return DeniedUnauthenticated, nil
	}

	allowed, err := e.validator.HasPermission(ctx, subject, operation)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check permission for %q: %w", operation, err)
	}
	if !allowed {
		return DeniedForbidden, nil
	}

	return Authorized, nil
}
