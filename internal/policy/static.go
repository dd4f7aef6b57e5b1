// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package policy

import (
	"context"

	"github.com/tomtom215/gateward/internal/auth"
)

// StaticValidator authorizes against a fixed grant table. The table is
// copied at construction and never mutated afterwards, which makes the
// validator safe for concurrent use without locking. A "*" grant allows
// every operation for its principal.
type StaticValidator struct {
	grants map[string]map[string]struct{}
}

// NewStaticValidator builds a validator from principal to operation
// grants. Principals are subject ids or role names.
func NewStaticValidator(grants map[string][]string) *StaticValidator {
	copied := make(map[string]map[string]struct{}, len(grants))
	for principal, operations := range grants {
		set := make(map[string]struct{}, len(operations))
		for _, op := range operations {
			set[op] = struct{}{}
		}
		copied[principal] = set
	}
	return &StaticValidator{grants: copied}
}

// HasPermission implements authz.AccessValidator. It never returns an
// error: a static table has no backend to fail.
func (v *StaticValidator) HasPermission(_ context.Context, subject auth.Subject, operation string) (bool, error) {
	if v.allows(subject.ID, operation) {
		return true, nil
	}
	for _, role := range subject.Roles {
		if v.allows(role, operation) {
			return true, nil
		}
	}
	return false, nil
}

func (v *StaticValidator) allows(principal, operation string) bool {
	operations, ok := v.grants[principal]
	if !ok {
		return false
	}
	if _, ok := operations[operation]; ok {
		return true
	}
	_, ok = operations["*"]
	return ok
}
