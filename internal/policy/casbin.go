// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/gateward/internal/auth"
	"github.com/tomtom215/gateward/internal/config"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// ErrNoAdapter is returned when SavePolicy or LoadPolicy is called but
// the enforcer runs on the embedded policy without a file adapter.
var ErrNoAdapter = errors.New("no policy adapter configured; using embedded policy")

// Enforcer is the Casbin-backed permission validator. A subject holds
// permission for an operation when the subject itself, any of its
// roles, or (for role-less subjects) the configured default role
// carries a matching grant. It implements authz.AccessValidator and is
// safe for concurrent use.
type Enforcer struct {
	cfg      config.PolicyConfig
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
}

// NewEnforcer creates the permission validator. Model and policy come
// from the configured file paths when those exist, otherwise from the
// embedded defaults.
func NewEnforcer(cfg config.PolicyConfig) (*Enforcer, error) {
	var m model.Model
	var err error

	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		adapter := fileadapter.NewAdapter(cfg.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{
		cfg:      cfg,
		enforcer: enforcer,
	}
	if cfg.CacheEnabled {
		e.cache = newDecisionCache(cfg.CacheTTL)
	}
	return e, nil
}

// loadEmbeddedPolicy parses the embedded policy CSV into the enforcer.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch parts[0] {
		case "p":
			if _, err := enforcer.AddPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case "g":
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		}
	}
	return nil
}

// HasPermission implements authz.AccessValidator. The subject id is
// checked first, then each carried role, then the default role for
// subjects without roles.
func (e *Enforcer) HasPermission(_ context.Context, subject auth.Subject, operation string) (bool, error) {
	allowed, err := e.enforceOne(subject.ID, operation)
	if err != nil || allowed {
		return allowed, err
	}

	for _, role := range subject.Roles {
		allowed, err = e.enforceOne(role, operation)
		if err != nil || allowed {
			return allowed, err
		}
	}

	if e.cfg.DefaultRole != "" && len(subject.Roles) == 0 {
		return e.enforceOne(e.cfg.DefaultRole, operation)
	}

	return false, nil
}

// enforceOne checks a single principal against the policy, consulting
// the decision cache first.
func (e *Enforcer) enforceOne(principal, operation string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(principal, operation); ok {
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(principal, operation)
	if err != nil {
		return false, fmt.Errorf("enforcement failed for %q: %w", principal, err)
	}

	if e.cache != nil {
		e.cache.set(principal, operation, allowed)
	}
	return allowed, nil
}

// Grants returns every operation grant as [principal, operation] pairs.
func (e *Enforcer) Grants() [][]string {
	//nolint:errcheck // GetPolicy only fails on a nil enforcer
	grants, _ := e.enforcer.GetPolicy()
	return grants
}

// AddGrant gives the principal permission for the operation. It reports
// whether the grant was new.
func (e *Enforcer) AddGrant(principal, operation string) (bool, error) {
	added, err := e.enforcer.AddPolicy(principal, operation)
	if err != nil {
		return false, fmt.Errorf("failed to add grant: %w", err)
	}
	if added {
		policyMutations.WithLabelValues("grant_added").Inc()
		if e.cache != nil {
			e.cache.clear()
		}
	}
	return added, nil
}

// RemoveGrant revokes the principal's permission for the operation. It
// reports whether a grant was actually removed.
func (e *Enforcer) RemoveGrant(principal, operation string) (bool, error) {
	removed, err := e.enforcer.RemovePolicy(principal, operation)
	if err != nil {
		return false, fmt.Errorf("failed to remove grant: %w", err)
	}
	if removed {
		policyMutations.WithLabelValues("grant_removed").Inc()
		if e.cache != nil {
			e.cache.clear()
		}
	}
	return removed, nil
}

// RolesFor returns the roles assigned to the subject in the policy.
// Roles carried by credentials are the caller's business, not stored
// here.
func (e *Enforcer) RolesFor(subject string) ([]string, error) {
	roles, err := e.enforcer.GetRolesForUser(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles for %q: %w", subject, err)
	}
	return roles, nil
}

// AssignRole adds the subject to a role. It reports whether the
// assignment was new.
func (e *Enforcer) AssignRole(subject, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(subject, role)
	if err != nil {
		return false, fmt.Errorf("failed to assign role: %w", err)
	}
	if added {
		policyMutations.WithLabelValues("role_assigned").Inc()
		if e.cache != nil {
			e.cache.invalidatePrincipal(subject)
		}
	}
	return added, nil
}

// WithdrawRole removes the subject from a role. It reports whether an
// assignment was actually removed.
func (e *Enforcer) WithdrawRole(subject, role string) (bool, error) {
	removed, err := e.enforcer.RemoveGroupingPolicy(subject, role)
	if err != nil {
		return false, fmt.Errorf("failed to withdraw role: %w", err)
	}
	if removed {
		policyMutations.WithLabelValues("role_withdrawn").Inc()
		if e.cache != nil {
			e.cache.invalidatePrincipal(subject)
		}
	}
	return removed, nil
}

// SetRoles replaces the subject's role assignments with exactly the
// given set.
func (e *Enforcer) SetRoles(subject string, roles []string) error {
	current, err := e.RolesFor(subject)
	if err != nil {
		return err
	}

	desired := make(map[string]bool, len(roles))
	for _, role := range roles {
		desired[role] = true
	}

	for _, role := range current {
		if !desired[role] {
			if _, err := e.WithdrawRole(subject, role); err != nil {
				return err
			}
		}
	}
	for _, role := range roles {
		if _, err := e.AssignRole(subject, role); err != nil {
			return err
		}
	}
	return nil
}

// SavePolicy persists the policy through the file adapter. Returns
// ErrNoAdapter when running on the embedded policy.
func (e *Enforcer) SavePolicy() error {
	if e.cfg.PolicyPath == "" {
		return ErrNoAdapter
	}
	return e.enforcer.SavePolicy()
}

// LoadPolicy reloads the policy from the file adapter and drops all
// cached decisions. Returns ErrNoAdapter when running on the embedded
// policy.
func (e *Enforcer) LoadPolicy() error {
	if e.cfg.PolicyPath == "" {
		return ErrNoAdapter
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	if e.cache != nil {
		e.cache.clear()
	}
	return nil
}

// Close releases the enforcer's background resources.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
