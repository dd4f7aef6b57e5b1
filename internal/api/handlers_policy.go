// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/gateward/internal/logging"
)

// PolicyAdmin is the mutation surface the policy handlers need.
// *policy.Enforcer satisfies it.
type PolicyAdmin interface {
	Grants() [][]string
	AddGrant(principal, operation string) (bool, error)
	RemoveGrant(principal, operation string) (bool, error)
	RolesFor(subject string) ([]string, error)
	SetRoles(subject string, roles []string) error
}

// PolicyHandler exposes runtime policy administration. Every route it
// serves sits behind the authorization filter, so reaching these
// handlers already required the corresponding Authz|* permission.
type PolicyHandler struct {
	admin PolicyAdmin
}

// NewPolicyHandler creates the policy admin handler.
func NewPolicyHandler(admin PolicyAdmin) *PolicyHandler {
	return &PolicyHandler{admin: admin}
}

type grantPayload struct {
	Principal string `json:"principal" validate:"required,min=1,max=255"`
	Operation string `json:"operation" validate:"required,min=1,max=255"`
}

type grantView struct {
	Principal string `json:"principal"`
	Operation string `json:"operation"`
}

type rolesPayload struct {
	Roles []string `json:"roles" validate:"required,dive,min=1,max=255"`
}

// ListGrants returns every permission grant in the policy.
func (h *PolicyHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	raw := h.admin.Grants()
	grants := make([]grantView, 0, len(raw))
	for _, g := range raw {
		if len(g) < 2 {
			continue
		}
		grants = append(grants, grantView{Principal: g[0], Operation: g[1]})
	}
	RespondList(w, r, grants, len(grants))
}

// AddGrant grants a principal permission for an operation.
func (h *PolicyHandler) AddGrant(w http.ResponseWriter, r *http.Request) {
	var payload grantPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	added, err := h.admin.AddGrant(payload.Principal, payload.Operation)
	if err != nil {
		RespondInternalError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("principal", payload.Principal).
		Str("operation", payload.Operation).
		Bool("added", added).
		Msg("Policy grant added")

	status := http.StatusCreated
	if !added {
		// Grant already existed; the request is satisfied, not failed.
		status = http.StatusOK
	}
	RespondJSON(w, r, status, grantView(payload))
}

// RemoveGrant withdraws a permission grant.
func (h *PolicyHandler) RemoveGrant(w http.ResponseWriter, r *http.Request) {
	var payload grantPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	removed, err := h.admin.RemoveGrant(payload.Principal, payload.Operation)
	if err != nil {
		RespondInternalError(w, r, err)
		return
	}
	if !removed {
		RespondError(w, r, http.StatusNotFound, ErrCodeNotFound, "grant not found")
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("principal", payload.Principal).
		Str("operation", payload.Operation).
		Msg("Policy grant removed")

	RespondJSON(w, r, http.StatusOK, grantView(payload))
}

type rolesView struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

// GetRoles returns the roles assigned to a subject.
func (h *PolicyHandler) GetRoles(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if subject == "" {
		RespondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "subject is required")
		return
	}

	roles, err := h.admin.RolesFor(subject)
	if err != nil {
		RespondInternalError(w, r, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	RespondJSON(w, r, http.StatusOK, rolesView{Subject: subject, Roles: roles})
}

// PutRoles replaces a subject's role assignments.
func (h *PolicyHandler) PutRoles(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if subject == "" {
		RespondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "subject is required")
		return
	}

	var payload rolesPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	if err := h.admin.SetRoles(subject, payload.Roles); err != nil {
		RespondInternalError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("subject", subject).
		Strs("roles", payload.Roles).
		Msg("Subject roles replaced")

	RespondJSON(w, r, http.StatusOK, rolesView{Subject: subject, Roles: payload.Roles})
}
