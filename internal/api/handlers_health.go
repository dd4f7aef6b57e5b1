// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	"net/http"
	"sync/atomic"
)

// HealthHandler serves liveness and readiness probes. Liveness reports
// that the process responds at all; readiness flips on once the server
// assembly finished and the supervisor started the services.
type HealthHandler struct {
	version string
	ready   atomic.Bool
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// SetReady marks the gateway ready (or not) to serve traffic.
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

type healthView struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Health reports overall health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, r, http.StatusOK, healthView{Status: "ok", Version: h.version})
}

// Live is the liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, r, http.StatusOK, healthView{Status: "alive"})
}

// Ready is the readiness probe: 503 until SetReady(true).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		RespondError(w, r, http.StatusServiceUnavailable, "NOT_READY", "gateway is starting")
		return
	}
	RespondJSON(w, r, http.StatusOK, healthView{Status: "ready"})
}
