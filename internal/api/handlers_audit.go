// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/gateward/internal/audit"
	"github.com/tomtom215/gateward/internal/logging"
)

// maxAuditQueryLimit bounds how many events one query may return.
const maxAuditQueryLimit = 1000

// AuditHandler exposes the persisted decision trail and the live
// stream. Both routes sit behind the authorization filter.
type AuditHandler struct {
	store    audit.Store
	hub      *audit.Hub
	upgrader websocket.Upgrader
}

// NewAuditHandler creates the audit handler. hub may be nil when the
// live stream is disabled.
func NewAuditHandler(store audit.Store, hub *audit.Hub) *AuditHandler {
	return &AuditHandler{
		store: store,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement happens in the CORS middleware;
			// the stream itself is same-origin admin tooling.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Query returns persisted decision events, newest first. Filters:
// ?subject=, ?since= (RFC 3339), ?limit=.
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{Subject: r.URL.Query().Get("subject")}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxAuditQueryLimit {
			RespondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = limit
	}

	events, err := h.store.Query(r.Context(), filter)
	if err != nil {
		RespondInternalError(w, r, err)
		return
	}
	RespondList(w, r, events, len(events))
}

// Stream upgrades the connection and subscribes it to the live
// decision feed until the client disconnects.
func (h *AuditHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		RespondError(w, r, http.StatusNotFound, ErrCodeNotFound, "audit stream is disabled")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Audit stream upgrade failed")
		return
	}

	client := audit.NewClient(h.hub, conn)
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}
