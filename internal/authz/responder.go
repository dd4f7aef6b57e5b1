// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gateward/internal/logging"
)

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Responder writes terminal responses for deny decisions and validator
// faults. Once it has written, the wrapped operation and any later
// middleware never run.
type Responder struct{}

// WriteDenial writes the terminal response for a deny decision. Denials
// are routine outcomes, not failures: they log at debug level only.
func (Responder) WriteDenial(w http.ResponseWriter, r *http.Request, decision Decision, operation string) {
	logging.Ctx(r.Context()).Debug().
		Str("operation", operation).
		Int("status", decision.Status).
		Msg("Request denied")

	code := "forbidden"
	message := "permission denied"
	if decision.Status == http.StatusUnauthorized {
		code = "unauthorized"
		message = "authentication required"
		w.Header().Set("WWW-Authenticate", `Bearer realm="gateward"`)
	}

	writeEnvelope(w, r, decision.Status, code, message)
}

// WriteFault writes the terminal response for a collaborator fault.
// Faults are server-side errors, surfaced as 500 and logged loudly so
// they are never mistaken for denials.
func (Responder) WriteFault(w http.ResponseWriter, r *http.Request, operation string, err error) {
	logging.Ctx(r.Context()).Error().
		Err(err).
		Str("operation", operation).
		Msg("Authorization check failed")

	writeEnvelope(w, r, http.StatusInternalServerError, "internal_error", "authorization check failed")
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	envelope := errorEnvelope{
		Error: errorBody{
			Code:      code,
			Message:   message,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logging.Error().Err(err).Msg("Failed to encode denial response")
	}
}
