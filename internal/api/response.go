// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gateward/internal/logging"
	"github.com/tomtom215/gateward/internal/validation"
)

// APIResponse is the envelope every endpoint responds with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count,omitempty"`
}

// Error codes used across the API.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// RespondJSON writes a success envelope with the given status and
// payload.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, r, status, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			RequestID: logging.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}

// RespondList writes a success envelope for a collection, stamping the
// item count on the metadata.
func RespondList(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	writeEnvelope(w, r, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			RequestID: logging.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
			Count:     count,
		},
	})
}

// RespondError writes an error envelope.
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, r, status, APIResponse{
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// RespondValidationError writes a 400 envelope carrying the per-field
// validation failures.
func RespondValidationError(w http.ResponseWriter, r *http.Request, verr *validation.StructError) {
	writeEnvelope(w, r, http.StatusBadRequest, APIResponse{
		Error: &APIError{
			Code:      ErrCodeValidationFailed,
			Message:   "request validation failed",
			Details:   verr.Fields(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// RespondInternalError logs the error and writes an opaque 500
// envelope; internals never leak to clients.
func RespondInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	RespondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, envelope APIResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}

// DecodeJSON decodes and validates a request payload into dst. It
// writes the error response itself and reports whether decoding
// succeeded, so handlers read as a single guard clause.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		RespondValidationError(w, r, verr)
		return false
	}
	return true
}
