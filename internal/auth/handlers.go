// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package auth

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gateward/internal/logging"
	"github.com/tomtom215/gateward/internal/validation"
)

// TokenHandler exchanges credentials for signed access tokens.
// POST /api/v1/auth/token
type TokenHandler struct {
	tokens  *TokenManager
	creds   *CredentialStore
	limiter *RateLimiter
}

// NewTokenHandler creates a token handler with a per-IP rate limiter of
// the given burst and refill window. Call Close to stop the limiter's
// cleanup goroutine.
func NewTokenHandler(tokens *TokenManager, creds *CredentialStore, burst int, window time.Duration) *TokenHandler {
	limiter := NewRateLimiter(burst, window)
	go limiter.startCleanup(5 * time.Minute)

	return &TokenHandler{
		tokens:  tokens,
		creds:   creds,
		limiter: limiter,
	}
}

// Close stops the rate limiter cleanup goroutine.
func (h *TokenHandler) Close() {
	h.limiter.Stop()
}

type tokenRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// IssueToken verifies the posted credentials and returns a signed
// access token. Invalid credentials return 401; exceeding the per-IP
// limit returns 429 regardless of credential validity.
func (h *TokenHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.Allow(ip) {
		tokenRequestsLimited.Inc()
		logging.Ctx(r.Context()).Warn().Str("ip", ip).Msg("Token request rate limited")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "too many token requests",
		})
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
		})
		return
	}

	subject, err := h.creds.Verify(req.Username, req.Password)
	if err != nil {
		tokensIssued.WithLabelValues("failure").Inc()
		logging.Ctx(r.Context()).Warn().Str("username", req.Username).Str("ip", ip).Msg("Token request with invalid credentials")
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "invalid username or password",
		})
		return
	}

	token, err := h.tokens.Issue(subject.Name, subject.Roles)
	if err != nil {
		tokensIssued.WithLabelValues("failure").Inc()
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to sign access token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to issue token",
		})
		return
	}

	tokensIssued.WithLabelValues("success").Inc()
	logging.Ctx(r.Context()).Info().Str("username", subject.Name).Msg("Access token issued")
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.tokens.TTL().Seconds()),
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode auth response")
	}
}
