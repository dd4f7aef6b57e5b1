// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// credentialResolutions counts resolver outcomes.
	// Labels:
	//   - method: "bearer", "basic", "cookie", "none"
	//   - outcome: "authenticated", "anonymous", "invalid"
	credentialResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_credential_resolutions_total",
			Help: "Total number of credential resolutions by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// tokensIssued counts token issuance attempts.
	tokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of access token issuance attempts",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// tokenRequestsLimited counts token requests rejected by the per-IP
	// rate limiter.
	tokenRequestsLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_token_requests_limited_total",
			Help: "Total number of token requests rejected by the rate limiter",
		},
	)
)
