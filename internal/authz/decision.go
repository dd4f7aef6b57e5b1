// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import "net/http"

// Decision is the outcome of one authorization evaluation. A denial
// carries exactly one status code; the canonical Authorized value
// carries none. Decisions are computed fresh per evaluation and never
// stored, so two evaluations can disagree only when their inputs do.
type Decision struct {
	Allowed bool
	Status  int
}

// Authorized is the single allow decision.
var Authorized = Decision{Allowed: true}

// DeniedUnauthenticated denies a caller that presented no valid
// credentials.
var DeniedUnauthenticated = Decision{Status: http.StatusUnauthorized}

// DeniedForbidden denies an authenticated caller that lacks permission
// for the operation.
var DeniedForbidden = Decision{Status: http.StatusForbidden}

// Outcome returns the decision as a metrics and audit label.
func (d Decision) Outcome() string {
	switch {
	case d.Allowed:
		return "authorized"
	case d.Status == http.StatusUnauthorized:
		return "unauthorized"
	case d.Status == http.StatusForbidden:
		return "forbidden"
	default:
		return "denied"
	}
}
