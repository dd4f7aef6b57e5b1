// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheLookups counts decision cache lookups.
	// Labels: result (hit, miss).
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_decision_cache_lookups_total",
			Help: "Total number of policy decision cache lookups",
		},
		[]string{"result"},
	)

	// policyMutations counts runtime policy changes.
	// Labels: kind (grant_added, grant_removed, role_assigned, role_withdrawn).
	policyMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_mutations_total",
			Help: "Total number of runtime policy mutations",
		},
		[]string{"kind"},
	)

	// remoteDecisions counts remote decision point outcomes.
	// Labels: outcome (allowed, denied, rejected, failure).
	remoteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_remote_decisions_total",
			Help: "Total number of remote policy decision point calls",
		},
		[]string{"outcome"},
	)

	// remoteBreakerState exports the decision point circuit state
	// (0 closed, 1 half-open, 2 open).
	remoteBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "policy_remote_breaker_state",
			Help: "Current circuit breaker state of the remote policy decision point",
		},
	)
)
