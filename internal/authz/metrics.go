// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// decisionsTotal counts request-time decisions. Operation label
	// cardinality is bounded by the number of registered routes.
	// Labels:
	//   - operation: the operation descriptor
	//   - outcome: "authorized", "unauthorized", "forbidden", "fault"
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of request-time authorization decisions",
		},
		[]string{"operation", "outcome"},
	)

	// revalidationsTotal counts cache revalidation outcomes.
	revalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_revalidations_total",
			Help: "Total number of cache revalidation checks",
		},
		[]string{"outcome"}, // "valid", "bypass", "fault"
	)

	// decisionDuration measures the engine's decision latency, which
	// bounds the overhead added to every protected request.
	decisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Duration of authorization decisions in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)
)
