// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package respcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheRequests counts cache-eligible requests.
	// Labels: outcome (hit, miss, bypass, skip).
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_requests_total",
			Help: "Total number of requests seen by the response cache",
		},
		[]string{"outcome"},
	)

	// cacheEntries tracks the current number of stored responses.
	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "respcache_entries",
			Help: "Current number of cached responses",
		},
	)

	// cacheEvictions counts capacity evictions.
	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_evictions_total",
			Help: "Total number of cached responses evicted by capacity pressure",
		},
	)
)
