// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// publishedTotal counts events delivered to the pipeline topic.
	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_published_total",
		Help: "Total number of audit events published to the pipeline",
	})

	// droppedTotal counts events lost because the buffer was full or
	// publishing failed. A rising rate means the pipeline cannot keep
	// up with the decision rate.
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_dropped_total",
		Help: "Total number of audit events dropped before reaching the pipeline",
	})

	// storedTotal counts events persisted per store backend.
	storedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_events_stored_total",
		Help: "Total number of audit events persisted",
	}, []string{"backend"})

	// sinkFailures counts per-sink delivery failures.
	sinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_sink_failures_total",
		Help: "Total number of audit sink delivery failures",
	}, []string{"sink"})

	// streamClients tracks connected websocket stream clients.
	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audit_stream_clients",
		Help: "Number of connected audit stream clients",
	})
)
