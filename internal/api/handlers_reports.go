// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	"net/http"
	"sync/atomic"
)

// ReportsHandler serves the demonstration report operations the
// authorization filter protects. Payloads are deterministic so cached
// and fresh responses are byte-identical, which keeps the cache
// revalidation behavior observable.
type ReportsHandler struct {
	// exports counts origin renders of the export report. The counter
	// makes cache hits visible to tests: a served cache hit leaves it
	// unchanged.
	exports atomic.Int64
}

// NewReportsHandler creates the reports handler.
func NewReportsHandler() *ReportsHandler {
	return &ReportsHandler{}
}

type reportRow struct {
	Period  string  `json:"period"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type exportReport struct {
	Name string      `json:"name"`
	Rows []reportRow `json:"rows"`
}

type summaryReport struct {
	Name         string  `json:"name"`
	TotalRevenue float64 `json:"total_revenue"`
	TotalOrders  int     `json:"total_orders"`
	Periods      int     `json:"periods"`
}

var exportRows = []reportRow{
	{Period: "2026-Q1", Revenue: 125000.50, Orders: 1810},
	{Period: "2026-Q2", Revenue: 138250.00, Orders: 1954},
	{Period: "2026-Q3", Revenue: 141980.25, Orders: 2011},
}

// Export renders the full export report. This is the canonical gated
// and cached operation: its descriptor is "Reports|Export|GET".
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	h.exports.Add(1)
	RespondJSON(w, r, http.StatusOK, exportReport{
		Name: "quarterly-export",
		Rows: exportRows,
	})
}

// Summary renders the aggregate view of the same data.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var revenue float64
	var orders int
	for _, row := range exportRows {
		revenue += row.Revenue
		orders += row.Orders
	}

	RespondJSON(w, r, http.StatusOK, summaryReport{
		Name:         "quarterly-summary",
		TotalRevenue: revenue,
		TotalOrders:  orders,
		Periods:      len(exportRows),
	})
}

// ExportCount returns how many times Export ran at the origin.
func (h *ReportsHandler) ExportCount() int64 {
	return h.exports.Load()
}
