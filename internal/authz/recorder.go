// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import "context"

// Phase distinguishes the two runs of the same logical decision.
type Phase string

const (
	// PhaseRequest is the evaluation performed before the operation
	// executes.
	PhaseRequest Phase = "request"

	// PhaseRevalidation is the evaluation performed by the cache before
	// serving a stored response.
	PhaseRevalidation Phase = "revalidation"
)

// DecisionRecord captures one authorization evaluation for the audit
// trail.
type DecisionRecord struct {
	Subject   string
	Operation string
	Allowed   bool
	Status    int
	Phase     Phase
}

// DecisionRecorder receives the outcome of every evaluation.
// Implementations must not block: they run inline on the request and
// revalidation paths.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, rec DecisionRecord)
}

// NopRecorder discards all records. It stands in when auditing is
// disabled.
type NopRecorder struct{}

// RecordDecision implements DecisionRecorder.
func (NopRecorder) RecordDecision(context.Context, DecisionRecord) {}
