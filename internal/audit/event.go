// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/gateward/internal/authz"
	"github.com/tomtom215/gateward/internal/logging"
)

// Topic is the Watermill topic decision events travel on.
const Topic = "authz.decisions"

// Event is one recorded authorization decision. Status is present only
// on denials; Phase distinguishes the request-time evaluation from a
// cache revalidation for the same operation.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Subject   string    `json:"subject"`
	Operation string    `json:"operation"`
	Allowed   bool      `json:"allowed"`
	Status    int       `json:"status,omitempty"`
	Phase     string    `json:"phase"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewEvent builds the audit event for one decision record, stamping the
// event id, the wall clock, and the request id carried by ctx.
func NewEvent(ctx context.Context, rec authz.DecisionRecord) Event {
	return Event{
		ID:        uuid.New().String(),
		Time:      time.Now().UTC(),
		Subject:   rec.Subject,
		Operation: rec.Operation,
		Allowed:   rec.Allowed,
		Status:    rec.Status,
		Phase:     string(rec.Phase),
		RequestID: logging.RequestIDFromContext(ctx),
	}
}

// Outcome returns the event's decision as a log and metrics label.
func (e Event) Outcome() string {
	d := authz.Decision{Allowed: e.Allowed, Status: e.Status}
	return d.Outcome()
}

// Marshal encodes the event as its wire and storage representation.
func (e Event) Marshal() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit event %s: %w", e.ID, err)
	}
	return payload, nil
}

// UnmarshalEvent decodes an event produced by Marshal.
func UnmarshalEvent(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal audit event: %w", err)
	}
	return e, nil
}
