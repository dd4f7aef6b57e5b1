// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/gateward/internal/authz"
	"github.com/tomtom215/gateward/internal/logging"
)

// ErrNoPublisher indicates a recorder was built without a publisher.
var ErrNoPublisher = errors.New("message publisher is required")

// metadata keys stamped on every audit message.
const (
	metadataPhase   = "phase"
	metadataOutcome = "outcome"
)

// Recorder implements authz.DecisionRecorder by forwarding decision
// events to the pipeline topic. RecordDecision runs inline on request
// and revalidation paths, so it never blocks: events go into a bounded
// buffer, and when the buffer is full the event is dropped and counted
// instead of stalling the caller.
type Recorder struct {
	publisher message.Publisher
	buffer    chan Event
}

// NewRecorder creates a decision recorder publishing to the given
// publisher. bufferSize bounds the number of events awaiting publish.
func NewRecorder(publisher message.Publisher, bufferSize int) (*Recorder, error) {
	if publisher == nil {
		return nil, ErrNoPublisher
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Recorder{
		publisher: publisher,
		buffer:    make(chan Event, bufferSize),
	}, nil
}

// RecordDecision implements authz.DecisionRecorder.
func (r *Recorder) RecordDecision(ctx context.Context, rec authz.DecisionRecord) {
	select {
	case r.buffer <- NewEvent(ctx, rec):
	default:
		droppedTotal.Inc()
	}
}

// Serve implements suture.Service: it drains the buffer and publishes
// each event until ctx is canceled. Publish failures are logged and
// counted; the event is lost, never retried, because the audit trail
// must not apply backpressure to the decision path.
func (r *Recorder) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-r.buffer:
			if err := r.publish(e); err != nil {
				droppedTotal.Inc()
				logging.Error().Err(err).Str("event_id", e.ID).Msg("Failed to publish audit event")
				continue
			}
			publishedTotal.Inc()
		}
	}
}

func (r *Recorder) publish(e Event) error {
	payload, err := e.Marshal()
	if err != nil {
		return err
	}

	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set(metadataPhase, e.Phase)
	msg.Metadata.Set(metadataOutcome, e.Outcome())
	return r.publisher.Publish(Topic, msg)
}
