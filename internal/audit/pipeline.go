// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/gateward/internal/config"
	"github.com/tomtom215/gateward/internal/logging"
)

// Pipeline wires the decision recorder to its consumers: a structured
// log sink, an optional persistent store sink, and an optional live
// stream sink. Events flow over an in-process gochannel topic through a
// Watermill router whose middleware recovers sink panics and retries
// transient failures.
type Pipeline struct {
	pubsub   *gochannel.GoChannel
	router   *message.Router
	recorder *Recorder
}

// NewPipeline builds the audit pipeline. store and hub may be nil to
// disable their sinks; the log sink always runs.
func NewPipeline(cfg config.AuditConfig, store Store, hub *Hub) (*Pipeline, error) {
	logger := newWatermillLogger()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 10 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	router.AddNoPublisherHandler("audit-log", Topic, pubsub, logSink)
	if store != nil {
		router.AddNoPublisherHandler("audit-store", Topic, pubsub, storeSink(store))
	}
	if hub != nil {
		router.AddNoPublisherHandler("audit-stream", Topic, pubsub, streamSink(hub))
	}

	recorder, err := NewRecorder(pubsub, cfg.BufferSize)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		pubsub:   pubsub,
		router:   router,
		recorder: recorder,
	}, nil
}

// Recorder returns the authz.DecisionRecorder fed by this pipeline.
func (p *Pipeline) Recorder() *Recorder {
	return p.recorder
}

// Serve implements suture.Service: it runs the consumer router until
// ctx is canceled. The recorder is a separate service; supervise both.
func (p *Pipeline) Serve(ctx context.Context) error {
	if err := p.router.Run(ctx); err != nil {
		return fmt.Errorf("audit router failed: %w", err)
	}
	return nil
}

// Running returns a channel closed once the router consumes messages.
// Tests use it to avoid racing the router startup.
func (p *Pipeline) Running() <-chan struct{} {
	return p.router.Running()
}

// Close shuts the pub/sub down, releasing subscriber goroutines.
func (p *Pipeline) Close() error {
	return p.pubsub.Close()
}

// logSink writes every decision to the structured log. Denials are
// routine outcomes, so everything logs at debug; operators watch the
// store and metrics, not the log stream.
func logSink(msg *message.Message) error {
	e, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		// Undecodable events cannot succeed on retry.
		sinkFailures.WithLabelValues("log").Inc()
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Failed to decode audit event")
		return nil
	}

	logging.Debug().
		Str("subject", e.Subject).
		Str("operation", e.Operation).
		Str("outcome", e.Outcome()).
		Str("phase", e.Phase).
		Str("request_id", e.RequestID).
		Msg("Authorization decision")
	return nil
}

// storeSink persists events. Append failures return the error so the
// router's retry middleware gets a chance at transient faults.
func storeSink(store Store) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		e, err := UnmarshalEvent(msg.Payload)
		if err != nil {
			sinkFailures.WithLabelValues("store").Inc()
			logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Failed to decode audit event")
			return nil
		}
		if err := store.Append(msg.Context(), e); err != nil {
			sinkFailures.WithLabelValues("store").Inc()
			return err
		}
		return nil
	}
}

// streamSink broadcasts events to connected websocket clients.
func streamSink(hub *Hub) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		e, err := UnmarshalEvent(msg.Payload)
		if err != nil {
			sinkFailures.WithLabelValues("stream").Inc()
			logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Failed to decode audit event")
			return nil
		}
		hub.Broadcast(e)
		return nil
	}
}
