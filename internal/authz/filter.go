// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import (
	"errors"
	"net/http"
	"time"
)

// Filter construction errors.
var (
	// ErrNoBridge indicates a filter was built without a cache bridge.
	ErrNoBridge = errors.New("cache validation bridge is required")

	// ErrNoOperation indicates a filter was built with neither an
	// operation override nor the metadata to compose a descriptor.
	ErrNoOperation = errors.New("handler and action are required unless an operation override is set")
)

// FilterConfig identifies the operation a Filter protects. Either set
// Operation to an explicit identifier, or set Handler and Action and let
// the filter compose "handler|action|method" per request. Overrides
// survive handler renames, so prefer them for routes whose granted
// permissions must outlive refactors.
type FilterConfig struct {
	// Handler is the handler identity, e.g. "Reports". See
	// HandlerIdentity for deriving one from a handler value.
	Handler string

	// Action is the action name within the handler, e.g. "Export".
	Action string

	// Operation, when non-empty, is used verbatim and the other fields
	// are ignored.
	Operation string
}

// Filter is the per-route authorization middleware. One instance serves
// all concurrent invocations of its route: it holds only immutable
// configuration and shared collaborators, and every evaluation works
// exclusively on per-call data.
type Filter struct {
	handler   string
	action    string
	override  string
	engine    *Engine
	bridge    *Bridge
	recorder  DecisionRecorder
	responder Responder
}

// NewFilter creates the authorization filter for one route. Collaborator
// and metadata checks happen here, once, so a misconfigured route fails
// at assembly time rather than producing spurious denials under load.
// The recorder may be nil to disable audit recording.
func NewFilter(cfg FilterConfig, engine *Engine, bridge *Bridge, recorder DecisionRecorder) (*Filter, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if bridge == nil {
		return nil, ErrNoBridge
	}
	if cfg.Operation == "" && (cfg.Handler == "" || cfg.Action == "") {
		return nil, ErrNoOperation
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &Filter{
		handler:  cfg.Handler,
		action:   cfg.Action,
		override: cfg.Operation,
		engine:   engine,
		bridge:   bridge,
		recorder: recorder,
	}, nil
}

// Operation returns the identifier the filter evaluates for the given
// HTTP method. The override, when set, wins regardless of method.
func (f *Filter) Operation(method string) string {
	if f.override != "" {
		return f.override
	}
	// Construction guaranteed handler and action, and method always
	// arrives on a request, so composition cannot fail here.
	descriptor, _ := BuildDescriptor(f.handler, f.action, method)
	return descriptor
}

// Middleware evaluates the filter before the wrapped handler. Denials
// and faults are terminal: the handler never runs. On allow, the bridge
// applies the cache consistency protocol and the request proceeds.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operation := f.Operation(r.Method)

		start := time.Now()
		decision, err := f.engine.Decide(r.Context(), operation)
		decisionDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			decisionsTotal.WithLabelValues(operation, "fault").Inc()
			f.responder.WriteFault(w, r, operation, err)
			return
		}

		decisionsTotal.WithLabelValues(operation, decision.Outcome()).Inc()
		f.recorder.RecordDecision(r.Context(), DecisionRecord{
			Subject:   f.engine.subjects.Current(r.Context()).ID,
			Operation: operation,
			Allowed:   decision.Allowed,
			Status:    decision.Status,
			Phase:     PhaseRequest,
		})

		if !decision.Allowed {
			f.responder.WriteDenial(w, r, decision, operation)
			return
		}

		f.bridge.OnAllowed(w, r, operation)
		next.ServeHTTP(w, r)
	})
}
