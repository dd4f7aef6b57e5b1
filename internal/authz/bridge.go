// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/gateward/internal/logging"
)

// Validity is the outcome of revalidating a cached response for the
// current caller.
type Validity int

const (
	// Valid means the stored response may be served to this caller.
	Valid Validity = iota

	// Bypass means the stored response must not be served for this
	// access. The entry itself stays intact; only this access falls
	// through to the origin.
	Bypass
)

// String returns the validity as a metrics and audit label.
func (v Validity) String() string {
	if v == Valid {
		return "valid"
	}
	return "bypass"
}

// ValidatorFunc re-checks a cached response against the current caller.
// The cache subsystem invokes it zero or more times per stored entry,
// from any goroutine, each time the entry is a candidate to serve.
type ValidatorFunc func(ctx context.Context) Validity

// Registrar accepts revalidation callbacks during response production.
// The token is the operation identifier, threaded opaquely: it is the
// only state the callback's registration carries through the cache.
type Registrar interface {
	RegisterValidationCallback(token string, cb ValidatorFunc)
}

// ErrNoEngine indicates a bridge was built without a decision engine.
var ErrNoEngine = errors.New("decision engine is required")

type registrarKey struct{}

// WithRegistrar returns a context carrying the per-request registrar.
// The caching middleware installs one before the filter runs.
func WithRegistrar(ctx context.Context, reg Registrar) context.Context {
	return context.WithValue(ctx, registrarKey{}, reg)
}

// RegistrarFrom extracts the per-request registrar, if any. Absent
// registrar means no cache is in play for this request.
func RegistrarFrom(ctx context.Context) (Registrar, bool) {
	reg, ok := ctx.Value(registrarKey{}).(Registrar)
	return reg, ok
}

// PrivateCacheControl forbids storage by shared and intermediary caches
// while leaving private, per-client caching allowed. Every allowed
// response carries it, so a response authorized for one caller is never
// replayed by a proxy to another.
const PrivateCacheControl = "private, s-maxage=0"

// Bridge keeps cached responses authorization-consistent. On an allow
// decision it restricts the response to private caches and registers a
// revalidation callback; when the cache later considers serving the
// stored response, the callback re-runs the decision engine with the
// then-current caller.
type Bridge struct {
	engine   *Engine
	recorder DecisionRecorder
}

// NewBridge creates a cache validation bridge. The recorder may be nil
// to disable audit recording.
func NewBridge(engine *Engine, recorder DecisionRecorder) (*Bridge, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Bridge{
		engine:   engine,
		recorder: recorder,
	}, nil
}

// OnAllowed applies the cache consistency protocol to an allowed
// response: the response is marked private to shared caches, and a
// revalidation callback for the operation is registered with the
// per-request registrar. Without a registrar on the context the header
// is still set and registration is skipped, which is the no-cache
// deployment working as intended.
func (b *Bridge) OnAllowed(w http.ResponseWriter, r *http.Request, operation string) {
	w.Header().Set("Cache-Control", PrivateCacheControl)

	reg, ok := RegistrarFrom(r.Context())
	if !ok {
		return
	}
	reg.RegisterValidationCallback(operation, b.validatorFor(operation))
}

// validatorFor builds the revalidation callback for one operation. The
// closure captures only the immutable operation string and the shared
// engine, so concurrent invocations for different callers cannot
// interfere.
func (b *Bridge) validatorFor(operation string) ValidatorFunc {
	return func(ctx context.Context) Validity {
		decision, err := b.engine.Decide(ctx, operation)
		if err != nil {
			// A broken validator must not leak cached data.
			logging.Ctx(ctx).Error().Err(err).Str("operation", operation).Msg("Revalidation check failed, bypassing cache")
			revalidationsTotal.WithLabelValues("fault").Inc()
			return Bypass
		}

		b.recorder.RecordDecision(ctx, DecisionRecord{
			Subject:   b.engine.subjects.Current(ctx).ID,
			Operation: operation,
			Allowed:   decision.Allowed,
			Status:    decision.Status,
			Phase:     PhaseRevalidation,
		})

		if decision.Allowed {
			revalidationsTotal.WithLabelValues("valid").Inc()
			return Valid
		}
		revalidationsTotal.WithLabelValues("bypass").Inc()
		return Bypass
	}
}
