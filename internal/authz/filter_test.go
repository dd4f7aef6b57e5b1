// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package authz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/tomtom215/gateward/internal/auth"
)

// getCounterValue extracts the value from a Prometheus counter for
// delta assertions.
func getCounterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func newExportFilter(t *testing.T, validator validatorFunc, recorder DecisionRecorder) *Filter {
	t.Helper()
	engine, err := NewEngine(auth.ContextAccessor{}, validator)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	bridge, err := NewBridge(engine, recorder)
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}
	filter, err := NewFilter(FilterConfig{Handler: "Reports", Action: "Export"}, engine, bridge, recorder)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	return filter
}

// serveFiltered sends one GET through the filter and reports whether
// the wrapped handler ran.
func serveFiltered(f *Filter, ctx context.Context) (*httptest.ResponseRecorder, bool) {
	called := false
	handler := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("export data"))
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/reports/export", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w, called
}

func decodeErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode error envelope: %v (body %q)", err, w.Body.String())
	}
	return env
}

func TestNewFilter(t *testing.T) {
	engine, err := NewEngine(auth.ContextAccessor{}, validatorFunc(allowAll))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	bridge, err := NewBridge(engine, nil)
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}

	tests := []struct {
		name    string
		cfg     FilterConfig
		engine  *Engine
		bridge  *Bridge
		wantErr error
	}{
		{
			name:   "handler and action",
			cfg:    FilterConfig{Handler: "Reports", Action: "Export"},
			engine: engine,
			bridge: bridge,
		},
		{
			name:   "operation override only",
			cfg:    FilterConfig{Operation: "legacy-exports"},
			engine: engine,
			bridge: bridge,
		},
		{
			name:    "nil engine",
			cfg:     FilterConfig{Handler: "Reports", Action: "Export"},
			engine:  nil,
			bridge:  bridge,
			wantErr: ErrNoEngine,
		},
		{
			name:    "nil bridge",
			cfg:     FilterConfig{Handler: "Reports", Action: "Export"},
			engine:  engine,
			bridge:  nil,
			wantErr: ErrNoBridge,
		},
		{
			name:    "missing action",
			cfg:     FilterConfig{Handler: "Reports"},
			engine:  engine,
			bridge:  bridge,
			wantErr: ErrNoOperation,
		},
		{
			name:    "missing handler",
			cfg:     FilterConfig{Action: "Export"},
			engine:  engine,
			bridge:  bridge,
			wantErr: ErrNoOperation,
		},
		{
			name:    "nothing set",
			cfg:     FilterConfig{},
			engine:  engine,
			bridge:  bridge,
			wantErr: ErrNoOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := NewFilter(tt.cfg, tt.engine, tt.bridge, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewFilter error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFilter failed: %v", err)
			}
			if filter == nil {
				t.Fatal("NewFilter returned nil filter without error")
			}
		})
	}
}

func TestFilterOperation(t *testing.T) {
	engine, err := NewEngine(auth.ContextAccessor{}, validatorFunc(allowAll))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	bridge, err := NewBridge(engine, nil)
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}

	tests := []struct {
		name   string
		cfg    FilterConfig
		method string
		want   string
	}{
		{
			name:   "composed from metadata and GET",
			cfg:    FilterConfig{Handler: "Reports", Action: "Export"},
			method: http.MethodGet,
			want:   "Reports|Export|GET",
		},
		{
			name:   "composed from metadata and POST",
			cfg:    FilterConfig{Handler: "Policies", Action: "Create"},
			method: http.MethodPost,
			want:   "Policies|Create|POST",
		},
		{
			name:   "override used verbatim",
			cfg:    FilterConfig{Operation: "legacy-exports"},
			method: http.MethodGet,
			want:   "legacy-exports",
		},
		{
			name:   "override wins over metadata",
			cfg:    FilterConfig{Handler: "Reports", Action: "Export", Operation: "ReportsV2|Export|GET"},
			method: http.MethodDelete,
			want:   "ReportsV2|Export|GET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := NewFilter(tt.cfg, engine, bridge, nil)
			if err != nil {
				t.Fatalf("NewFilter failed: %v", err)
			}
			if got := filter.Operation(tt.method); got != tt.want {
				t.Errorf("Operation(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestFilterDeniesAnonymous(t *testing.T) {
	filter := newExportFilter(t, validatorFunc(analystOnly), nil)

	w, called := serveFiltered(filter, subjectCtx(auth.Anonymous()))

	if called {
		t.Error("wrapped handler must not run for an unauthenticated caller")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Bearer realm="gateward"` {
		t.Errorf("WWW-Authenticate = %q, want %q", got, `Bearer realm="gateward"`)
	}

	env := decodeErrorEnvelope(t, w)
	if env.Success {
		t.Error("denial envelope should not report success")
	}
	if env.Error.Code != "unauthorized" {
		t.Errorf("error code = %q, want %q", env.Error.Code, "unauthorized")
	}
}

func TestFilterDeniesMissingPermission(t *testing.T) {
	filter := newExportFilter(t, validatorFunc(analystOnly), nil)

	w, called := serveFiltered(filter, subjectCtx(authedSubject("bob")))

	if called {
		t.Error("wrapped handler must not run without permission")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	env := decodeErrorEnvelope(t, w)
	if env.Error.Code != "forbidden" {
		t.Errorf("error code = %q, want %q", env.Error.Code, "forbidden")
	}
}

func TestFilterAllowsAndAppliesCacheProtocol(t *testing.T) {
	filter := newExportFilter(t, validatorFunc(analystOnly), nil)
	registrar := &captureRegistrar{}

	ctx := WithRegistrar(subjectCtx(authedSubject("alice", "analyst")), registrar)
	w, called := serveFiltered(filter, ctx)

	if !called {
		t.Fatal("wrapped handler should run for a permitted caller")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "export data" {
		t.Errorf("body = %q, want %q", got, "export data")
	}
	if got := w.Header().Get("Cache-Control"); got != PrivateCacheControl {
		t.Errorf("Cache-Control = %q, want %q", got, PrivateCacheControl)
	}
	if len(registrar.tokens) != 1 || registrar.tokens[0] != "Reports|Export|GET" {
		t.Fatalf("registered tokens = %v, want exactly [Reports|Export|GET]", registrar.tokens)
	}
}

// TestFilterRevalidationForLaterCaller follows a cached allow with a
// revalidation by a different, unauthenticated caller. The stored
// response must not be served to them.
func TestFilterRevalidationForLaterCaller(t *testing.T) {
	filter := newExportFilter(t, validatorFunc(analystOnly), nil)
	registrar := &captureRegistrar{}

	ctx := WithRegistrar(subjectCtx(authedSubject("alice", "analyst")), registrar)
	if _, called := serveFiltered(filter, ctx); !called {
		t.Fatal("wrapped handler should run for a permitted caller")
	}
	if len(registrar.callbacks) != 1 {
		t.Fatalf("registered %d callbacks, want 1", len(registrar.callbacks))
	}

	if got := registrar.callbacks[0](subjectCtx(auth.Anonymous())); got != Bypass {
		t.Errorf("revalidation for anonymous caller = %v, want %v", got, Bypass)
	}
	if got := registrar.callbacks[0](subjectCtx(authedSubject("alice", "analyst"))); got != Valid {
		t.Errorf("revalidation for original caller = %v, want %v", got, Valid)
	}
}

func TestFilterFault(t *testing.T) {
	faulty := validatorFunc(func(context.Context, auth.Subject, string) (bool, error) {
		return false, errors.New("policy backend offline")
	})
	filter := newExportFilter(t, faulty, nil)

	w, called := serveFiltered(filter, subjectCtx(authedSubject("alice", "analyst")))

	if called {
		t.Error("wrapped handler must not run when the validator faults")
	}
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	env := decodeErrorEnvelope(t, w)
	if env.Error.Code != "internal_error" {
		t.Errorf("error code = %q, want %q", env.Error.Code, "internal_error")
	}
}

func TestFilterRecordsRequestDecisions(t *testing.T) {
	recorder := &captureRecorder{}
	filter := newExportFilter(t, validatorFunc(analystOnly), recorder)

	serveFiltered(filter, subjectCtx(authedSubject("alice", "analyst")))
	serveFiltered(filter, subjectCtx(auth.Anonymous()))

	records := recorder.all()
	if len(records) != 2 {
		t.Fatalf("recorded %d decisions, want 2", len(records))
	}

	first := records[0]
	if first.Phase != PhaseRequest || !first.Allowed || first.Subject != "alice" {
		t.Errorf("first record = %+v, want allowed request-phase decision for alice", first)
	}
	second := records[1]
	if second.Allowed || second.Status != http.StatusUnauthorized || second.Subject != auth.AnonymousID {
		t.Errorf("second record = %+v, want 401 denial for anonymous", second)
	}
	if first.Operation != "Reports|Export|GET" || second.Operation != "Reports|Export|GET" {
		t.Errorf("records carry operations %q and %q, want %q",
			first.Operation, second.Operation, "Reports|Export|GET")
	}
}

func TestFilterMetrics(t *testing.T) {
	filter := newExportFilter(t, validatorFunc(analystOnly), nil)

	authorizedBefore := getCounterValue(decisionsTotal.WithLabelValues("Reports|Export|GET", "authorized"))
	unauthorizedBefore := getCounterValue(decisionsTotal.WithLabelValues("Reports|Export|GET", "unauthorized"))

	serveFiltered(filter, subjectCtx(authedSubject("alice", "analyst")))
	serveFiltered(filter, subjectCtx(auth.Anonymous()))

	authorizedAfter := getCounterValue(decisionsTotal.WithLabelValues("Reports|Export|GET", "authorized"))
	unauthorizedAfter := getCounterValue(decisionsTotal.WithLabelValues("Reports|Export|GET", "unauthorized"))

	if authorizedAfter != authorizedBefore+1 {
		t.Errorf("authorized counter = %v, want %v", authorizedAfter, authorizedBefore+1)
	}
	if unauthorizedAfter != unauthorizedBefore+1 {
		t.Errorf("unauthorized counter = %v, want %v", unauthorizedAfter, unauthorizedBefore+1)
	}
}

func TestFilterFaultMetric(t *testing.T) {
	faulty := validatorFunc(func(context.Context, auth.Subject, string) (bool, error) {
		return false, errors.New("policy backend offline")
	})
	filter := newExportFilter(t, faulty, nil)

	before := getCounterValue(decisionsTotal.WithLabelValues("Reports|Export|GET", "fault"))
	serveFiltered(filter, subjectCtx(authedSubject("alice", "analyst")))
	after := getCounterValue(decisionsTotal.WithLabelValues("Reports|Export|GET", "fault"))

	if after != before+1 {
		t.Errorf("fault counter = %v, want %v", after, before+1)
	}
}
