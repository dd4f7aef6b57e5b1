// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gateward/internal/audit"
	"github.com/tomtom215/gateward/internal/auth"
	"github.com/tomtom215/gateward/internal/authz"
	"github.com/tomtom215/gateward/internal/config"
	"github.com/tomtom215/gateward/internal/policy"
	"github.com/tomtom215/gateward/internal/respcache"
)

// captureRecorder keeps decision records for assertions and mirrors
// them into the audit store, so the audit route sees the same trail the
// filters produced.
type captureRecorder struct {
	mu    sync.Mutex
	recs  []authz.DecisionRecord
	store audit.Store
}

func (c *captureRecorder) RecordDecision(ctx context.Context, rec authz.DecisionRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
	if c.store != nil {
		_ = c.store.Append(ctx, audit.NewEvent(ctx, rec))
	}
}

func (c *captureRecorder) byPhase(phase authz.Phase) []authz.DecisionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []authz.DecisionRecord
	for _, rec := range c.recs {
		if rec.Phase == phase {
			out = append(out, rec)
		}
	}
	return out
}

// gateway is a fully assembled test server: credential store, token
// issuance, embedded policy, decision engine, response cache, and
// audit trail wired exactly as in production.
type gateway struct {
	ts       *httptest.Server
	recorder *captureRecorder
	policy   *policy.Enforcer
}

// Test accounts. Roles come from the embedded policy: admin holds
// everything, analyst holds Reports|Export|GET and inherits viewer,
// viewer holds Reports|Summary|GET only.
var testAccounts = []struct {
	username string
	role     string
}{
	{"root", "admin"},
	{"alice", "analyst"},
	{"vera", "viewer"},
}

func testPassword(username string) string {
	return "sw0rdfish-" + username
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	creds := auth.NewCredentialStore()
	for _, account := range testAccounts {
		if err := creds.Add(account.username, testPassword(account.username), account.role); err != nil {
			t.Fatalf("failed to add %s: %v", account.username, err)
		}
	}

	tokens, err := auth.NewTokenManager(config.AuthConfig{
		JWTSecret: "integration-test-secret-0123456789ab",
		TokenTTL:  time.Hour,
		Issuer:    "gateward-test",
	})
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}

	tokenHandler := auth.NewTokenHandler(tokens, creds, 100, time.Minute)
	t.Cleanup(tokenHandler.Close)

	enforcer, err := policy.NewEnforcer(config.PolicyConfig{})
	if err != nil {
		t.Fatalf("failed to create enforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	engine, err := authz.NewEngine(auth.ContextAccessor{}, enforcer)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	store := audit.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	recorder := &captureRecorder{store: store}

	bridge, err := authz.NewBridge(engine, recorder)
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}

	cacheStore := respcache.NewStore(64, time.Minute, time.Minute)
	t.Cleanup(cacheStore.Close)
	cache, err := respcache.NewMiddleware(cacheStore)
	if err != nil {
		t.Fatalf("failed to create cache middleware: %v", err)
	}

	health := NewHealthHandler("test")
	health.SetReady(true)

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimitDisabled: true},
	}
	router, err := NewRouter(cfg, Deps{
		Resolver:   auth.NewResolver(tokens, creds),
		Tokens:     tokenHandler,
		Engine:     engine,
		Bridge:     bridge,
		Recorder:   recorder,
		Cache:      cache,
		Policy:     enforcer,
		AuditStore: store,
		Health:     health,
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &gateway{ts: ts, recorder: recorder, policy: enforcer}
}

// token obtains an access token through the real issuance endpoint.
func (g *gateway) token(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, testPassword(username))
	resp, err := http.Post(g.ts.URL+"/api/v1/auth/token", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("token request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token request for %s: status = %d, want %d", username, resp.StatusCode, http.StatusOK)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("empty token issued")
	}
	return payload.Token
}

// do performs a request, returning the closed response and its body.
func (g *gateway) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, g.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp, payload
}

func (g *gateway) get(t *testing.T, path, token string) (*http.Response, []byte) {
	t.Helper()
	return g.do(t, http.MethodGet, path, token, "")
}

func TestRouterAnonymousDenied(t *testing.T) {
	g := newGateway(t)

	resp, body := g.get(t, "/api/v1/reports/export", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, http.StatusUnauthorized, body)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("WWW-Authenticate header missing on 401")
	}

	// A garbage credential resolves to anonymous; the filter is still
	// the single place that turns that into a 401.
	resp, _ = g.get(t, "/api/v1/reports/export", "not-a-jwt")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status with garbage token = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestRouterForbidden(t *testing.T) {
	g := newGateway(t)
	token := g.token(t, "vera")

	resp, body := g.get(t, "/api/v1/reports/export", token)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("export status = %d, want %d\nbody: %s", resp.StatusCode, http.StatusForbidden, body)
	}

	resp, _ = g.get(t, "/api/v1/reports/summary", token)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("summary status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

// TestRouterCacheConsistency walks the full protocol: an authorized
// response is cached with the private marking, a repeat caller is
// served from the cache after revalidation, a caller without permission
// bypasses the cache and is denied, and the cached entry survives the
// bypass untouched.
func TestRouterCacheConsistency(t *testing.T) {
	g := newGateway(t)
	alice := g.token(t, "alice")

	// First access: origin pass, response stored.
	resp, first := g.get(t, "/api/v1/reports/export", alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first access status = %d, want %d\nbody: %s", resp.StatusCode, http.StatusOK, first)
	}
	cacheControl := resp.Header.Get("Cache-Control")
	if !strings.Contains(cacheControl, "private") {
		t.Errorf("Cache-Control = %q, want private directive", cacheControl)
	}
	if !strings.Contains(cacheControl, "s-maxage=0") {
		t.Errorf("Cache-Control = %q, want s-maxage=0 directive", cacheControl)
	}
	if resp.Header.Get("Age") != "" {
		t.Error("first access carries an Age header; it must come from the origin")
	}

	// Second access by the same caller: revalidation passes, cache hit.
	resp, second := g.get(t, "/api/v1/reports/export", alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second access status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp.Header.Get("Age") == "" {
		t.Error("second access has no Age header; expected a cache hit")
	}
	if string(first) != string(second) {
		t.Errorf("cached body differs from origin body:\norigin: %s\ncached: %s", first, second)
	}

	// Anonymous caller against the cached URL: revalidation must not
	// leak the entry, and the fall-through to the origin is denied.
	resp, _ = g.get(t, "/api/v1/reports/export", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous access status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	// The denial happened on both the revalidation pass and the
	// request pass of the same access.
	revalidations := g.recorder.byPhase(authz.PhaseRevalidation)
	var denied bool
	for _, rec := range revalidations {
		if !rec.Allowed && rec.Status == http.StatusUnauthorized {
			denied = true
		}
	}
	if !denied {
		t.Errorf("no denied revalidation recorded; revalidations = %+v", revalidations)
	}

	// The bypass must not have displaced the entry.
	resp, _ = g.get(t, "/api/v1/reports/export", alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post-bypass access status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp.Header.Get("Age") == "" {
		t.Error("post-bypass access has no Age header; the denial displaced the cached entry")
	}
}

func TestRouterPolicyAdmin(t *testing.T) {
	g := newGateway(t)
	root := g.token(t, "root")
	vera := g.token(t, "vera")

	t.Run("admin surface requires permission", func(t *testing.T) {
		resp, _ := g.get(t, "/api/v1/authz/policies", vera)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
		}
	})

	t.Run("list grants", func(t *testing.T) {
		resp, body := g.get(t, "/api/v1/authz/policies", root)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, http.StatusOK, body)
		}
		if !strings.Contains(string(body), "Reports|Export|GET") {
			t.Errorf("grant list missing embedded grant: %s", body)
		}
	})

	t.Run("grant takes effect immediately", func(t *testing.T) {
		resp, _ := g.get(t, "/api/v1/reports/export", vera)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("pre-grant status = %d, want %d", resp.StatusCode, http.StatusForbidden)
		}

		resp, body := g.do(t, http.MethodPost, "/api/v1/authz/policies", root,
			`{"principal":"vera","operation":"Reports|Export|GET"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("grant status = %d, want %d\nbody: %s", resp.StatusCode, http.StatusCreated, body)
		}

		resp, _ = g.get(t, "/api/v1/reports/export", vera)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("post-grant status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	t.Run("role assignment", func(t *testing.T) {
		resp, body := g.get(t, "/api/v1/authz/roles/alice", root)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get roles status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if !strings.Contains(string(body), "analyst") {
			t.Errorf("roles for alice missing analyst: %s", body)
		}

		resp, _ = g.do(t, http.MethodPut, "/api/v1/authz/roles/vera", root,
			`{"roles":["analyst"]}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("put roles status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		roles, err := g.policy.RolesFor("vera")
		if err != nil {
			t.Fatalf("RolesFor failed: %v", err)
		}
		if len(roles) != 1 || roles[0] != "analyst" {
			t.Errorf("roles = %v, want [analyst]", roles)
		}
	})
}

func TestRouterAuditTrail(t *testing.T) {
	g := newGateway(t)
	root := g.token(t, "root")
	alice := g.token(t, "alice")

	// Produce some decisions to query.
	g.get(t, "/api/v1/reports/export", alice)
	g.get(t, "/api/v1/reports/export", "")

	resp, _ := g.get(t, "/api/v1/authz/audit", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous audit status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	resp, body := g.get(t, "/api/v1/authz/audit", root)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit status = %d, want %d\nbody: %s", resp.StatusCode, http.StatusOK, body)
	}

	var envelope APIResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("failed to decode audit envelope: %v", err)
	}
	events, ok := envelope.Data.([]interface{})
	if !ok {
		t.Fatalf("data is %T, want a list", envelope.Data)
	}
	// At least: alice allow, anonymous deny, the audit-route decisions.
	if len(events) < 3 {
		t.Errorf("len(events) = %d, want at least 3", len(events))
	}
}

func TestRouterTokenEndpoint(t *testing.T) {
	g := newGateway(t)

	resp, err := http.Post(g.ts.URL+"/api/v1/auth/token", "application/json",
		strings.NewReader(`{"username":"alice","password":"wrong-password"}`))
	if err != nil {
		t.Fatalf("token request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestRouterHealthAndDocs(t *testing.T) {
	g := newGateway(t)

	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/health/live",
		"/api/v1/health/ready",
		"/swagger/doc.json",
		"/metrics",
	} {
		resp, body := g.get(t, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want %d\nbody: %.200s", path, resp.StatusCode, http.StatusOK, body)
		}
	}
}

func TestNewRouterValidation(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{RateLimitDisabled: true}}

	if _, err := NewRouter(cfg, Deps{}); err == nil {
		t.Error("expected an error without a resolver")
	}
}
