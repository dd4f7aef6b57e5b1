// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package respcache

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/gateward/internal/authz"
	"github.com/tomtom215/gateward/internal/logging"
)

// ErrNoStore indicates the middleware was built without a store.
var ErrNoStore = errors.New("response store is required")

// collector gathers the callbacks registered during one origin pass.
// It implements authz.Registrar and lives for a single request.
type collector struct {
	mu    sync.Mutex
	pairs []tokenValidator
}

func (c *collector) RegisterValidationCallback(token string, cb authz.ValidatorFunc) {
	if cb == nil {
		return
	}
	c.mu.Lock()
	c.pairs = append(c.pairs, tokenValidator{token: token, fn: cb})
	c.mu.Unlock()
}

func (c *collector) validators() []tokenValidator {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tokenValidator, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// teeWriter forwards the response to the client while keeping a copy
// for storage.
type teeWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}

// Middleware caches GET responses and revalidates them per access.
// Install it outside the authorization filter: the filter's bridge
// expects the callback collector on the context during the origin
// pass, and stored entries must be revalidated before they are served.
type Middleware struct {
	store *Store
}

// NewMiddleware creates the caching middleware over the given store.
func NewMiddleware(store *Store) (*Middleware, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	return &Middleware{store: store}, nil
}

// Handler wraps next with response caching. A cached entry is served
// only when every revalidation callback registered on it reports Valid
// for the current caller; otherwise this access falls through to the
// origin and the entry stays as it is. Only 200 responses to GET are
// stored, so a denial on the fall-through path never displaces a
// cached response.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			cacheRequests.WithLabelValues("skip").Inc()
			next.ServeHTTP(w, r)
			return
		}

		key := r.URL.RequestURI()
		if entry, ok := m.store.Get(key); ok {
			if entry.Revalidate(r.Context()) == authz.Valid {
				cacheRequests.WithLabelValues("hit").Inc()
				m.serveStored(w, r, entry)
				return
			}
			cacheRequests.WithLabelValues("bypass").Inc()
		} else {
			cacheRequests.WithLabelValues("miss").Inc()
		}

		reg := &collector{}
		tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(tee, r.WithContext(authz.WithRegistrar(r.Context(), reg)))

		if tee.status != http.StatusOK {
			return
		}
		if hasDirective(tee.Header().Get("Cache-Control"), "no-store") {
			return
		}
		ttl := entryTTL(tee.Header(), m.store.DefaultTTL())
		if ttl <= 0 {
			return
		}

		now := time.Now()
		body := make([]byte, tee.buf.Len())
		copy(body, tee.buf.Bytes())
		m.store.Add(key, &Entry{
			status:     tee.status,
			header:     tee.Header().Clone(),
			body:       body,
			storedAt:   now,
			expiresAt:  now.Add(ttl),
			validators: reg.validators(),
		})
	})
}

// serveStored writes the cached response, including the headers the
// origin produced and the entry's current age.
func (m *Middleware) serveStored(w http.ResponseWriter, r *http.Request, entry *Entry) {
	for name, values := range entry.Header() {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.Header().Set("Age", strconv.Itoa(int(entry.Age(time.Now()).Seconds())))
	w.WriteHeader(entry.Status())
	if _, err := w.Write(entry.Body()); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write cached response")
	}
}

// hasDirective reports whether the Cache-Control value contains the
// directive as a whole token.
func hasDirective(cacheControl, directive string) bool {
	for _, d := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(d), directive) {
			return true
		}
	}
	return false
}

// entryTTL derives the storage lifetime from the response. A max-age
// directive caps the default TTL, and max-age=0 forbids storage.
// s-maxage is not consulted: it addresses shared caches downstream,
// not this one.
func entryTTL(h http.Header, fallback time.Duration) time.Duration {
	for _, d := range strings.Split(h.Get("Cache-Control"), ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		value, ok := strings.CutPrefix(d, "max-age=")
		if !ok {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		ttl := time.Duration(seconds) * time.Second
		if ttl < fallback {
			return ttl
		}
		return fallback
	}
	return fallback
}
