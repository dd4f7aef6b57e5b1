// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/gateward/internal/config"
)

// DefaultQueryLimit caps queries that specify no limit of their own.
const DefaultQueryLimit = 100

// ErrStoreClosed is returned by store operations after Close.
var ErrStoreClosed = errors.New("audit store is closed")

// NewStore builds the store the configuration selects.
func NewStore(cfg config.AuditConfig) (Store, error) {
	switch normalizeBackend(cfg.Store) {
	case "", "memory":
		return NewMemoryStore(cfg.RetentionTTL), nil
	case "badger":
		return NewBadgerStore(cfg.StorePath, cfg.RetentionTTL)
	default:
		return nil, fmt.Errorf("unknown audit store backend %q", cfg.Store)
	}
}

// Filter narrows a store query. Zero values match everything.
type Filter struct {
	// Subject limits results to decisions for one subject id.
	Subject string

	// Since limits results to events at or after this instant.
	Since time.Time

	// Limit caps the number of returned events; 0 means
	// DefaultQueryLimit.
	Limit int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

func (f Filter) matches(e Event) bool {
	if f.Subject != "" && e.Subject != f.Subject {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	return true
}

// Store persists decision events. Implementations must be safe for
// concurrent use: the pipeline appends from the router goroutine while
// the admin API queries.
type Store interface {
	// Append records one event.
	Append(ctx context.Context, e Event) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, f Filter) ([]Event, error)

	// CleanupExpired removes events past the retention window and
	// reports how many were removed.
	CleanupExpired(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore keeps events in memory with a retention TTL. Suited to
// tests and single-node deployments where the audit trail need not
// survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	retention time.Duration
	closed    bool
}

// NewMemoryStore creates an in-memory store. Events older than
// retention are dropped by CleanupExpired; a zero retention keeps
// everything until Close.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{retention: retention}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.events = append(s.events, e)
	storedTotal.WithLabelValues("memory").Inc()
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	matched := make([]Event, 0, f.limit())
	// Newest first: appends arrive in time order, so walk backwards.
	for i := len(s.events) - 1; i >= 0 && len(matched) < f.limit(); i-- {
		if f.matches(s.events[i]) {
			matched = append(matched, s.events[i])
		}
	}

	// Concurrent revalidations can append slightly out of order;
	// present a stable newest-first view regardless.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Time.After(matched[j].Time)
	})
	return matched, nil
}

// CleanupExpired implements Store.
func (s *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-s.retention)
	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if e.Time.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Len returns the number of retained events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close implements Store. It is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.events = nil
	return nil
}

// normalizeBackend maps a configured store name to its canonical form.
func normalizeBackend(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
