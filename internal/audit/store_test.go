// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/gateward/internal/config"
)

func testEvent(subject, operation string, at time.Time) Event {
	return Event{
		ID:        subject + "-" + operation + "-" + at.Format(time.RFC3339Nano),
		Time:      at,
		Subject:   subject,
		Operation: operation,
		Allowed:   true,
		Phase:     "request",
	}
}

func mustAppend(t *testing.T, s Store, events ...Event) {
	t.Helper()
	for _, e := range events {
		if err := s.Append(context.Background(), e); err != nil {
			t.Fatalf("Append(%s) failed: %v", e.ID, err)
		}
	}
}

func TestFilterMatches(t *testing.T) {
	now := time.Now()
	event := testEvent("alice", "Reports|Export|GET", now)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty filter matches", filter: Filter{}, want: true},
		{name: "matching subject", filter: Filter{Subject: "alice"}, want: true},
		{name: "other subject", filter: Filter{Subject: "bob"}, want: false},
		{name: "since before event", filter: Filter{Since: now.Add(-time.Minute)}, want: true},
		{name: "since after event", filter: Filter{Since: now.Add(time.Minute)}, want: false},
		{name: "since exactly event time", filter: Filter{Since: now}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.matches(event); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterLimit(t *testing.T) {
	if got := (Filter{}).limit(); got != DefaultQueryLimit {
		t.Errorf("limit() = %d, want default %d", got, DefaultQueryLimit)
	}
	if got := (Filter{Limit: -5}).limit(); got != DefaultQueryLimit {
		t.Errorf("limit() = %d, want default %d", got, DefaultQueryLimit)
	}
	if got := (Filter{Limit: 7}).limit(); got != 7 {
		t.Errorf("limit() = %d, want 7", got)
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	now := time.Now().UTC()
	store := NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()

	mustAppend(t, store,
		testEvent("alice", "Reports|Export|GET", now.Add(-3*time.Minute)),
		testEvent("bob", "Reports|Summary|GET", now.Add(-2*time.Minute)),
		testEvent("alice", "Reports|Summary|GET", now.Add(-time.Minute)),
	)

	t.Run("newest first", func(t *testing.T) {
		events, err := store.Query(context.Background(), Filter{})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("got %d events, want 3", len(events))
		}
		for i := 1; i < len(events); i++ {
			if events[i].Time.After(events[i-1].Time) {
				t.Errorf("events out of order at %d: %v after %v", i, events[i].Time, events[i-1].Time)
			}
		}
	})

	t.Run("subject filter", func(t *testing.T) {
		events, err := store.Query(context.Background(), Filter{Subject: "alice"})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2", len(events))
		}
		for _, e := range events {
			if e.Subject != "alice" {
				t.Errorf("got subject %q, want alice", e.Subject)
			}
		}
	})

	t.Run("since filter", func(t *testing.T) {
		events, err := store.Query(context.Background(), Filter{Since: now.Add(-90 * time.Second)})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		if events[0].Subject != "alice" {
			t.Errorf("got subject %q, want alice", events[0].Subject)
		}
	})

	t.Run("limit", func(t *testing.T) {
		events, err := store.Query(context.Background(), Filter{Limit: 2})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2", len(events))
		}
		// The two newest, not the two oldest.
		if events[0].Operation != "Reports|Summary|GET" {
			t.Errorf("got newest operation %q", events[0].Operation)
		}
	})
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	now := time.Now().UTC()
	store := NewMemoryStore(time.Minute)
	defer func() { _ = store.Close() }()

	mustAppend(t, store,
		testEvent("alice", "Reports|Export|GET", now.Add(-2*time.Minute)),
		testEvent("alice", "Reports|Summary|GET", now),
	)

	removed, err := store.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d events, want 1", removed)
	}
	if store.Len() != 1 {
		t.Errorf("store retains %d events, want 1", store.Len())
	}
}

func TestMemoryStoreCleanupWithoutRetention(t *testing.T) {
	store := NewMemoryStore(0)
	defer func() { _ = store.Close() }()

	mustAppend(t, store, testEvent("alice", "Reports|Export|GET", time.Now().Add(-time.Hour)))

	removed, err := store.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed %d events, want 0", removed)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := store.Append(context.Background(), testEvent("alice", "op", time.Now())); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Append after Close = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Query(context.Background(), Filter{}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Query after Close = %v, want ErrStoreClosed", err)
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AuditConfig
		wantErr bool
	}{
		{
			name: "memory backend",
			cfg:  config.AuditConfig{Store: "memory", RetentionTTL: time.Hour},
		},
		{
			name: "empty backend defaults to memory",
			cfg:  config.AuditConfig{RetentionTTL: time.Hour},
		},
		{
			name:    "unknown backend",
			cfg:     config.AuditConfig{Store: "postgres"},
			wantErr: true,
		},
		{
			name:    "badger without path",
			cfg:     config.AuditConfig{Store: "badger", RetentionTTL: time.Hour},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore failed: %v", err)
			}
			_ = store.Close()
		})
	}
}

func TestEventMarshalRoundTrip(t *testing.T) {
	want := Event{
		ID:        "evt-1",
		Time:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Subject:   "alice",
		Operation: "Reports|Export|GET",
		Allowed:   false,
		Status:    403,
		Phase:     "revalidation",
		RequestID: "req-1",
	}

	payload, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := UnmarshalEvent(payload)
	if err != nil {
		t.Fatalf("UnmarshalEvent failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
	if got.Outcome() != "forbidden" {
		t.Errorf("Outcome() = %q, want forbidden", got.Outcome())
	}
}
