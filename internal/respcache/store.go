// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package respcache

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/gateward/internal/authz"
)

// tokenValidator pairs an operation token with its revalidation
// callback. The token is carried opaquely from registration to storage.
type tokenValidator struct {
	token string
	fn    authz.ValidatorFunc
}

// Entry is one cached response plus the revalidation callbacks
// registered while the origin produced it. Entries are immutable after
// storage; revalidation never modifies them.
type Entry struct {
	key        string
	status     int
	header     http.Header
	body       []byte
	storedAt   time.Time
	expiresAt  time.Time
	validators []tokenValidator

	prev, next *Entry
}

// Status returns the stored response status.
func (e *Entry) Status() int { return e.status }

// Header returns the stored response headers.
func (e *Entry) Header() http.Header { return e.header }

// Body returns the stored response body.
func (e *Entry) Body() []byte { return e.body }

// Age reports how long ago the response was stored.
func (e *Entry) Age(now time.Time) time.Duration { return now.Sub(e.storedAt) }

// Tokens lists the operation tokens guarding the entry.
func (e *Entry) Tokens() []string {
	tokens := make([]string, len(e.validators))
	for i, v := range e.validators {
		tokens[i] = v.token
	}
	return tokens
}

// Revalidate runs every callback registered on the entry against the
// current request context. The stored response may be served only when
// all callbacks report Valid; an entry with no callbacks is public as
// far as this cache is concerned and always valid.
func (e *Entry) Revalidate(ctx context.Context) authz.Validity {
	for _, v := range e.validators {
		if v.fn(ctx) == authz.Bypass {
			return authz.Bypass
		}
	}
	return authz.Valid
}

// Store is a thread-safe LRU response store with per-entry expiry.
// A doubly-linked list tracks recency for O(1) eviction; a map gives
// O(1) lookup. Expired entries are dropped lazily on access and swept
// by a janitor goroutine.
type Store struct {
	mu sync.RWMutex

	capacity   int
	defaultTTL time.Duration

	items map[string]*Entry

	// head.next is the most recently used, tail.prev the least.
	head *Entry
	tail *Entry

	hits   int64
	misses int64

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewStore creates a response store. A cleanupInterval of zero disables
// the janitor; expired entries are then dropped only on access.
func NewStore(capacity int, defaultTTL, cleanupInterval time.Duration) *Store {
	if capacity <= 0 {
		capacity = 1024
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}

	s := &Store{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[string]*Entry, capacity),
		head:       &Entry{},
		tail:       &Entry{},
		stopChan:   make(chan struct{}),
	}
	s.head.next = s.tail
	s.tail.prev = s.head

	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

// DefaultTTL returns the expiry applied to entries whose response does
// not cap it.
func (s *Store) DefaultTTL() time.Duration { return s.defaultTTL }

// Get retrieves an entry, promoting it to most recently used. Expired
// entries are dropped and reported as misses.
func (s *Store) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.removeEntry(entry)
		s.misses++
		return nil, false
	}

	s.moveToFront(entry)
	s.hits++
	return entry, true
}

// Add stores a response under the key, replacing any previous entry.
// The least recently used entry is evicted when the store is full.
func (s *Store) Add(key string, e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[key]; ok {
		s.removeEntry(old)
	}

	e.key = key
	s.addToFront(e)
	s.items[key] = e

	for len(s.items) > s.capacity {
		s.evictOldest()
	}
	cacheEntries.Set(float64(len(s.items)))
}

// Remove drops the entry for the key, reporting whether one existed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeEntry(entry)
	return true
}

// Len returns the current number of stored responses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear drops every stored response.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*Entry, s.capacity)
	s.head.next = s.tail
	s.tail.prev = s.head
	cacheEntries.Set(0)
}

// CleanupExpired removes all expired entries and returns how many.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for entry := s.tail.prev; entry != s.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			s.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Stats returns hit/miss counters and the current size.
func (s *Store) Stats() (hits, misses int64, size int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits, s.misses, len(s.items)
}

// Close stops the janitor. Safe to call multiple times.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.CleanupExpired()
		}
	}
}

// List manipulation. Callers must hold the lock.

func (s *Store) addToFront(entry *Entry) {
	entry.prev = s.head
	entry.next = s.head.next
	s.head.next.prev = entry
	s.head.next = entry
}

func (s *Store) moveToFront(entry *Entry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	s.addToFront(entry)
}

func (s *Store) removeEntry(entry *Entry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(s.items, entry.key)
	cacheEntries.Set(float64(len(s.items)))
}

func (s *Store) evictOldest() {
	oldest := s.tail.prev
	if oldest == s.head {
		return
	}
	s.removeEntry(oldest)
	cacheEvictions.Inc()
}
