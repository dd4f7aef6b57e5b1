// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package policy

import (
	"strings"
	"sync"
	"time"
)

// decisionCache memoizes enforcement results per (principal, operation)
// for a bounded TTL. Role changes invalidate the affected principal;
// grant changes invalidate everything, since a single grant can alter
// decisions for any principal reachable through role inheritance.
type decisionCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]*cachedDecision
	stopChan chan struct{}
	stopOnce sync.Once
}

type cachedDecision struct {
	allowed   bool
	expiresAt time.Time
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &decisionCache{
		ttl:      ttl,
		items:    make(map[string]*cachedDecision),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// key builds the cache key. Principals never contain ":" separators
// with meaning; operations may, which is fine since the principal comes
// first and invalidation scans by principal prefix.
func (c *decisionCache) key(principal, operation string) string {
	return principal + ":" + operation
}

// get retrieves a cached decision. The second return reports presence.
func (c *decisionCache) get(principal, operation string) (bool, bool) {
	c.mu.RLock()
	item, ok := c.items[c.key(principal, operation)]
	c.mu.RUnlock()

	if !ok || time.Now().After(item.expiresAt) {
		cacheLookups.WithLabelValues("miss").Inc()
		return false, false
	}

	cacheLookups.WithLabelValues("hit").Inc()
	return item.allowed, true
}

// set stores a decision.
func (c *decisionCache) set(principal, operation string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[c.key(principal, operation)] = &cachedDecision{
		allowed:   allowed,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// invalidatePrincipal drops every cached decision for one principal.
func (c *decisionCache) invalidatePrincipal(principal string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := principal + ":"
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// clear drops all cached decisions.
func (c *decisionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cachedDecision)
}

func (c *decisionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// cleanup periodically removes expired entries.
func (c *decisionCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// stop halts the cleanup goroutine. Safe to call multiple times.
func (c *decisionCache) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
