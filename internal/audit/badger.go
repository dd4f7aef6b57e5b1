// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// eventKeyPrefix namespaces event keys inside the database.
const eventKeyPrefix = "evt:"

// BadgerStore persists decision events in a Badger database. Each event
// is written with the retention TTL, so expiry is enforced by the
// storage engine and CleanupExpired only reclaims value-log space.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
}

// NewBadgerStore opens (or creates) the database at path. Retention
// must be positive: an audit trail without an expiry grows without
// bound.
func NewBadgerStore(path string, retention time.Duration) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("badger audit store requires a path")
	}
	if retention <= 0 {
		return nil, errors.New("badger audit store requires a positive retention")
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database at %s: %w", path, err)
	}

	return &BadgerStore{db: db, retention: retention}, nil
}

// eventKey orders events by time, then id for uniqueness within one
// nanosecond.
func eventKey(e Event) []byte {
	return []byte(eventKeyPrefix + fmt.Sprintf("%020d", e.Time.UnixNano()) + ":" + e.ID)
}

// keyTime recovers the event timestamp encoded in a key. The second
// return is false for malformed keys.
func keyTime(key []byte) (time.Time, bool) {
	s := strings.TrimPrefix(string(key), eventKeyPrefix)
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(s[:idx], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

// Append implements Store.
func (s *BadgerStore) Append(_ context.Context, e Event) error {
	payload, err := e.Marshal()
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(eventKey(e), payload).WithTTL(s.retention)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to append audit event %s: %w", e.ID, err)
	}
	storedTotal.WithLabelValues("badger").Inc()
	return nil
}

// Query implements Store. Keys encode the event time, so a reverse scan
// yields newest first and stops as soon as it crosses the Since bound.
func (s *BadgerStore) Query(_ context.Context, f Filter) ([]Event, error) {
	prefix := []byte(eventKeyPrefix)
	matched := make([]Event, 0, f.limit())

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible event key.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if ts, ok := keyTime(item.Key()); ok && !f.Since.IsZero() && ts.Before(f.Since) {
				return nil
			}

			var e Event
			err := item.Value(func(val []byte) error {
				decoded, err := UnmarshalEvent(val)
				if err != nil {
					return err
				}
				e = decoded
				return nil
			})
			if err != nil {
				return err
			}

			if !f.matches(e) {
				continue
			}
			matched = append(matched, e)
			if len(matched) >= f.limit() {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	return matched, nil
}

// CleanupExpired implements Store. Badger expires entries by TTL on its
// own; this pass reclaims value-log space freed by those expiries.
func (s *BadgerStore) CleanupExpired(_ context.Context) (int, error) {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return 0, fmt.Errorf("failed to garbage collect audit store: %w", err)
	}
	return 0, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close audit database: %w", err)
	}
	return nil
}
