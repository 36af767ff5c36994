/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrustore provides a size-bounded in-process ratelimit.AtomicStore built on lrucache.
//
// When the store is full, the counter of the least recently hit key is evicted,
// so MaxKeys should be comfortably larger than the number of identifiers active within one window.
package lrustore

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-ratelimit/lrucache"
	"github.com/acronis/go-ratelimit/ratelimit"
)

// DefaultMaxKeys is the default capacity of the store.
const DefaultMaxKeys = 100_000

// Opts represents options for the Store.
type Opts struct {
	// MaxKeys is the maximum number of counters kept in memory. DefaultMaxKeys is used if zero.
	MaxKeys int

	// Clock is used to evaluate expiration. ratelimit.SystemClock is used if nil.
	Clock ratelimit.Clock

	// MetricsCollector collects statistics about cache usage (see lrucache.PrometheusMetrics).
	// Metrics are disabled if nil.
	MetricsCollector lrucache.MetricsCollector
}

// Store keeps window counters in an LRU cache.
type Store struct {
	cache *lrucache.LRUCache[string, ratelimit.Entry]
}

var _ ratelimit.AtomicStore = (*Store)(nil)

// New creates a new Store with the given capacity.
func New(maxKeys int) (*Store, error) {
	return NewWithOpts(Opts{MaxKeys: maxKeys})
}

// NewWithOpts creates a new Store with the given options.
func NewWithOpts(opts Opts) (*Store, error) {
	if opts.MaxKeys == 0 {
		opts.MaxKeys = DefaultMaxKeys
	}
	clock := opts.Clock
	if clock == nil {
		clock = ratelimit.SystemClock
	}
	cache, err := lrucache.NewWithOpts[string, ratelimit.Entry](
		opts.MaxKeys, opts.MetricsCollector, lrucache.Options{Now: clock.Now})
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Get returns the entry stored under the key.
func (s *Store) Get(_ context.Context, key string) (ratelimit.Entry, bool, error) {
	entry, ok := s.cache.Get(key)
	return entry, ok, nil
}

// Set stores the entry under the key for ttl.
func (s *Store) Set(_ context.Context, key string, entry ratelimit.Entry, ttl time.Duration) error {
	s.cache.AddWithTTL(key, entry, ttl)
	return nil
}

// Hit atomically creates or increments the counter stored under the key.
func (s *Store) Hit(_ context.Context, key string, limit int, resetTime int64, ttl time.Duration) (ratelimit.Entry, error) {
	return s.cache.Upsert(key, func(entry ratelimit.Entry, exists bool) ratelimit.Entry {
		if !exists {
			return ratelimit.Entry{Current: 1, ResetTime: resetTime}
		}
		if entry.Current <= limit {
			entry.Current++
		}
		return entry
	}, ttl), nil
}

// Len returns the number of counters in the store.
func (s *Store) Len() int {
	return s.cache.Len()
}
