/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package memstore provides an unbounded in-process ratelimit.Store.
//
// The store implements only the plain Get/Set contract, so the Limiter performs
// a read-modify-write on top of it. Concurrent hits for the same identifier may
// therefore be undercounted. Use lrustore when atomic hits are required.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/acronis/go-ratelimit/ratelimit"
)

type item struct {
	entry     ratelimit.Entry
	expiresAt time.Time
}

// Opts represents options for the Store.
type Opts struct {
	// Clock is used to evaluate expiration. ratelimit.SystemClock is used if nil.
	Clock ratelimit.Clock
}

// Store is a map-based store. Expired entries are removed when accessed.
type Store struct {
	clock ratelimit.Clock

	mu    sync.Mutex
	items map[string]item
}

var _ ratelimit.Store = (*Store)(nil)

// New creates a new Store.
func New() *Store {
	return NewWithOpts(Opts{})
}

// NewWithOpts creates a new Store with the given options.
func NewWithOpts(opts Opts) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = ratelimit.SystemClock
	}
	return &Store{clock: clock, items: make(map[string]item)}
}

// Get returns the entry stored under the key.
func (s *Store) Get(_ context.Context, key string) (ratelimit.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok {
		return ratelimit.Entry{}, false, nil
	}
	if !s.clock.Now().Before(it.expiresAt) {
		delete(s.items, key)
		return ratelimit.Entry{}, false, nil
	}
	return it.entry, true, nil
}

// Set stores the entry under the key for ttl.
func (s *Store) Set(_ context.Context, key string, entry ratelimit.Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = item{entry: entry, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, including expired ones that were not accessed since expiration.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
