/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package throttledstore adapts key-value stores of github.com/throttled/throttled/v2
// (throttled.GCRAStoreCtx: in-memory, Redis and others) to ratelimit.AtomicStore.
//
// A GCRA store offers only int64 values with SetIfNotExists and CompareAndSwap,
// so every window counter is kept in two keys:
//   - the counter key holds the expiration time (unix seconds) and the current count packed into one int64,
//     which lets a hit be performed with a single compare-and-swap;
//   - the reset key, suffixed with the expiration time of the counter generation, holds the window reset time.
//     It is written before the counter generation is published, so readers always find it.
//
// Expiration is evaluated with the store's clock; the TTL is also passed to the underlying store,
// which may use it to drop stale keys (the in-memory store ignores it and relies on its LRU bound).
package throttledstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"

	"github.com/acronis/go-ratelimit/ratelimit"
)

const (
	currentBits = 29
	currentMask = 1<<currentBits - 1

	// MaxCurrent is the largest counter value the store can keep.
	MaxCurrent = currentMask

	resetKeySuffix = "#reset#"

	missingValue = -1

	defaultMaxCASAttempts = 1000
)

// ErrTooManyConflicts is returned when a write could not win the compare-and-swap race in a bounded number of attempts.
var ErrTooManyConflicts = errors.New("too many concurrent updates of the same key")

// Opts represents options for the Store.
type Opts struct {
	// Clock is used to evaluate expiration. ratelimit.SystemClock is used if nil.
	Clock ratelimit.Clock

	// MaxCASAttempts bounds the compare-and-swap retry loop. Default is 1000.
	MaxCASAttempts int
}

// Store implements ratelimit.AtomicStore on top of throttled.GCRAStoreCtx.
type Store struct {
	gcraStore      throttled.GCRAStoreCtx
	clock          ratelimit.Clock
	maxCASAttempts int
}

var _ ratelimit.AtomicStore = (*Store)(nil)

// New creates a Store backed by the throttled in-memory store that keeps at most maxKeys keys
// (zero means unbounded). Every counter occupies two keys.
func New(maxKeys int) (*Store, error) {
	gcraStore, err := memstore.NewCtx(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("new in-memory store: %w", err)
	}
	return NewWithOpts(gcraStore, Opts{}), nil
}

// NewWithOpts creates a Store over the given GCRA store.
func NewWithOpts(gcraStore throttled.GCRAStoreCtx, opts Opts) *Store {
	if opts.Clock == nil {
		opts.Clock = ratelimit.SystemClock
	}
	if opts.MaxCASAttempts <= 0 {
		opts.MaxCASAttempts = defaultMaxCASAttempts
	}
	return &Store{gcraStore: gcraStore, clock: opts.Clock, maxCASAttempts: opts.MaxCASAttempts}
}

// Get returns the entry stored under the key.
func (s *Store) Get(ctx context.Context, key string) (ratelimit.Entry, bool, error) {
	packed, _, err := s.gcraStore.GetWithTime(ctx, key)
	if err != nil {
		return ratelimit.Entry{}, false, err
	}
	expiresAt, current := unpack(packed)
	if packed == missingValue || s.expired(expiresAt) {
		return ratelimit.Entry{}, false, nil
	}
	resetTime, err := s.readResetTime(ctx, key, expiresAt)
	if err != nil {
		return ratelimit.Entry{}, false, err
	}
	return ratelimit.Entry{Current: current, ResetTime: resetTime}, true, nil
}

// Set stores the entry under the key for ttl.
func (s *Store) Set(ctx context.Context, key string, entry ratelimit.Entry, ttl time.Duration) error {
	if entry.Current < 0 || entry.Current > MaxCurrent {
		return fmt.Errorf("counter value %d is out of range [0, %d]", entry.Current, MaxCurrent)
	}
	expiresAt := s.expiresAt(ttl)
	if err := s.put(ctx, resetKey(key, expiresAt), entry.ResetTime, ttl); err != nil {
		return err
	}
	return s.put(ctx, key, pack(expiresAt, entry.Current), ttl)
}

// Hit atomically creates or increments the counter stored under the key.
func (s *Store) Hit(ctx context.Context, key string, limit int, resetTime int64, ttl time.Duration) (ratelimit.Entry, error) {
	if limit < 0 || limit >= MaxCurrent {
		return ratelimit.Entry{}, fmt.Errorf("limit %d is out of range [0, %d)", limit, MaxCurrent)
	}
	for attempt := 0; attempt < s.maxCASAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ratelimit.Entry{}, err
		}
		packed, _, err := s.gcraStore.GetWithTime(ctx, key)
		if err != nil {
			return ratelimit.Entry{}, err
		}

		expiresAt, current := unpack(packed)
		if packed == missingValue || s.expired(expiresAt) {
			entry, swapped, err := s.startGeneration(ctx, key, packed, resetTime, ttl)
			if err != nil || swapped {
				return entry, err
			}
			continue
		}

		storedResetTime, err := s.readResetTime(ctx, key, expiresAt)
		if err != nil {
			return ratelimit.Entry{}, err
		}
		if current > limit {
			return ratelimit.Entry{Current: current, ResetTime: storedResetTime}, nil
		}
		swapped, err := s.gcraStore.CompareAndSwapWithTTL(
			ctx, key, packed, pack(expiresAt, current+1), s.ttlUntil(expiresAt))
		if err != nil {
			return ratelimit.Entry{}, err
		}
		if swapped {
			return ratelimit.Entry{Current: current + 1, ResetTime: storedResetTime}, nil
		}
	}
	return ratelimit.Entry{}, ErrTooManyConflicts
}

// startGeneration publishes a fresh counter {1, resetTime} in place of a missing or expired one.
func (s *Store) startGeneration(
	ctx context.Context, key string, old int64, resetTime int64, ttl time.Duration,
) (entry ratelimit.Entry, swapped bool, err error) {
	expiresAt := s.expiresAt(ttl)
	rKey := resetKey(key, expiresAt)
	if _, err = s.gcraStore.SetIfNotExistsWithTTL(ctx, rKey, resetTime, ttl); err != nil {
		return ratelimit.Entry{}, false, err
	}
	// A concurrent creator of the same generation may have won the reset key.
	if resetTime, err = s.readResetTime(ctx, key, expiresAt); err != nil {
		return ratelimit.Entry{}, false, err
	}

	newPacked := pack(expiresAt, 1)
	if old == missingValue {
		swapped, err = s.gcraStore.SetIfNotExistsWithTTL(ctx, key, newPacked, ttl)
	} else {
		swapped, err = s.gcraStore.CompareAndSwapWithTTL(ctx, key, old, newPacked, ttl)
	}
	if err != nil || !swapped {
		return ratelimit.Entry{}, false, err
	}
	return ratelimit.Entry{Current: 1, ResetTime: resetTime}, true, nil
}

// put writes the value unconditionally by means of SetIfNotExists and CompareAndSwap.
func (s *Store) put(ctx context.Context, key string, value int64, ttl time.Duration) error {
	for attempt := 0; attempt < s.maxCASAttempts; attempt++ {
		old, _, err := s.gcraStore.GetWithTime(ctx, key)
		if err != nil {
			return err
		}
		var ok bool
		if old == missingValue {
			ok, err = s.gcraStore.SetIfNotExistsWithTTL(ctx, key, value, ttl)
		} else {
			ok, err = s.gcraStore.CompareAndSwapWithTTL(ctx, key, old, value, ttl)
		}
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrTooManyConflicts
}

func (s *Store) readResetTime(ctx context.Context, key string, expiresAt int64) (int64, error) {
	resetTime, _, err := s.gcraStore.GetWithTime(ctx, resetKey(key, expiresAt))
	if err != nil {
		return 0, err
	}
	if resetTime == missingValue {
		// Evicted by the underlying store. The expiration time is the closest approximation.
		return expiresAt, nil
	}
	return resetTime, nil
}

func (s *Store) expiresAt(ttl time.Duration) int64 {
	deadline := s.clock.Now().Add(ttl)
	expiresAt := deadline.Unix()
	if deadline.After(time.Unix(expiresAt, 0)) {
		expiresAt++ // round up to keep the entry alive for at least ttl
	}
	return expiresAt
}

func (s *Store) expired(expiresAt int64) bool {
	return !s.clock.Now().Before(time.Unix(expiresAt, 0))
}

func (s *Store) ttlUntil(expiresAt int64) time.Duration {
	ttl := time.Unix(expiresAt, 0).Sub(s.clock.Now())
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func resetKey(key string, expiresAt int64) string {
	return key + resetKeySuffix + strconv.FormatInt(expiresAt, 10)
}

func pack(expiresAt int64, current int) int64 {
	return expiresAt<<currentBits | int64(current)
}

func unpack(packed int64) (expiresAt int64, current int) {
	return packed >> currentBits, int(packed & currentMask)
}
