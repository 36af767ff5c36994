/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"
)

// Store keeps window counters. Implementations must honor ttl:
// an entry disappears (Get reports ok == false) once ttl elapses.
type Store interface {
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// AtomicStore is implemented by stores that can perform a hit as a single atomic operation.
// Hit creates the entry {Current: 1, ResetTime: resetTime} with the given ttl if there is no entry for the key,
// increments Current if it is less than or equal to limit, and leaves the entry unchanged otherwise.
// It returns the resulting entry.
type AtomicStore interface {
	Store
	Hit(ctx context.Context, key string, limit int, resetTime int64, ttl time.Duration) (Entry, error)
}

// ReservedKeyCharsProvider is implemented by stores that reserve some characters for their own key structure.
// The Limiter escapes these characters in identifiers before building storage keys.
type ReservedKeyCharsProvider interface {
	ReservedKeyChars() string
}

// PSR16ReservedKeyChars is a set of characters reserved by PSR-16 compatible caches
// (WordPress transients, object caches and alike).
const PSR16ReservedKeyChars = `{}()/\@:`
