/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-ratelimit/log"
)

// Log field keys used by the Limiter.
const (
	LogFieldKeyIdentifier = "rate_limit_identifier"
	LogFieldKeyStoreKey   = "rate_limit_store_key"
)

// Opts represents options for the Limiter.
type Opts struct {
	// Clock is a source of the current time. SystemClock is used if nil.
	Clock Clock

	// KeyPrefix is prepended to all storage keys.
	// It allows several limiters (e.g. "5 per minute" and "100 per day" for the same identifiers) to share one store.
	KeyPrefix string

	// ReservedKeyChars is a set of characters that cannot be used in storage keys.
	// If empty, the characters announced by the store (see ReservedKeyCharsProvider) are used.
	ReservedKeyChars string

	// KeyEscaper overrides the default escaping of identifiers. ReservedKeyChars is ignored if it's set.
	KeyEscaper KeyEscaper

	// Logger receives exceeded limits (debug level) and store failures (error level). Logging is disabled if nil.
	Logger log.FieldLogger

	// MetricsCollector collects statistics about hits. Metrics are disabled if nil.
	MetricsCollector MetricsCollector
}

// Limiter is a fixed-window rate limiter.
// The Limiter exclusively owns counters in the store (under its key prefix).
type Limiter struct {
	rate         Rate
	store        Store
	atomicStore  AtomicStore
	clock        Clock
	escaper      KeyEscaper
	keyPrefix    string
	keySeparator string
	logger       log.FieldLogger
	metrics      MetricsCollector
}

// New creates a new Limiter with the given rate and store.
func New(rate Rate, store Store) (*Limiter, error) {
	return NewWithOpts(rate, store, Opts{})
}

// NewWithOpts creates a new Limiter with the given rate, store, and options.
func NewWithOpts(rate Rate, store Store, opts Opts) (*Limiter, error) {
	if rate.IsZero() {
		return nil, fmt.Errorf("%w: rate is not initialized", ErrInvalidRate)
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	escaper := opts.KeyEscaper
	if escaper == nil {
		reserved := opts.ReservedKeyChars
		if reserved == "" {
			if rp, ok := store.(ReservedKeyCharsProvider); ok {
				reserved = rp.ReservedKeyChars()
			}
		}
		rcEscaper, err := NewReservedCharsEscaper(reserved)
		if err != nil {
			return nil, err
		}
		escaper = rcEscaper
	}

	keySeparator := defaultKeySeparator
	if rp, ok := escaper.(ReservedKeyCharsProvider); ok {
		reserved := rp.ReservedKeyChars()
		if strings.Contains(reserved, defaultKeySeparator) {
			keySeparator = KeyReplacement
		}
		if reserved != "" && strings.ContainsAny(opts.KeyPrefix, reserved) {
			return nil, &KeyEscapingError{Key: opts.KeyPrefix, Err: fmt.Errorf("key prefix contains reserved characters %q", reserved)}
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = disabledMetrics{}
	}

	l := &Limiter{
		rate:         rate,
		store:        store,
		clock:        clock,
		escaper:      escaper,
		keyPrefix:    opts.KeyPrefix,
		keySeparator: keySeparator,
		logger:       logger,
		metrics:      metrics,
	}
	if as, ok := store.(AtomicStore); ok {
		l.atomicStore = as
	}
	return l, nil
}

// MustNew is a version of New that panics if an error occurs.
func MustNew(rate Rate, store Store) *Limiter {
	l, err := New(rate, store)
	if err != nil {
		panic(err)
	}
	return l
}

// Rate returns the configured rate.
func (l *Limiter) Rate() Rate {
	return l.rate
}

// Limit registers a hit for the identifier and returns *LimitExceededError
// if the identifier has exceeded its quota in the current window.
// Store failures are returned as *StoreError.
func (l *Limiter) Limit(ctx context.Context, identifier string) error {
	status, err := l.LimitSilently(ctx, identifier)
	if err != nil {
		return err
	}
	if status.LimitExceeded() {
		return &LimitExceededError{Identifier: identifier, Rate: l.rate}
	}
	return nil
}

// LimitSilently registers a hit for the identifier and returns its status,
// letting the caller decide how to react to an exceeded limit.
// Only infrastructure failures (*StoreError, *KeyEscapingError) are returned as errors.
func (l *Limiter) LimitSilently(ctx context.Context, identifier string) (Status, error) {
	now := l.clock.Now()
	key, err := l.windowKey(identifier, now)
	if err != nil {
		return Status{}, err
	}

	entry, err := l.hit(ctx, key, now)
	if err != nil {
		l.metrics.IncStoreErrors()
		l.logger.Error("rate limit store failure",
			log.String(LogFieldKeyIdentifier, identifier), log.String(LogFieldKeyStoreKey, key), log.Error(err))
		return Status{}, err
	}

	status := Status{
		Identifier: identifier,
		Current:    entry.Current,
		Limit:      l.rate.Operations(),
		ResetTime:  entry.ResetTime,
	}
	if status.LimitExceeded() {
		l.metrics.IncHits(HitResultExceeded)
		l.logger.Debug("rate limit exceeded",
			log.String(LogFieldKeyIdentifier, identifier), log.Int("limit", status.Limit), log.Int64("reset_time", status.ResetTime))
	} else {
		l.metrics.IncHits(HitResultAllowed)
	}
	return status, nil
}

// Peek returns the status of the identifier in the current window without registering a hit.
// Current is 0 if there were no hits in the window yet.
func (l *Limiter) Peek(ctx context.Context, identifier string) (Status, error) {
	now := l.clock.Now()
	key, err := l.windowKey(identifier, now)
	if err != nil {
		return Status{}, err
	}
	entry, found, err := l.store.Get(ctx, key)
	if err != nil {
		return Status{}, newStoreError("get", key, err)
	}
	if !found {
		entry = Entry{ResetTime: now.Unix() + l.rate.IntervalSeconds()}
	}
	return Status{
		Identifier: identifier,
		Current:    entry.Current,
		Limit:      l.rate.Operations(),
		ResetTime:  entry.ResetTime,
	}, nil
}

func (l *Limiter) hit(ctx context.Context, key string, now time.Time) (Entry, error) {
	resetTime := now.Unix() + l.rate.IntervalSeconds()

	if l.atomicStore != nil {
		entry, err := l.atomicStore.Hit(ctx, key, l.rate.Operations(), resetTime, l.rate.Interval())
		if err != nil {
			return Entry{}, newStoreError("hit", key, err)
		}
		return entry, nil
	}

	// Read-modify-write is not atomic here: two concurrent hits may read the same counter.
	entry, found, err := l.store.Get(ctx, key)
	if err != nil {
		return Entry{}, newStoreError("get", key, err)
	}
	switch {
	case !found:
		entry = Entry{Current: 1, ResetTime: resetTime}
	case entry.Current <= l.rate.Operations():
		entry.Current++
	default:
		return entry, nil // frozen at quota+1 until the window rolls over
	}
	if err = l.store.Set(ctx, key, entry, ttlUntil(entry.ResetTime, now)); err != nil {
		return Entry{}, newStoreError("set", key, err)
	}
	return entry, nil
}

// ttlUntil returns the time left until resetTime, but not less than a second,
// so a store never receives a non-positive ttl.
func ttlUntil(resetTime int64, now time.Time) time.Duration {
	ttl := time.Unix(resetTime, 0).Sub(now)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// IsLimitExceeded reports whether err (or any error it wraps) is a *LimitExceededError
// and returns it.
func IsLimitExceeded(err error) (*LimitExceededError, bool) {
	var limitErr *LimitExceededError
	if errors.As(err, &limitErr) {
		return limitErr, true
	}
	return nil, false
}
