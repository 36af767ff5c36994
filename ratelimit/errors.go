/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check the kind of error returned by the package.
var (
	// ErrInvalidRate is returned when a Rate is constructed with non-positive operations or interval.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrLimitExceeded is matched by *LimitExceededError.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrKeyEscapingFailed is matched by *KeyEscapingError.
	ErrKeyEscapingFailed = errors.New("key escaping failed")

	// ErrStore is matched by *StoreError.
	ErrStore = errors.New("rate limit store error")
)

// LimitExceededError is returned by Limiter.Limit when the identifier has exceeded its quota
// in the current window.
type LimitExceededError struct {
	Identifier string
	Rate       Rate
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit has been exceeded for identifier %q", e.Identifier)
}

// Is makes errors.Is(err, ErrLimitExceeded) work.
func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// KeyEscapingError is returned when an identifier cannot be turned into a storage key.
type KeyEscapingError struct {
	Key string
	Err error
}

func (e *KeyEscapingError) Error() string {
	return fmt.Sprintf("error escaping key %q: %v", e.Key, e.Err)
}

func (e *KeyEscapingError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrKeyEscapingFailed) work.
func (e *KeyEscapingError) Is(target error) bool {
	return target == ErrKeyEscapingFailed
}

// StoreError is returned when the backing store fails (unavailable, I/O or serialization error).
// It is never returned for quota reasons.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %q in rate limit store: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStore) work.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func newStoreError(op, key string, err error) error {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Key: key, Err: err}
}
