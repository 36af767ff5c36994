/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"
)

// Preset interval lengths in seconds.
const (
	SecondInterval = 1
	MinuteInterval = 60
	HourInterval   = 60 * MinuteInterval
	DayInterval    = 24 * HourInterval
)

// Rate describes a quota: the maximum number of operations permitted per interval.
// Rate is immutable, use NewRate or presets (PerSecond, PerMinute, PerHour, PerDay) to create it.
type Rate struct {
	operations int
	interval   int64
}

// NewRate creates a custom Rate with the given number of operations per interval (in seconds).
// Both values must be greater than zero.
func NewRate(operations int, intervalSeconds int64) (Rate, error) {
	if operations <= 0 {
		return Rate{}, fmt.Errorf("%w: quota must be greater than zero, got %d", ErrInvalidRate, operations)
	}
	if intervalSeconds <= 0 {
		return Rate{}, fmt.Errorf("%w: seconds interval must be greater than zero, got %d", ErrInvalidRate, intervalSeconds)
	}
	return Rate{operations: operations, interval: intervalSeconds}, nil
}

// MustNewRate is a version of NewRate that panics if an error occurs.
func MustNewRate(operations int, intervalSeconds int64) Rate {
	r, err := NewRate(operations, intervalSeconds)
	if err != nil {
		panic(err)
	}
	return r
}

// PerSecond creates a Rate that permits the given number of operations per second.
func PerSecond(operations int) (Rate, error) {
	return NewRate(operations, SecondInterval)
}

// PerMinute creates a Rate that permits the given number of operations per minute.
func PerMinute(operations int) (Rate, error) {
	return NewRate(operations, MinuteInterval)
}

// PerHour creates a Rate that permits the given number of operations per hour.
func PerHour(operations int) (Rate, error) {
	return NewRate(operations, HourInterval)
}

// PerDay creates a Rate that permits the given number of operations per day.
func PerDay(operations int) (Rate, error) {
	return NewRate(operations, DayInterval)
}

// MustPerSecond is a version of PerSecond that panics if an error occurs.
func MustPerSecond(operations int) Rate {
	return MustNewRate(operations, SecondInterval)
}

// MustPerMinute is a version of PerMinute that panics if an error occurs.
func MustPerMinute(operations int) Rate {
	return MustNewRate(operations, MinuteInterval)
}

// MustPerHour is a version of PerHour that panics if an error occurs.
func MustPerHour(operations int) Rate {
	return MustNewRate(operations, HourInterval)
}

// MustPerDay is a version of PerDay that panics if an error occurs.
func MustPerDay(operations int) Rate {
	return MustNewRate(operations, DayInterval)
}

// Operations returns the maximum number of operations permitted per interval.
func (r Rate) Operations() int {
	return r.operations
}

// IntervalSeconds returns the window length in seconds.
func (r Rate) IntervalSeconds() int64 {
	return r.interval
}

// Interval returns the window length.
func (r Rate) Interval() time.Duration {
	return time.Duration(r.interval) * time.Second
}

// IsZero reports whether r is a zero (not constructed) Rate.
func (r Rate) IsZero() bool {
	return r.operations == 0 && r.interval == 0
}

// String implements fmt.Stringer.
func (r Rate) String() string {
	return fmt.Sprintf("%d per %ds", r.operations, r.interval)
}

// Equal reports whether both rates allow the same number of operations per the same interval.
func (r Rate) Equal(other Rate) bool {
	return r.operations == other.operations && r.interval == other.interval
}
