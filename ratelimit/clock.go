/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "time"

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

// The ClockFunc type is an adapter to allow the use of ordinary functions as Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
