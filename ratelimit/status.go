/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "time"

// Entry is a counter of hits within one window.
type Entry struct {
	// Current is the number of hits so far in the window. It starts at 1 on the first hit
	// and never grows beyond the quota plus one.
	Current int

	// ResetTime is the unix time (in seconds) when the window ends (first hit time + interval).
	// Persistent stores use it as the expiration time of the entry.
	ResetTime int64
}

// ResetAt returns ResetTime as time.Time.
func (e Entry) ResetAt() time.Time {
	return time.Unix(e.ResetTime, 0)
}

// Status describes the state of an identifier after a hit.
type Status struct {
	Identifier string `json:"identifier"`
	Current    int    `json:"current"`
	Limit      int    `json:"limit"`
	ResetTime  int64  `json:"resetTime"`
}

// LimitExceeded reports whether the identifier is over its quota in the current window.
func (s Status) LimitExceeded() bool {
	return s.Current > s.Limit
}

// RemainingAttempts returns how many hits are still permitted in the current window.
func (s Status) RemainingAttempts() int {
	if remaining := s.Limit - s.Current; remaining > 0 {
		return remaining
	}
	return 0
}

// ResetAt returns ResetTime as time.Time.
func (s Status) ResetAt() time.Time {
	return time.Unix(s.ResetTime, 0)
}
