/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimittest

import (
	"sync"
	"time"

	"github.com/acronis/go-ratelimit/ratelimit"
)

// ManualClock is a ratelimit.Clock that moves only when told to.
// It's safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ ratelimit.Clock = (*ManualClock)(nil)

// NewManualClock creates a new ManualClock set to the given time.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

// Now implements ratelimit.Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set sets the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
