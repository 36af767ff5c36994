/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
)

// Chain applies several limiters to the same identifier,
// e.g. "no more than 5 per minute and no more than 100 per day".
// Limiters of a chain sharing one store must use different key prefixes or intervals.
type Chain []*Limiter

// NewChain creates a new Chain.
func NewChain(limiters ...*Limiter) (Chain, error) {
	if len(limiters) == 0 {
		return nil, fmt.Errorf("chain should contain at least one limiter")
	}
	for i, l := range limiters {
		if l == nil {
			return nil, fmt.Errorf("limiter #%d is nil", i)
		}
	}
	return Chain(limiters), nil
}

// Limit calls Limit of every limiter in order and stops at the first error.
func (c Chain) Limit(ctx context.Context, identifier string) error {
	for _, l := range c {
		if err := l.Limit(ctx, identifier); err != nil {
			return err
		}
	}
	return nil
}

// LimitSilently calls LimitSilently of every limiter in order and returns
// the status of the first limiter whose quota is exceeded, or the status with
// the least remaining attempts if no quota is exceeded.
func (c Chain) LimitSilently(ctx context.Context, identifier string) (Status, error) {
	var result Status
	for i, l := range c {
		status, err := l.LimitSilently(ctx, identifier)
		if err != nil {
			return Status{}, err
		}
		if status.LimitExceeded() {
			return status, nil
		}
		if i == 0 || status.RemainingAttempts() < result.RemainingAttempts() {
			result = status
		}
	}
	return result, nil
}
