/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/memstore"
	"github.com/acronis/go-ratelimit/ratelimit/ratelimittest"
)

func TestNewChain(t *testing.T) {
	_, err := ratelimit.NewChain()
	require.Error(t, err)

	_, err = ratelimit.NewChain(ratelimit.MustNew(ratelimit.MustPerMinute(1), memstore.New()), nil)
	require.EqualError(t, err, "limiter #1 is nil")
}

func TestChain(t *testing.T) {
	clock := ratelimittest.NewManualClock(windowStart)
	store := memstore.NewWithOpts(memstore.Opts{Clock: clock})
	perMinute := newTestLimiter(t, ratelimit.MustPerMinute(2), store, ratelimit.Opts{Clock: clock})
	perHour := newTestLimiter(t, ratelimit.MustPerHour(3), store, ratelimit.Opts{Clock: clock})
	chain, err := ratelimit.NewChain(perMinute, perHour)
	require.NoError(t, err)
	ctx := context.Background()

	status, err := chain.LimitSilently(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, status.Limit, "per-minute limiter has the least remaining attempts")
	require.Equal(t, 1, status.RemainingAttempts())

	require.NoError(t, chain.Limit(ctx, "user-1"))
	err = chain.Limit(ctx, "user-1")
	limitErr, ok := ratelimit.IsLimitExceeded(err)
	require.True(t, ok)
	require.True(t, limitErr.Rate.Equal(ratelimit.MustPerMinute(2)))

	// The per-hour limiter wasn't reached by the rejected call.
	clock.Advance(time.Minute)
	status, err = chain.LimitSilently(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, status.LimitExceeded())
	require.Equal(t, 3, status.Limit)
	require.Equal(t, 0, status.RemainingAttempts())

	err = chain.Limit(ctx, "user-1")
	limitErr, ok = ratelimit.IsLimitExceeded(err)
	require.True(t, ok)
	require.True(t, limitErr.Rate.Equal(ratelimit.MustPerHour(3)))
}
