/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttledstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/throttled/throttled/v2/store/memstore"

	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/ratelimittest"
)

func TestStore(t *testing.T) {
	suite.Run(t, &ratelimittest.StoreSuite{
		NewStore: func(clock *ratelimittest.ManualClock) ratelimit.Store {
			gcraStore, err := memstore.NewCtx(0)
			require.NoError(t, err)
			return NewWithOpts(gcraStore, Opts{Clock: clock})
		},
	})
}

func TestNew(t *testing.T) {
	store, err := New(100)
	require.NoError(t, err)

	ctx := context.Background()
	resetTime := time.Now().Add(time.Minute).Unix()
	entry, err := store.Hit(ctx, "k", 3, resetTime, time.Minute)
	require.NoError(t, err)
	require.Equal(t, ratelimit.Entry{Current: 1, ResetTime: resetTime}, entry)
}

func TestPackUnpack(t *testing.T) {
	for _, tt := range []struct {
		expiresAt int64
		current   int
	}{
		{1_700_000_060, 0},
		{1_700_000_060, 1},
		{4_102_444_800, MaxCurrent}, // 2100-01-01
	} {
		expiresAt, current := unpack(pack(tt.expiresAt, tt.current))
		require.Equal(t, tt.expiresAt, expiresAt)
		require.Equal(t, tt.current, current)
	}
}

func TestStore_RejectsOutOfRangeValues(t *testing.T) {
	store, err := New(0)
	require.NoError(t, err)
	ctx := context.Background()

	require.Error(t, store.Set(ctx, "k", ratelimit.Entry{Current: MaxCurrent + 1, ResetTime: 1}, time.Minute))
	_, err = store.Hit(ctx, "k", MaxCurrent, 1, time.Minute)
	require.Error(t, err)
}

func TestStore_ExpiresAtIsRoundedUp(t *testing.T) {
	clock := ratelimittest.NewManualClock(time.Unix(1_700_000_000, 500_000_000))
	gcraStore, err := memstore.NewCtx(0)
	require.NoError(t, err)
	store := NewWithOpts(gcraStore, Opts{Clock: clock})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", ratelimit.Entry{Current: 1, ResetTime: 1_700_000_001}, time.Second))

	clock.Advance(900 * time.Millisecond)
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found, "entry must live at least ttl")
}
