/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/ratelimittest"
)

func TestStore(t *testing.T) {
	var mr *miniredis.Miniredis
	suite.Run(t, &ratelimittest.StoreSuite{
		NewStore: func(_ *ratelimittest.ManualClock) ratelimit.Store {
			mr = miniredis.RunT(t)
			s, err := Open(context.Background(), "redis://"+mr.Addr(), Opts{KeyPrefix: "test:"})
			require.NoError(t, err)
			return s
		},
		Advance: func(d time.Duration) {
			mr.FastForward(d)
		},
	})
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), "redis://"+addr, Opts{})
	require.Error(t, err)

	_, err = Open(context.Background(), "not-a-url", Opts{})
	require.Error(t, err)
}

func TestStore_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { require.NoError(t, client.Close()) }()
	s := NewWithOpts(client, Opts{KeyPrefix: "fwlimit:"})
	ctx := context.Background()

	_, err := s.Hit(ctx, "api-60-28333333", 5, 1_700_000_040, time.Minute)
	require.NoError(t, err)

	require.True(t, mr.Exists("fwlimit:api-60-28333333"))
	require.Equal(t, "1", mr.HGet("fwlimit:api-60-28333333", fieldCurrent))
	require.Equal(t, "1700000040", mr.HGet("fwlimit:api-60-28333333", fieldResetTime))
	require.Equal(t, time.Minute, mr.TTL("fwlimit:api-60-28333333"))
}

func TestStore_LimiterEscapesReservedChars(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { require.NoError(t, client.Close()) }()
	s := New(client)

	clock := ratelimittest.NewManualClock(time.Unix(1_700_000_000, 0))
	limiter, err := ratelimit.NewWithOpts(ratelimit.MustPerMinute(5), s, ratelimit.Opts{Clock: clock})
	require.NoError(t, err)

	_, err = limiter.LimitSilently(context.Background(), "user:{42}")
	require.NoError(t, err)

	for _, key := range mr.Keys() {
		require.NotContains(t, key, ":")
		require.NotContains(t, key, "{")
		require.NotContains(t, key, "}")
	}
}

func TestStore_CorruptedEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { require.NoError(t, client.Close()) }()
	s := New(client)

	mr.HSet("k", fieldCurrent, "NaN")
	_, _, err := s.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestStore_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr(), Opts{})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	require.NoError(t, s.Ping(context.Background()))
	mr.Close()
	require.Error(t, s.Ping(context.Background()))
}
