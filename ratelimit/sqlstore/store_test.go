/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/ratelimittest"
)

func fileDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func TestStore(t *testing.T) {
	suite.Run(t, &ratelimittest.StoreSuite{
		NewStore: func(clock *ratelimittest.ManualClock) ratelimit.Store {
			dsn := fileDSN(filepath.Join(t.TempDir(), "counters.db"))
			s, err := Open(context.Background(), dsn, Opts{Clock: clock})
			require.NoError(t, err)
			return s
		},
	})
}

func TestStore_InMemory(t *testing.T) {
	suite.Run(t, &ratelimittest.StoreSuite{
		NewStore: func(clock *ratelimittest.ManualClock) ratelimit.Store {
			s, err := Open(context.Background(), ":memory:", Opts{Clock: clock, TableName: "counters"})
			require.NoError(t, err)
			return s
		},
	})
}

func TestStore_CountersSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dsn := fileDSN(filepath.Join(t.TempDir(), "counters.db"))
	clock := ratelimittest.NewManualClock(time.Unix(1_700_000_000, 0))
	resetTime := clock.Now().Add(time.Minute).Unix()

	s, err := Open(ctx, dsn, Opts{Clock: clock})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.Hit(ctx, "k", 5, resetTime, time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = Open(ctx, dsn, Opts{Clock: clock})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	entry, err := s.Hit(ctx, "k", 5, resetTime+10, time.Minute)
	require.NoError(t, err)
	require.Equal(t, ratelimit.Entry{Current: 4, ResetTime: resetTime}, entry)
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	clock := ratelimittest.NewManualClock(time.Unix(1_700_000_000, 0))
	s, err := Open(ctx, ":memory:", Opts{Clock: clock, PurgeEvery: -1})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	require.NoError(t, s.Set(ctx, "short", ratelimit.Entry{Current: 1, ResetTime: 1_700_000_010}, 10*time.Second))
	require.NoError(t, s.Set(ctx, "long", ratelimit.Entry{Current: 1, ResetTime: 1_700_000_060}, time.Minute))

	clock.Advance(30 * time.Second)
	deleted, err := s.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, found, err := s.Get(ctx, "long")
	require.NoError(t, err)
	require.True(t, found)
}

func TestStore_PurgesOnHits(t *testing.T) {
	ctx := context.Background()
	clock := ratelimittest.NewManualClock(time.Unix(1_700_000_000, 0))
	s, err := Open(ctx, ":memory:", Opts{Clock: clock, PurgeEvery: 2})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	_, err = s.Hit(ctx, "old", 5, 1_700_000_001, time.Second)
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	_, err = s.Hit(ctx, "new", 5, 1_700_000_062, time.Minute) // second hit triggers purging
	require.NoError(t, err)

	var rows int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+DefaultTableName).Scan(&rows))
	require.Equal(t, 1, rows)
}

func TestNewWithOpts_InvalidTableName(t *testing.T) {
	_, err := Open(context.Background(), ":memory:", Opts{TableName: "counters; DROP TABLE x"})
	require.EqualError(t, err, `invalid table name "counters; DROP TABLE x"`)
}

func TestIsBusyError(t *testing.T) {
	require.False(t, IsBusyError(nil))
	require.False(t, IsBusyError(errors.New("some error")))
}

func TestStore_Ping(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", Opts{})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	require.Error(t, s.Ping(context.Background()))
}
