/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimittest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-ratelimit/ratelimit"
)

// StoreSuiteStartTime is the time the suite's clock is set to before each test.
var StoreSuiteStartTime = time.Unix(1_700_000_000, 0)

// StoreSuite is a conformance test suite for ratelimit.Store implementations.
//
//	func TestStore(t *testing.T) {
//		suite.Run(t, &ratelimittest.StoreSuite{
//			NewStore: func(clock *ratelimittest.ManualClock) ratelimit.Store {
//				return mystore.NewWithOpts(mystore.Opts{Clock: clock})
//			},
//		})
//	}
type StoreSuite struct {
	suite.Suite

	// NewStore creates a new empty store. Stores that support clock injection should use the passed clock
	// for evaluating expiration.
	NewStore func(clock *ManualClock) ratelimit.Store

	// Advance is called (if not nil) after the suite's clock is advanced.
	// It allows keeping an external clock (e.g. a test server's one) in sync.
	Advance func(d time.Duration)

	// SkipExpiry disables tests that rely on the clock driving the expiration of entries.
	SkipExpiry bool

	// ConcurrentHits is the number of goroutines used in the concurrency test for atomic stores.
	// Default is 20.
	ConcurrentHits int

	Clock *ManualClock
	Store ratelimit.Store
}

// SetupTest creates a fresh clock and store for every test.
func (s *StoreSuite) SetupTest() {
	s.Clock = NewManualClock(StoreSuiteStartTime)
	s.Store = s.NewStore(s.Clock)
}

// TearDownTest closes the store if it implements io.Closer.
func (s *StoreSuite) TearDownTest() {
	if c, ok := s.Store.(interface{ Close() error }); ok {
		s.NoError(c.Close())
	}
}

func (s *StoreSuite) advance(d time.Duration) {
	s.Clock.Advance(d)
	if s.Advance != nil {
		s.Advance(d)
	}
}

func (s *StoreSuite) resetTime(ttl time.Duration) int64 {
	return s.Clock.Now().Add(ttl).Unix()
}

func (s *StoreSuite) TestGetMissingKey() {
	_, found, err := s.Store.Get(context.Background(), "missing")
	s.Require().NoError(err)
	s.False(found)
}

func (s *StoreSuite) TestSetAndGet() {
	ctx := context.Background()
	entry := ratelimit.Entry{Current: 3, ResetTime: s.resetTime(time.Minute)}
	s.Require().NoError(s.Store.Set(ctx, "user-1:60:1", entry, time.Minute))

	got, found, err := s.Store.Get(ctx, "user-1:60:1")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(entry, got)

	_, found, err = s.Store.Get(ctx, "user-2:60:1")
	s.Require().NoError(err)
	s.False(found)
}

func (s *StoreSuite) TestSetOverwrites() {
	ctx := context.Background()
	resetTime := s.resetTime(time.Minute)
	s.Require().NoError(s.Store.Set(ctx, "k", ratelimit.Entry{Current: 1, ResetTime: resetTime}, time.Minute))
	s.Require().NoError(s.Store.Set(ctx, "k", ratelimit.Entry{Current: 2, ResetTime: resetTime}, time.Minute))

	got, found, err := s.Store.Get(ctx, "k")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(2, got.Current)
	s.Equal(resetTime, got.ResetTime)
}

func (s *StoreSuite) TestEntryExpires() {
	if s.SkipExpiry {
		s.T().Skip("expiration is not driven by the suite clock")
	}
	ctx := context.Background()
	s.Require().NoError(s.Store.Set(ctx, "k", ratelimit.Entry{Current: 1, ResetTime: s.resetTime(10 * time.Second)}, 10*time.Second))

	s.advance(9 * time.Second)
	_, found, err := s.Store.Get(ctx, "k")
	s.Require().NoError(err)
	s.True(found)

	s.advance(2 * time.Second)
	_, found, err = s.Store.Get(ctx, "k")
	s.Require().NoError(err)
	s.False(found)
}

func (s *StoreSuite) atomicStore() ratelimit.AtomicStore {
	as, ok := s.Store.(ratelimit.AtomicStore)
	if !ok {
		s.T().Skip("store does not implement ratelimit.AtomicStore")
	}
	return as
}

func (s *StoreSuite) TestHitCountsAndFreezes() {
	as := s.atomicStore()
	ctx := context.Background()
	const limit = 2
	resetTime := s.resetTime(time.Minute)

	for i, wantCurrent := range []int{1, 2, 3, 3, 3} {
		entry, err := as.Hit(ctx, "k", limit, resetTime+int64(i), time.Minute)
		s.Require().NoError(err)
		s.Equal(wantCurrent, entry.Current, "hit #%d", i+1)
		s.Equal(resetTime, entry.ResetTime, "reset time must be set on the first hit only")
	}

	got, found, err := as.Get(ctx, "k")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(ratelimit.Entry{Current: limit + 1, ResetTime: resetTime}, got)
}

func (s *StoreSuite) TestHitKeysAreIndependent() {
	as := s.atomicStore()
	ctx := context.Background()
	resetTime := s.resetTime(time.Minute)

	for i := 0; i < 3; i++ {
		_, err := as.Hit(ctx, "a", 5, resetTime, time.Minute)
		s.Require().NoError(err)
	}
	entry, err := as.Hit(ctx, "b", 5, resetTime, time.Minute)
	s.Require().NoError(err)
	s.Equal(1, entry.Current)
}

func (s *StoreSuite) TestHitAfterExpiry() {
	if s.SkipExpiry {
		s.T().Skip("expiration is not driven by the suite clock")
	}
	as := s.atomicStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := as.Hit(ctx, "k", 1, s.resetTime(10*time.Second), 10*time.Second)
		s.Require().NoError(err)
	}

	s.advance(11 * time.Second)
	newResetTime := s.resetTime(10 * time.Second)
	entry, err := as.Hit(ctx, "k", 1, newResetTime, 10*time.Second)
	s.Require().NoError(err)
	s.Equal(ratelimit.Entry{Current: 1, ResetTime: newResetTime}, entry)
}

func (s *StoreSuite) TestHitIsAtomic() {
	as := s.atomicStore()
	ctx := context.Background()
	n := s.ConcurrentHits
	if n == 0 {
		n = 20
	}
	resetTime := s.resetTime(time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := as.Hit(ctx, "k", n*2, resetTime, time.Minute); err != nil {
				errs <- fmt.Errorf("hit: %w", err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got, found, err := as.Get(ctx, "k")
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(n, got.Current, "no hit must be lost")
}
