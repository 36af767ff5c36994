/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides a fixed-window rate limiter.
//
// A Limiter counts hits per identifier (user id, IP address, API key) within
// the current time window of the configured Rate. The window index is
// floor(now / interval), so the counter resets at fixed time boundaries.
// Once the quota is exceeded, the counter is frozen at quota+1 for the rest of
// the window, which makes repeated "exceeded" queries stable.
//
// Counters live in a pluggable Store. Stores that can perform the whole
// read-modify-write in one step implement AtomicStore and the Limiter uses it.
// Ready-to-use stores are provided in subpackages:
//   - memstore: in-process map, no persistence, not atomic (tests, single-threaded tools)
//   - lrustore: bounded in-process store with LRU eviction and Prometheus metrics
//   - throttledstore: adapter for GCRA stores of github.com/throttled/throttled/v2
//   - sqlstore: persistent SQLite-backed store that survives process restarts
//   - redisstore: shared Redis-backed store with an atomic Lua hit
//
// Example:
//
//	rate := ratelimit.MustPerMinute(5)
//	limiter, err := ratelimit.New(rate, memstore.New())
//	if err != nil {
//		return err
//	}
//	if err = limiter.Limit(ctx, clientIP); err != nil {
//		if errors.Is(err, ratelimit.ErrLimitExceeded) {
//			// Reject the request.
//		}
//		return err
//	}
package ratelimit
