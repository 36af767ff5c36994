/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides a size-bounded in-memory cache with LRU eviction,
// lazy TTL expiration, atomic upserts and Prometheus metrics.
// It backs the bounded rate limit store (ratelimit/lrustore).
package lrucache
