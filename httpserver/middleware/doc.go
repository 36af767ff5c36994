/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package middleware contains HTTP middlewares for putting fixed-window rate limits in front of handlers.
//
// RateLimit counts every request against a ratelimit.Limiter (or ratelimit.Chain),
// reports the quota in X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset response headers,
// and rejects requests over the quota with 429 status code, Retry-After header and JSON error body.
// RequestID, Logging, Recovery and HTTPRequestMetrics complete a typical chain.
package middleware
