/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimittest provides utilities for testing code that uses the ratelimit package:
// a manually driven clock and a conformance test suite for ratelimit.Store implementations.
package ratelimittest
