/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains assertion helpers for HTTP responses, Prometheus counters, errors and listening servers.
package testutil

type tHelper interface {
	Helper()
}
