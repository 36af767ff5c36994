/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component of a service with its own lifecycle (HTTP server, background worker).
type Unit interface {
	// Start runs the unit. It may block for the whole lifetime of the unit.
	// A failure is reported by writing to fatalErr; nothing is written on success,
	// and the channel is not used after Start returns.
	Start(fatalErr chan<- error)

	// Stop halts the unit, cleanly if gracefully is true.
	// It may be called even if Start has failed or has never been called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that expose Prometheus metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
