/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package app wires the fixed-window limiter, its store and the HTTP API of the fwlimit command.
package app

import (
	"context"
	"fmt"

	"github.com/acronis/go-ratelimit/httpserver"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/lrucache"
	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/restapi"
	"github.com/acronis/go-ratelimit/service"
)

// MetricsNamespace is a namespace of Prometheus metrics exported by fwlimit.
const MetricsNamespace = "fwlimit"

// Key prefixes of the counters. Neither is a prefix of the other,
// so counters of identifiers and of ping clients never collide.
const (
	identifierKeyPrefix = "limits."
	pingKeyPrefix       = "ping."
)

// Opts represents options for creating App.
type Opts struct {
	// Clock is used by the limiter and in-process stores. ratelimit.SystemClock is used if nil.
	Clock ratelimit.Clock

	// WithMetrics enables Prometheus metrics of the limiter, the lru store and REST API errors.
	WithMetrics bool
}

// App is a configured limiter over a configured store.
type App struct {
	Limiter *ratelimit.Limiter
	Store   *Store
	Logger  log.FieldLogger

	limiterOpts    ratelimit.Opts // without the identifier key prefix
	withMetrics    bool
	limiterMetrics *ratelimit.PrometheusMetrics
	lruMetrics     *lrucache.PrometheusMetrics
	healthCheck    httpserver.HealthCheck
}

var _ service.MetricsRegisterer = (*App)(nil)

// New creates the store and the limiter described by the configuration.
func New(ctx context.Context, cfg *Config, logger log.FieldLogger, opts Opts) (*App, error) {
	rate, err := cfg.RateLimit.Rate()
	if err != nil {
		return nil, err
	}

	a := &App{Logger: logger, withMetrics: opts.WithMetrics}
	storeOpts := StoreOpts{Clock: opts.Clock, Logger: logger}
	limiterOpts := cfg.RateLimit.LimiterOpts()
	limiterOpts.Clock = opts.Clock
	limiterOpts.Logger = logger
	if opts.WithMetrics {
		a.limiterMetrics = ratelimit.NewPrometheusMetricsWithOpts(ratelimit.PrometheusMetricsOpts{Namespace: MetricsNamespace})
		limiterOpts.MetricsCollector = a.limiterMetrics
		if cfg.Store.Type == StoreTypeLRU {
			a.lruMetrics = lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{Namespace: MetricsNamespace})
			storeOpts.LRUMetrics = a.lruMetrics
		}
	}

	if a.Store, err = NewStore(ctx, cfg.Store, storeOpts); err != nil {
		return nil, err
	}
	identifierLimiterOpts := limiterOpts
	identifierLimiterOpts.KeyPrefix += identifierKeyPrefix
	if a.Limiter, err = ratelimit.NewWithOpts(rate, a.Store.Backend, identifierLimiterOpts); err != nil {
		_ = a.Store.Close()
		return nil, fmt.Errorf("create limiter: %w", err)
	}
	a.limiterOpts = limiterOpts
	a.healthCheck = httpserver.NewHealthCheckFromProbes(
		map[httpserver.HealthCheckComponentName]httpserver.HealthProbe{"store": a.Store.Ping}, logger)

	logger.Debug("rate limiter is created",
		log.String("rate", rate.String()), log.String("store", string(a.Store.Type)))
	return a, nil
}

// Hit registers a hit for the identifier. In strict mode an exceeded limit is returned
// as *ratelimit.LimitExceededError along with the status.
func (a *App) Hit(ctx context.Context, identifier string, strict bool) (ratelimit.Status, error) {
	status, err := a.Limiter.LimitSilently(ctx, identifier)
	if err != nil {
		return ratelimit.Status{}, err
	}
	if strict && status.LimitExceeded() {
		return status, &ratelimit.LimitExceededError{Identifier: identifier, Rate: a.Limiter.Rate()}
	}
	return status, nil
}

// Status returns the state of the identifier in the current window without counting a hit.
func (a *App) Status(ctx context.Context, identifier string) (ratelimit.Status, error) {
	return a.Limiter.Peek(ctx, identifier)
}

// MustRegisterMetrics registers enabled metrics in Prometheus client and panics if any error occurs.
func (a *App) MustRegisterMetrics() {
	if a.withMetrics {
		restapi.MustInitAndRegisterMetrics(MetricsNamespace)
	}
	if a.limiterMetrics != nil {
		a.limiterMetrics.MustRegister()
	}
	if a.lruMetrics != nil {
		a.lruMetrics.MustRegister()
	}
}

// UnregisterMetrics unregisters enabled metrics in Prometheus client.
func (a *App) UnregisterMetrics() {
	if a.withMetrics {
		restapi.UnregisterMetrics()
	}
	if a.limiterMetrics != nil {
		a.limiterMetrics.Unregister()
	}
	if a.lruMetrics != nil {
		a.lruMetrics.Unregister()
	}
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
