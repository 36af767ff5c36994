/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-ratelimit/httpserver"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/profserver"
	"github.com/acronis/go-ratelimit/service"
)

// NewPurgeWorker returns a worker removing expired counters from the store.
func NewPurgeWorker(store *Store, logger log.FieldLogger) service.Worker {
	return service.WorkerFunc(func(ctx context.Context) error {
		startTime := time.Now()
		deleted, err := store.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge expired counters: %w", err)
		}
		logger.Info("expired counters are purged",
			log.Int64("deleted", deleted), log.DurationIn(time.Since(startTime), time.Millisecond))
		return nil
	})
}

// NewServerUnit creates the unit serving the HTTP API. Depending on the configuration
// it also purges expired counters of the sql store in background and serves pprof endpoints.
func (a *App) NewServerUnit(cfg *Config) (service.Unit, *httpserver.HTTPServer, error) {
	apiRoutes, err := a.APIRoutes(cfg.Server.RateLimit)
	if err != nil {
		return nil, nil, err
	}
	srv := httpserver.New(cfg.Server, a.Logger, httpserver.Opts{
		APIRoutes:          apiRoutes,
		ErrorDomain:        ErrorDomain,
		HealthCheck:        a.HealthCheck,
		HTTPRequestMetrics: httpserver.HTTPRequestMetricsOpts{Namespace: MetricsNamespace},
	})

	units := []service.Unit{srv}
	purgeInterval := time.Duration(cfg.Store.SQL.PurgeInterval)
	if a.Store.Purgeable() && purgeInterval > 0 {
		purgeLogger := a.Logger.With(log.String("worker", "purge"))
		purgeWorker := service.NewPeriodicWorkerWithOpts(NewPurgeWorker(a.Store, purgeLogger), purgeInterval,
			purgeLogger, service.PeriodicWorkerOpts{InitialDelay: purgeInterval})
		units = append(units, service.NewWorkerUnitWithOpts(purgeWorker, service.WorkerUnitOpts{
			GracefulStopTimeout: time.Duration(cfg.Server.Timeouts.Shutdown),
		}))
	}
	if cfg.ProfServer != nil && cfg.ProfServer.Enabled {
		units = append(units, profserver.New(cfg.ProfServer, a.Logger))
	}
	return service.NewCompositeUnit(units...), srv, nil
}

// Serve runs the HTTP API until ctx is canceled or SIGINT/SIGTERM is received and then shuts down gracefully.
func (a *App) Serve(ctx context.Context, cfg *Config) error {
	unit, _, err := a.NewServerUnit(cfg)
	if err != nil {
		return err
	}
	a.MustRegisterMetrics()
	defer a.UnregisterMetrics()
	return service.New(a.Logger, unit).StartContext(ctx)
}
