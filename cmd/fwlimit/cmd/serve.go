/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/acronis/go-ratelimit/internal/app"
	"github.com/acronis/go-ratelimit/internal/libinfo"
	"github.com/acronis/go-ratelimit/log"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the limiter over HTTP",
		Long: `Serve the limiter over HTTP until SIGINT or SIGTERM is received.

  POST /api/v1/limits/{identifier}   register a hit (429 if the limit is exceeded)
  GET  /api/v1/limits/{identifier}   status without counting
  GET  /api/v1/ping                  rate limited per client
  GET  /healthz                      store availability
  GET  /metrics                      Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLogger := newLogger(cfg.Log, true)
			defer closeLogger()

			logger.Info("starting fwlimit", log.String("version", libinfo.GetLibVersion()))
			a, err := app.New(cmd.Context(), cfg, logger, app.Opts{WithMetrics: true})
			if err != nil {
				logger.Error("failed to create rate limiter", log.Error(err))
				return err
			}
			defer func() {
				if closeErr := a.Close(); closeErr != nil {
					logger.Error("failed to close rate limit store", log.Error(closeErr))
				}
			}()
			return a.Serve(cmd.Context(), cfg)
		},
	}
}
