/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/acronis/go-ratelimit/internal/app"
	"github.com/acronis/go-ratelimit/ratelimit"
)

type limitOptions struct {
	*rootOptions
	serverURL string
}

// limitsAPI hides whether the local store or a running server is used.
type limitsAPI interface {
	// hit registers a hit. In strict mode an exceeded limit is returned as *ratelimit.LimitExceededError
	// along with the status.
	hit(ctx context.Context, identifier string, strict bool) (app.StatusResponse, error)
	status(ctx context.Context, identifier string) (app.StatusResponse, error)
}

type localAPI struct{ a *app.App }

func (l localAPI) hit(ctx context.Context, identifier string, strict bool) (app.StatusResponse, error) {
	status, err := l.a.Hit(ctx, identifier, strict)
	return app.NewStatusResponse(status, l.a.Limiter.Rate()), err
}

func (l localAPI) status(ctx context.Context, identifier string) (app.StatusResponse, error) {
	status, err := l.a.Status(ctx, identifier)
	return app.NewStatusResponse(status, l.a.Limiter.Rate()), err
}

type remoteAPI struct{ c *app.Client }

func (r remoteAPI) hit(ctx context.Context, identifier string, strict bool) (app.StatusResponse, error) {
	status, err := r.c.Hit(ctx, identifier)
	if err != nil || !strict || !status.LimitExceeded {
		return status, err
	}
	// The rate is unknown only if the server didn't report the interval.
	rate, _ := status.Rate()
	return status, &ratelimit.LimitExceededError{Identifier: identifier, Rate: rate}
}

func (r remoteAPI) status(ctx context.Context, identifier string) (app.StatusResponse, error) {
	return r.c.Status(ctx, identifier)
}

// withLimitsAPI loads the configuration and calls fn with the API of the local store
// or of the server if --server is set.
func (o *limitOptions) withLimitsAPI(cmd *cobra.Command, fn func(api limitsAPI) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, closeLogger := newLogger(cfg.Log, false)
	defer closeLogger()

	if o.serverURL != "" {
		client, err := app.NewClient(o.serverURL, cfg.Client, logger)
		if err != nil {
			return err
		}
		return fn(remoteAPI{client})
	}
	a, err := app.New(cmd.Context(), cfg, logger, app.Opts{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(localAPI{a})
}

func newHitCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &limitOptions{rootOptions: rootOpts}
	var strict bool
	cmd := &cobra.Command{
		Use:   "hit <identifier>",
		Short: "Register a hit for the identifier and print its status",
		Long: `Register a hit for the identifier and print its status as JSON.
With --strict the command exits with code 2 if the limit is exceeded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLimitsAPI(cmd, func(api limitsAPI) error {
				status, err := api.hit(cmd.Context(), args[0], strict)
				if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
					return err
				}
				if printErr := printJSON(cmd.OutOrStdout(), status); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with code 2 if the limit is exceeded")
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "URL of a running \"fwlimit serve\" (the local store is used if empty)")
	return cmd
}
