/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package cmd provides the CLI commands of fwlimit.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acronis/go-ratelimit/internal/app"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/ratelimit"
)

// Exit codes.
const (
	ExitCodeOK            = 0
	ExitCodeError         = 1
	ExitCodeLimitExceeded = 2
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the fwlimit command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "fwlimit",
		Short: "Fixed-window rate limiter",
		Long: `fwlimit counts hits of identifiers in fixed time windows
and rejects hits exceeding the configured rate (e.g. 60 per minute).

Configuration is loaded from the YAML or JSON file passed with --config.
Environment variables override configuration values with the FWLIMIT_ prefix.
Example: FWLIMIT_STORE_TYPE=redis FWLIMIT_STORE_REDIS_URL=redis://localhost:6379/0`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the config file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides the log level (error, warn, info, debug)")

	rootCmd.AddCommand(
		newHitCommand(opts),
		newStatusCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	if err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeOK
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		return ExitCodeLimitExceeded
	}
	return ExitCodeError
}

func (o *rootOptions) loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = log.Level(strings.ToLower(o.logLevel))
	}
	return cfg, nil
}

// newLogger creates the configured logger. Commands printing results to stdout
// move logs from stdout to stderr.
func newLogger(cfg *log.Config, keepStdout bool) (log.FieldLogger, log.CloseFunc) {
	if !keepStdout && cfg.Output == log.OutputStdout {
		return log.NewLoggerWithWriter(cfg, os.Stderr)
	}
	return log.NewLogger(cfg)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
