/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cmd

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &limitOptions{rootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "status <identifier>",
		Short: "Print the status of the identifier without counting a hit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLimitsAPI(cmd, func(api limitsAPI) error {
				status, err := api.status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	}
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "URL of a running \"fwlimit serve\" (the local store is used if empty)")
	return cmd
}
