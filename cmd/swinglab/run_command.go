package main

import (
	"github.com/spf13/cobra"

	"swinglab/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Long:  "Run the swinglab daemon in the foreground, logging to stdout. Useful for debugging; `swinglab start` launches it in the background instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	return cmd
}
