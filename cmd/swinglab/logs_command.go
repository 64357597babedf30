package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"swinglab/internal/ipc"
	"swinglab/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow bool
		lines  int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			client, err := ctx.dialClient()
			if err != nil {
				// Daemon down. Read the log file directly.
				return tailLocalLog(cmd, ctx, lines)
			}
			defer client.Close()

			offset := int64(-1)
			limit := lines
			for {
				resp, err := client.LogTail(ipc.LogTailRequest{
					Offset:     offset,
					Limit:      limit,
					Follow:     follow,
					WaitMillis: 2000,
				})
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(stdout, line)
				}
				if !follow {
					return nil
				}
				offset = resp.Offset
				limit = 0
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				default:
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 40, "Number of trailing lines to show")
	return cmd
}

func tailLocalLog(cmd *cobra.Command, ctx *commandContext, lines int) error {
	cfg := ctx.configValue()
	if cfg == nil {
		return fmt.Errorf("daemon is not running and no configuration is available")
	}
	path := filepath.Join(cfg.Paths.LogDir, "swinglab.log")
	result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
	if err != nil {
		return err
	}
	if len(result.Lines) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No log output yet")
		return nil
	}
	for _, line := range result.Lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
