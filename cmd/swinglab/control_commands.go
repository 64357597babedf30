package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"swinglab/internal/ipc"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Ask the daemon to process pending jobs now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Process()
				if err != nil {
					return err
				}
				if resp.Started {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue processing started")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue processing already in progress; pending jobs will be picked up")
				}
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the in-flight job and stop the current drain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel()
				if err != nil {
					return err
				}
				if resp.Cancelled {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled in-flight work; interrupted jobs returned to pending")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to cancel")
				}
				return nil
			})
		},
	}
}
