package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"swinglab/internal/api"
	"swinglab/internal/ipc"
	"swinglab/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				stringStats := make(map[string]int)
				if client != nil {
					status, err := client.Status()
					if err != nil {
						return err
					}
					stringStats = status.QueueStats
				} else {
					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					for status, count := range stats {
						stringStats[string(status)] = count
					}
				}

				rows := buildQueueStatusRows(stringStats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var jobs []api.QueueJob
				if client != nil {
					resp, err := client.QueueList(listStatuses)
					if err != nil {
						return err
					}
					jobs = resp.Jobs
				} else {
					var statuses []queue.Status
					for _, value := range listStatuses {
						if parsed, ok := queue.ParseStatus(value); ok {
							statuses = append(statuses, parsed)
						}
					}
					items, err := store.ListForDisplay(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					jobs = api.FromJobs(items)
				}

				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Recording", "Status", "Progress", "Created"},
					buildQueueListRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show a single queue entry in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var job api.QueueJob
				if client != nil {
					resp, err := client.QueueDescribe(id)
					if err != nil {
						return err
					}
					job = resp.Job
				} else {
					item, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if item == nil {
						return fmt.Errorf("job %d not found", id)
					}
					job = api.FromJob(item)
				}

				if asJSON {
					return writeJSON(cmd, job)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job #%d\n", job.ID)
				fmt.Fprintf(out, "  Recording: %s\n", job.SourceName)
				fmt.Fprintf(out, "  Artifact:  %s\n", job.ArtifactPath)
				fmt.Fprintf(out, "  Status:    %s\n", job.Status)
				if progress := formatJobProgress(job); progress != "" {
					fmt.Fprintf(out, "  Progress:  %s\n", progress)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "  Error:     %s\n", job.ErrorMessage)
				}
				if len(job.Result) > 0 {
					fmt.Fprintf(out, "  Result:    %s\n", string(job.Result))
				}
				fmt.Fprintf(out, "  Created:   %s\n", job.CreatedAt)
				fmt.Fprintf(out, "  Updated:   %s\n", job.UpdatedAt)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the entry as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue entries and their spooled recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				var removed int64
				var label string
				var err error

				switch {
				case clearCompleted:
					label = "completed jobs"
					if client != nil {
						var resp *ipc.QueueClearCompletedResponse
						resp, err = client.QueueClearCompleted()
						if resp != nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearCompleted(cmd.Context())
					}
				case clearFailed:
					label = "failed jobs"
					if client != nil {
						var resp *ipc.QueueClearFailedResponse
						resp, err = client.QueueClearFailed()
						if resp != nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.ClearFailed(cmd.Context())
					}
				default:
					label = "jobs"
					if client != nil {
						var resp *ipc.QueueClearResponse
						resp, err = client.QueueClear()
						if resp != nil {
							removed = resp.Removed
						}
					} else {
						removed, err = store.Clear(cmd.Context())
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed jobs")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Requeue failed jobs (all of them when no ids are given)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var updated int64
				if client != nil {
					resp, err := client.QueueRetry(ids)
					if err != nil {
						return err
					}
					updated = resp.Updated
				} else {
					updated, err = store.RetryFailed(cmd.Context(), ids...)
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed jobs\n", updated)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <jobID...>",
		Short: "Remove specific queue entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					var removed bool
					if client != nil {
						resp, err := client.QueueRemove(id)
						if err != nil {
							return err
						}
						removed = resp.Removed
					} else {
						result, err := store.Remove(cmd.Context(), id)
						if err != nil {
							return err
						}
						if result.ArtifactErr != nil {
							fmt.Fprintf(out, "Job %d: could not delete spooled recording: %v\n", id, result.ArtifactErr)
						}
						removed = result.Removed
					}
					if removed {
						fmt.Fprintf(out, "Job %d removed\n", id)
					} else {
						fmt.Fprintf(out, "Job %d not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				var health queue.HealthSummary
				if client != nil {
					resp, err := client.QueueHealth()
					if err != nil {
						return err
					}
					health = queue.HealthSummary{
						Total:     resp.Total,
						Pending:   resp.Pending,
						InFlight:  resp.InFlight,
						Completed: resp.Completed,
						Failed:    resp.Failed,
					}
				} else {
					var err error
					health, err = store.Health(cmd.Context())
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nIn flight: %d\nCompleted: %d\nFailed: %d\n",
					health.Total,
					health.Pending,
					health.InFlight,
					health.Completed,
					health.Failed,
				)
				return nil
			})
		},
	}
}
