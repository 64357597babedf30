package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"swinglab/internal/fileutil"
	"swinglab/internal/ipc"
	"swinglab/internal/queue"
)

var recordingExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".avi": {},
	".mkv": {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path...>",
		Short: "Queue swing recordings for upload and analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				absPath, err := filepath.Abs(strings.TrimSpace(arg))
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				info, err := os.Stat(absPath)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("recording does not exist: %s", absPath)
					}
					return fmt.Errorf("inspect recording: %w", err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", absPath)
				}
				ext := strings.ToLower(filepath.Ext(info.Name()))
				if _, ok := recordingExtensions[ext]; !ok {
					return fmt.Errorf("unsupported recording extension %q", ext)
				}
				paths = append(paths, absPath)
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, path := range paths {
					if client != nil {
						resp, err := client.Enqueue(path)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Queued %s as job #%d\n", filepath.Base(path), resp.Job.ID)
						continue
					}

					job, err := spoolDirectly(cmd, ctx, store, path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Queued %s as job #%d (daemon not running; upload starts with the daemon)\n",
						filepath.Base(path), job.ID)
				}
				return nil
			})
		},
	}
}

// spoolDirectly copies the recording into the spool directory and inserts a
// pending job without the daemon.
func spoolDirectly(cmd *cobra.Command, ctx *commandContext, store *queue.Store, sourcePath string) (*queue.Job, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}

	spoolPath := filepath.Join(cfg.Paths.SpoolDir, uuid.NewString()+filepath.Ext(sourcePath))
	if err := fileutil.CopyFileVerified(sourcePath, spoolPath); err != nil {
		return nil, fmt.Errorf("spool recording: %w", err)
	}

	job, err := store.NewJob(cmd.Context(), spoolPath, filepath.Base(sourcePath))
	if err != nil {
		_ = os.Remove(spoolPath)
		return nil, err
	}
	return job, nil
}
