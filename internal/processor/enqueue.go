package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"swinglab/internal/fileutil"
	"swinglab/internal/logging"
	"swinglab/internal/queue"
)

// Enqueue copies a recording into the spool directory and creates a pending
// job for it. When connected and idle, the drain starts immediately;
// otherwise the job waits for the next connectivity edge.
func (p *Processor) Enqueue(ctx context.Context, sourcePath string) (*queue.Job, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("recording %s is not a regular file", sourcePath)
	}

	spoolPath := filepath.Join(p.cfg.Paths.SpoolDir, uuid.NewString()+filepath.Ext(sourcePath))
	if err := fileutil.CopyFileVerified(sourcePath, spoolPath); err != nil {
		return nil, fmt.Errorf("spool recording: %w", err)
	}

	job, err := p.store.NewJob(ctx, spoolPath, filepath.Base(sourcePath))
	if err != nil {
		_ = os.Remove(spoolPath)
		return nil, err
	}

	p.logger.Info("recording enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("source_name", job.SourceName),
		logging.String("artifact", spoolPath),
		logging.String(logging.FieldEventType, "job_enqueued"),
	)

	if p.connectivity == nil || p.connectivity.IsConnected() {
		p.ProcessPending()
	}
	return job, nil
}

// RetryFailed resets failed jobs to pending and kicks a drain when possible.
func (p *Processor) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	count, err := p.store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if count > 0 && (p.connectivity == nil || p.connectivity.IsConnected()) {
		p.ProcessPending()
	}
	return count, nil
}

// Store exposes the backing job store for status surfaces.
func (p *Processor) Store() *queue.Store {
	return p.store
}
