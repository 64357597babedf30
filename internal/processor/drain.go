package processor

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"swinglab/internal/analysis"
	"swinglab/internal/logging"
	"swinglab/internal/queue"
	"swinglab/internal/services"
)

// ProcessPending starts a drain pass over the pending jobs. Guarded by a
// single-flight flag: while a pass runs, further calls mark it for a re-run
// and return false. Returns true when a new pass was launched.
func (p *Processor) ProcessPending() bool {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return false
	}
	if p.draining {
		p.rerun = true
		p.mu.Unlock()
		return false
	}
	p.draining = true
	drainCtx, cancel := context.WithCancel(p.runCtx)
	p.cancelDrain = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.drain(drainCtx)

		p.mu.Lock()
		p.draining = false
		p.cancelDrain = nil
		rerun := p.rerun
		p.rerun = false
		running := p.running
		p.mu.Unlock()

		cancel()
		if rerun && running {
			p.ProcessPending()
		}
	}()
	return true
}

// drain runs one pass: the pending ids are snapshotted once at start, so a
// job enqueued mid-pass joins the next one instead of pre-empting this one.
func (p *Processor) drain(ctx context.Context) {
	logger := p.logger.With(logging.String(logging.FieldCorrelationID, uuid.NewString()))
	start := time.Now()

	ids, err := p.store.PendingIDs(ctx)
	if err != nil {
		logger.Error("failed to load pending jobs",
			logging.Error(err),
			logging.String(logging.FieldEventType, "drain_load_failed"),
		)
		return
	}
	if len(ids) == 0 {
		return
	}

	logger.Info("drain started",
		logging.Int("pending", len(ids)),
		logging.String(logging.FieldEventType, "drain_started"),
	)

	processed := 0
	failed := 0
	for i, id := range ids {
		if ctx.Err() != nil {
			logger.Info("drain cancelled",
				logging.String(logging.FieldEventType, "drain_cancelled"),
			)
			return
		}
		if p.connectivity != nil && !p.connectivity.IsConnected() {
			logger.Info("connectivity lost; leaving remaining jobs pending",
				logging.Int("remaining", len(ids)-i),
				logging.String(logging.FieldEventType, "drain_aborted_offline"),
			)
			return
		}

		outcome := p.processJob(ctx, logger, id)
		switch outcome {
		case outcomeCompleted:
			processed++
		case outcomeFailed:
			failed++
			if p.failFast {
				logger.Info("fail-fast enabled; aborting pass after failure",
					logging.Int64(logging.FieldJobID, id),
					logging.String(logging.FieldEventType, "drain_aborted_failfast"),
				)
				p.finishPass(ctx, logger, processed, failed, start)
				return
			}
		case outcomeRolledBack:
			// Connectivity loss or cancellation: the rest of the pass
			// cannot make progress either.
			return
		case outcomeSkipped:
			continue
		}

		// The delay follows every processed job, the final one included.
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interJobDelay):
		}
	}

	p.finishPass(ctx, logger, processed, failed, start)
}

func (p *Processor) finishPass(ctx context.Context, logger *slog.Logger, processed, failed int, start time.Time) {
	logger.Info("drain finished",
		logging.Int("processed", processed),
		logging.Int("failed", failed),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "drain_finished"),
	)
	if processed+failed == 0 {
		return
	}
	if err := p.notifier.NotifyQueueCompleted(ctx, processed, failed, time.Since(start)); err != nil {
		logger.Warn("queue completion notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notify_failed"),
		)
	}
}

type jobOutcome int

const (
	outcomeSkipped jobOutcome = iota
	outcomeCompleted
	outcomeFailed
	outcomeRolledBack
)

func (p *Processor) processJob(ctx context.Context, logger *slog.Logger, id int64) jobOutcome {
	job, err := p.store.GetByID(ctx, id)
	if err != nil {
		logger.Error("failed to load job",
			logging.Int64(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_load_failed"),
		)
		return outcomeSkipped
	}
	if job == nil || job.Status != queue.StatusPending {
		// Removed or retried through the CLI since the snapshot was taken.
		return outcomeSkipped
	}

	jobCtx := services.WithJobID(ctx, id)
	jobLogger := logging.WithContext(jobCtx, logger).With(
		logging.String("source_name", job.SourceName),
	)

	if err := p.store.UpdateStatus(jobCtx, id, queue.StatusUploading, ""); err != nil {
		jobLogger.Error("failed to mark job uploading",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_transition_failed"),
		)
		return outcomeSkipped
	}

	p.mu.Lock()
	p.activeJobID = id
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.activeJobID = 0
		p.mu.Unlock()
	}()

	jobLogger.Info("upload started",
		logging.String("artifact", job.ArtifactPath),
		logging.String(logging.FieldEventType, "upload_started"),
	)

	tracker := &progressTracker{processor: p, ctx: jobCtx, jobID: id, logger: jobLogger}
	result, err := p.analyzer.Analyze(jobCtx, job.ArtifactPath, tracker.observe)
	if err != nil {
		return p.handleJobError(jobCtx, jobLogger, job, err)
	}

	if err := p.store.MarkCompleted(jobCtx, id, string(result.Payload)); err != nil {
		jobLogger.Error("failed to persist analysis result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_persist_failed"),
		)
		return outcomeSkipped
	}

	jobLogger.Info("analysis complete",
		logging.String("analysis_id", result.AnalysisID),
		logging.String(logging.FieldEventType, "analysis_complete"),
	)
	if err := p.notifier.NotifyAnalysisComplete(jobCtx, job.SourceName, ""); err != nil {
		jobLogger.Warn("completion notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notify_failed"),
		)
	}
	return outcomeCompleted
}

// handleJobError decides between rollback and a sticky failure. Cancellation
// and transport errors observed while disconnected roll the job back to
// pending; everything else is recorded as failed with a typed reason.
func (p *Processor) handleJobError(ctx context.Context, logger *slog.Logger, job *queue.Job, analyzeErr error) jobOutcome {
	// The store must stay reachable after cancellation, so rollback uses a
	// fresh context.
	storeCtx := context.WithoutCancel(ctx)

	if errors.Is(analyzeErr, context.Canceled) {
		if _, err := p.store.Rollback(storeCtx, job.ID); err != nil {
			logger.Error("rollback after cancellation failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "rollback_failed"),
			)
		}
		logger.Info("job cancelled; rolled back to pending",
			logging.String(logging.FieldEventType, "job_rolled_back"),
		)
		return outcomeRolledBack
	}

	if analysis.Retriable(analyzeErr) && p.connectivity != nil && !p.connectivity.IsConnected() {
		if _, err := p.store.Rollback(storeCtx, job.ID); err != nil {
			logger.Error("rollback after connectivity loss failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "rollback_failed"),
			)
		}
		logger.Info("connectivity lost mid-call; rolled back to pending",
			logging.String(logging.FieldEventType, "job_rolled_back"),
		)
		return outcomeRolledBack
	}

	message := analyzeErr.Error()
	attrs := []logging.Attr{
		logging.Error(analyzeErr),
		logging.String(logging.FieldEventType, "job_failed"),
	}
	if failure, ok := analysis.AsFailure(analyzeErr); ok {
		attrs = append(attrs, logging.String(logging.FieldFailureKind, string(failure.Kind)))
	}
	logger.Error("analysis failed", logging.Args(attrs...)...)

	if err := p.store.UpdateStatus(storeCtx, job.ID, queue.StatusFailed, message); err != nil {
		logger.Error("failed to persist job failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_persist_failed"),
		)
	}
	if err := p.notifier.NotifyAnalysisFailed(storeCtx, job.SourceName, message); err != nil {
		logger.Warn("failure notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notify_failed"),
		)
	}
	return outcomeFailed
}

// progressTracker persists coarse progress updates: phase changes always,
// upload percent in 10-point steps.
type progressTracker struct {
	processor *Processor
	ctx       context.Context
	jobID     int64
	logger    *slog.Logger

	lastPercent float64
	analyzing   bool
}

func (t *progressTracker) observe(phase analysis.Phase, percent float64) {
	switch phase {
	case analysis.PhaseUploading:
		if percent < 100 && percent-t.lastPercent < 10 {
			return
		}
		t.lastPercent = percent
		if err := t.processor.store.UpdateProgress(t.ctx, t.jobID, percent, "Uploading recording"); err != nil {
			t.warnOnce(err)
		}
	case analysis.PhaseAnalyzing:
		if t.analyzing {
			return
		}
		t.analyzing = true
		if err := t.processor.store.UpdateStatus(t.ctx, t.jobID, queue.StatusAnalyzing, ""); err != nil {
			t.warnOnce(err)
			return
		}
		if err := t.processor.store.UpdateProgress(t.ctx, t.jobID, 100, "Waiting for analysis"); err != nil {
			t.warnOnce(err)
		}
	}
}

func (t *progressTracker) warnOnce(err error) {
	if t.ctx.Err() != nil {
		return
	}
	t.logger.Warn("progress update failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "progress_update_failed"),
	)
}
