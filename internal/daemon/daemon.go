package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"swinglab/internal/config"
	"swinglab/internal/connectivity"
	"swinglab/internal/logging"
	"swinglab/internal/notifications"
	"swinglab/internal/preflight"
	"swinglab/internal/processor"
	"swinglab/internal/queue"
)

var recordingExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".avi": {},
	".mkv": {},
}

// Daemon coordinates the queue services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	processor *processor.Processor
	monitor   *connectivity.Monitor
	notifier  notifications.Service
	logPath   string

	lockPath string
	lock     *flock.Flock

	running     atomic.Bool
	cancel      context.CancelFunc
	unsubscribe func()
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Connected    bool
	Draining     bool
	ActiveJobID  int64
	QueueStats   map[queue.Status]int
	QueueDBPath  string
	LockFilePath string
	PID          int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, proc *processor.Processor, monitor *connectivity.Monitor, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || proc == nil || monitor == nil {
		return nil, errors.New("daemon requires config, store, processor, and connectivity monitor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "swinglabd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:     store,
		processor: proc,
		monitor:   monitor,
		notifier:  notifier,
		logPath:   filepath.Join(cfg.Paths.LogDir, "swinglab.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers persisted state, and wires the
// connectivity edges to the processor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another swinglab daemon instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg)
	for _, result := range results {
		if result.Passed {
			continue
		}
		if strings.HasSuffix(result.Name, "directory") {
			_ = d.lock.Unlock()
			return fmt.Errorf("preflight: %s: %s", result.Name, result.Detail)
		}
		// The analysis service being down is the queue's normal operating
		// condition, not a startup failure.
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)

	// No remote operation can have survived a restart.
	reset, err := d.store.ResetInFlight(runCtx)
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("reset in-flight jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Info("recovered interrupted jobs",
			logging.Int64("reset", reset),
			logging.String(logging.FieldEventType, "jobs_recovered"),
		)
	}

	if err := d.processor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start processor: %w", err)
	}

	d.unsubscribe = d.monitor.Subscribe(func(connected bool) {
		if !connected {
			d.processor.CancelAll()
		}
	})
	d.monitor.OnRestored(func() {
		d.onRestored(runCtx)
	})

	if err := d.monitor.Start(runCtx); err != nil {
		d.processor.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("swinglab daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) onRestored(ctx context.Context) {
	pending, err := d.store.PendingIDs(ctx)
	if err != nil {
		d.logger.Warn("failed to count pending jobs", logging.Error(err))
	}
	if err := d.notifier.NotifyConnectivityRestored(ctx, len(pending)); err != nil {
		d.logger.Warn("connectivity notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notify_failed"),
		)
	}
	d.processor.ProcessPending()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.monitor.Stop()
	d.processor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("swinglab daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Enqueue spools a recording and queues it for analysis.
func (d *Daemon) Enqueue(ctx context.Context, sourcePath string) (*queue.Job, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := recordingExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}
	return d.processor.Enqueue(ctx, absPath)
}

// ListQueue returns queue jobs filtered by optional statuses, newest first.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.store.ListForDisplay(ctx, statuses...)
}

// GetJob fetches a single job by id.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*queue.Job, error) {
	return d.store.GetByID(ctx, id)
}

// ClearQueue removes all queue jobs.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed jobs.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// RetryFailed resets failed jobs back to pending and kicks a drain.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.processor.RetryFailed(ctx, ids...)
}

// RemoveJob deletes a job record and its spooled artifact.
func (d *Daemon) RemoveJob(ctx context.Context, id int64) (bool, error) {
	result, err := d.store.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if result.ArtifactErr != nil {
		d.logger.Warn("artifact removal failed",
			logging.Int64(logging.FieldJobID, id),
			logging.Error(result.ArtifactErr),
			logging.String(logging.FieldEventType, "artifact_remove_failed"),
		)
	}
	return result.Removed, nil
}

// CancelAll cancels the in-flight job and current drain pass.
func (d *Daemon) CancelAll() {
	d.processor.CancelAll()
}

// ProcessPending kicks a drain pass manually.
func (d *Daemon) ProcessPending() bool {
	return d.processor.ProcessPending()
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	activeID, _ := d.processor.Active()
	return Status{
		Running:      d.running.Load(),
		Connected:    d.monitor.IsConnected(),
		Draining:     d.processor.Draining(),
		ActiveJobID:  activeID,
		QueueStats:   stats,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		PID:          os.Getpid(),
	}
}
