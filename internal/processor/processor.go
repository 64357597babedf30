package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"swinglab/internal/analysis"
	"swinglab/internal/config"
	"swinglab/internal/logging"
	"swinglab/internal/notifications"
	"swinglab/internal/queue"
)

// Analyzer abstracts the remote upload-and-analyze call.
type Analyzer interface {
	Analyze(ctx context.Context, artifactPath string, progress analysis.ProgressFunc) (*analysis.Result, error)
}

// ConnectivityChecker reports the current connectivity level.
type ConnectivityChecker interface {
	IsConnected() bool
}

// Processor owns the run queue. It serializes all remote work through a
// single drain goroutine; the store is the only holder of durable job state.
type Processor struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	analyzer     Analyzer
	notifier     notifications.Service
	connectivity ConnectivityChecker

	interJobDelay time.Duration
	failFast      bool

	mu          sync.Mutex
	running     bool
	draining    bool
	rerun       bool
	activeJobID int64
	cancelDrain context.CancelFunc
	runCtx      context.Context
	cancelRun   context.CancelFunc
	wg          sync.WaitGroup
}

// New constructs a Processor. The analyzer and connectivity checker are
// injected so tests can supply fakes.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, analyzer Analyzer, notifier notifications.Service, conn ConnectivityChecker) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Processor{
		cfg:           cfg,
		store:         store,
		logger:        logger.With(logging.String(logging.FieldComponent, "processor")),
		analyzer:      analyzer,
		notifier:      notifier,
		connectivity:  conn,
		interJobDelay: time.Duration(cfg.Queue.InterJobDelayMillis) * time.Millisecond,
		failFast:      cfg.Queue.FailFast,
	}
}

// Start prepares the processor for drain passes. No drain runs until
// ProcessPending is called.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("processor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.runCtx = runCtx
	p.cancelRun = cancel
	p.running = true
	return nil
}

// Stop cancels any active drain and waits for it to finish. The in-flight
// job, if any, rolls back to pending on the way out.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancelRun
	p.running = false
	p.cancelRun = nil
	p.runCtx = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// CancelAll cancels the in-flight remote call, rolling its job back to
// pending, and stops the current drain pass. Idempotent; a no-op with
// nothing active.
func (p *Processor) CancelAll() {
	p.mu.Lock()
	cancel := p.cancelDrain
	p.rerun = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Active returns the id of the job currently talking to the remote service,
// if any.
func (p *Processor) Active() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeJobID, p.activeJobID != 0
}

// Draining reports whether a drain pass is currently running.
func (p *Processor) Draining() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draining
}
