package processor_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"swinglab/internal/analysis"
	"swinglab/internal/config"
	"swinglab/internal/processor"
	"swinglab/internal/queue"
	"swinglab/internal/testsupport"
)

type fakeConnectivity struct {
	connected atomic.Bool
}

func (c *fakeConnectivity) set(connected bool) {
	c.connected.Store(connected)
}

func (c *fakeConnectivity) IsConnected() bool {
	return c.connected.Load()
}

type callBehavior struct {
	// gate, when non-nil, holds the call open until closed.
	gate    chan struct{}
	err     error
	payload string
}

type fakeAnalyzer struct {
	mu        sync.Mutex
	behaviors map[string]*callBehavior
	calls     []string

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{behaviors: make(map[string]*callBehavior)}
}

func (a *fakeAnalyzer) on(artifactPath string, behavior *callBehavior) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.behaviors[artifactPath] = behavior
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *fakeAnalyzer) callOrder() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, artifactPath string, progress analysis.ProgressFunc) (*analysis.Result, error) {
	current := a.active.Add(1)
	defer a.active.Add(-1)
	for {
		max := a.maxActive.Load()
		if current <= max || a.maxActive.CompareAndSwap(max, current) {
			break
		}
	}

	a.mu.Lock()
	a.calls = append(a.calls, artifactPath)
	behavior := a.behaviors[artifactPath]
	a.mu.Unlock()

	if progress != nil {
		progress(analysis.PhaseUploading, 50)
	}

	if behavior != nil && behavior.gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-behavior.gate:
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if behavior != nil && behavior.err != nil {
		return nil, behavior.err
	}

	if progress != nil {
		progress(analysis.PhaseAnalyzing, -1)
	}
	payload := `{"score":80}`
	if behavior != nil && behavior.payload != "" {
		payload = behavior.payload
	}
	return &analysis.Result{AnalysisID: "an-" + filepath.Base(artifactPath), Payload: []byte(payload)}, nil
}

type fixture struct {
	cfg       *config.Config
	store     *queue.Store
	analyzer  *fakeAnalyzer
	conn      *fakeConnectivity
	processor *processor.Processor
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	opts = append([]testsupport.ConfigOption{func(cfg *config.Config) {
		cfg.Queue.InterJobDelayMillis = 1
	}}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)

	analyzer := newFakeAnalyzer()
	conn := &fakeConnectivity{}
	conn.set(true)

	proc := processor.New(cfg, store, nil, analyzer, noopNotifier{}, conn)
	if err := proc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(proc.Stop)

	return &fixture{cfg: cfg, store: store, analyzer: analyzer, conn: conn, processor: proc}
}

type noopNotifier struct{}

func (noopNotifier) NotifyAnalysisComplete(context.Context, string, string) error        { return nil }
func (noopNotifier) NotifyAnalysisFailed(context.Context, string, string) error          { return nil }
func (noopNotifier) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopNotifier) NotifyConnectivityRestored(context.Context, int) error               { return nil }
func (noopNotifier) NotifyError(context.Context, error, string) error                    { return nil }
func (noopNotifier) TestNotification(context.Context) error                              { return nil }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func (f *fixture) seedJob(t *testing.T, name string) *queue.Job {
	t.Helper()
	return testsupport.NewJob(t, f.store, "/tmp/"+name, name)
}

func (f *fixture) jobStatus(t *testing.T, id int64) queue.Status {
	t.Helper()
	job, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job == nil {
		t.Fatalf("job %d disappeared", id)
	}
	return job.Status
}

func TestDisconnectedJobsStayPending(t *testing.T) {
	f := newFixture(t)
	f.conn.set(false)

	a := f.seedJob(t, "a.mp4")
	b := f.seedJob(t, "b.mp4")

	f.processor.ProcessPending()
	waitFor(t, 2*time.Second, func() bool { return !f.processor.Draining() })

	time.Sleep(50 * time.Millisecond)
	if f.analyzer.callCount() != 0 {
		t.Fatalf("expected no remote calls while disconnected, got %d", f.analyzer.callCount())
	}
	if f.jobStatus(t, a.ID) != queue.StatusPending || f.jobStatus(t, b.ID) != queue.StatusPending {
		t.Fatal("expected all jobs to remain pending while disconnected")
	}
}

func TestDrainContinuesPastRemoteFailure(t *testing.T) {
	f := newFixture(t)

	a := f.seedJob(t, "a.mp4")
	b := f.seedJob(t, "b.mp4")
	c := f.seedJob(t, "c.mp4")
	f.analyzer.on("/tmp/b.mp4", &callBehavior{
		err: &analysis.Failure{Kind: analysis.FailureServerError, StatusCode: 500, Message: "analysis backend crashed"},
	})

	f.processor.ProcessPending()
	waitFor(t, 5*time.Second, func() bool {
		return f.jobStatus(t, c.ID) == queue.StatusCompleted
	})

	if got := f.jobStatus(t, a.ID); got != queue.StatusCompleted {
		t.Fatalf("expected A completed, got %s", got)
	}
	if got := f.jobStatus(t, b.ID); got != queue.StatusFailed {
		t.Fatalf("expected B failed, got %s", got)
	}

	order := f.analyzer.callOrder()
	want := []string{"/tmp/a.mp4", "/tmp/b.mp4", "/tmp/c.mp4"}
	if len(order) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected FIFO order %v, got %v", want, order)
		}
	}

	failedJob, err := f.store.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !strings.Contains(failedJob.ErrorMessage, "analysis backend crashed") {
		t.Fatalf("expected failure reason recorded, got %q", failedJob.ErrorMessage)
	}
}

func TestDrainDelaysAfterFinalJob(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Queue.InterJobDelayMillis = 150
	})
	job := f.seedJob(t, "tempo-check.mp4")

	start := time.Now()
	if !f.processor.ProcessPending() {
		t.Fatal("expected drain to start")
	}
	waitFor(t, 5*time.Second, func() bool { return !f.processor.Draining() })

	if got := f.jobStatus(t, job.ID); got != queue.StatusCompleted {
		t.Fatalf("expected completed job, got %s", got)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("pass finished after %v; want the inter-job delay to follow the last job", elapsed)
	}
}

func TestRemoteFailureStaysFailedUntilExplicitRetry(t *testing.T) {
	f := newFixture(t)

	a := f.seedJob(t, "a.mp4")
	f.analyzer.on("/tmp/a.mp4", &callBehavior{
		err: &analysis.Failure{Kind: analysis.FailureContentInvalid, Message: "no swing detected"},
	})

	f.processor.ProcessPending()
	waitFor(t, 5*time.Second, func() bool { return f.jobStatus(t, a.ID) == queue.StatusFailed })

	// A second drain does not touch failed jobs.
	f.processor.ProcessPending()
	waitFor(t, 2*time.Second, func() bool { return !f.processor.Draining() })
	if f.analyzer.callCount() != 1 {
		t.Fatalf("expected failed job not retried automatically, got %d calls", f.analyzer.callCount())
	}

	// Explicit retry resets it and reprocesses.
	f.analyzer.on("/tmp/a.mp4", &callBehavior{})
	count, err := f.processor.RetryFailed(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reset, got %d", count)
	}
	waitFor(t, 5*time.Second, func() bool { return f.jobStatus(t, a.ID) == queue.StatusCompleted })
}

func TestConnectivityLossMidUploadRollsBackAndResumes(t *testing.T) {
	f := newFixture(t)

	a := f.seedJob(t, "a.mp4")
	b := f.seedJob(t, "b.mp4")

	gate := make(chan struct{})
	f.analyzer.on("/tmp/a.mp4", &callBehavior{
		gate: gate,
		err:  &analysis.Failure{Kind: analysis.FailureNetwork, Message: "connection reset"},
	})

	f.processor.ProcessPending()
	waitFor(t, 2*time.Second, func() bool { return f.jobStatus(t, a.ID) == queue.StatusUploading })

	// Connection drops while A's upload is in flight.
	f.conn.set(false)
	close(gate)

	waitFor(t, 2*time.Second, func() bool { return f.jobStatus(t, a.ID) == queue.StatusPending })
	waitFor(t, 2*time.Second, func() bool { return !f.processor.Draining() })
	if got := f.jobStatus(t, b.ID); got != queue.StatusPending {
		t.Fatalf("expected B untouched, got %s", got)
	}
	if f.analyzer.callCount() != 1 {
		t.Fatalf("expected drain aborted after rollback, got %d calls", f.analyzer.callCount())
	}

	// On restore the drain resumes A then B.
	f.analyzer.on("/tmp/a.mp4", &callBehavior{})
	f.conn.set(true)
	f.processor.ProcessPending()

	waitFor(t, 5*time.Second, func() bool {
		return f.jobStatus(t, a.ID) == queue.StatusCompleted && f.jobStatus(t, b.ID) == queue.StatusCompleted
	})
	order := f.analyzer.callOrder()
	if len(order) != 3 || order[1] != "/tmp/a.mp4" || order[2] != "/tmp/b.mp4" {
		t.Fatalf("expected resume order A then B, got %v", order)
	}
}

func TestCancelAllRollsBackActiveJobAndResumesFIFO(t *testing.T) {
	f := newFixture(t)

	a := f.seedJob(t, "a.mp4")
	b := f.seedJob(t, "b.mp4")

	gate := make(chan struct{})
	f.analyzer.on("/tmp/a.mp4", &callBehavior{gate: gate})

	f.processor.ProcessPending()
	waitFor(t, 2*time.Second, func() bool {
		_, active := f.processor.Active()
		return active
	})

	f.processor.CancelAll()
	// Idempotent with a pass already cancelled.
	f.processor.CancelAll()

	waitFor(t, 2*time.Second, func() bool { return !f.processor.Draining() })
	if got := f.jobStatus(t, a.ID); got != queue.StatusPending {
		t.Fatalf("expected cancelled job rolled back to pending, got %s", got)
	}
	if got := f.jobStatus(t, b.ID); got != queue.StatusPending {
		t.Fatalf("expected B untouched, got %s", got)
	}

	f.analyzer.on("/tmp/a.mp4", &callBehavior{})
	f.processor.ProcessPending()
	waitFor(t, 5*time.Second, func() bool {
		return f.jobStatus(t, a.ID) == queue.StatusCompleted && f.jobStatus(t, b.ID) == queue.StatusCompleted
	})

	order := f.analyzer.callOrder()
	if len(order) != 3 || order[1] != "/tmp/a.mp4" || order[2] != "/tmp/b.mp4" {
		t.Fatalf("expected resume in FIFO order, got %v", order)
	}
}

func TestCancelAllWithNothingActiveIsNoop(t *testing.T) {
	f := newFixture(t)
	f.processor.CancelAll()
	f.processor.CancelAll()
}

func TestConcurrentProcessPendingRunsSingleDrain(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 4; i++ {
		f.seedJob(t, "job-"+strings.Repeat("x", i+1)+".mp4")
	}

	gate := make(chan struct{})
	f.analyzer.on("/tmp/job-x.mp4", &callBehavior{gate: gate})

	started := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.processor.ProcessPending() {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Fatalf("expected exactly one drain launched, got %d", started)
	}

	close(gate)
	waitFor(t, 5*time.Second, func() bool {
		health, err := f.store.Health(context.Background())
		if err != nil {
			t.Fatalf("Health failed: %v", err)
		}
		return health.Completed == 4
	})

	if max := f.analyzer.maxActive.Load(); max != 1 {
		t.Fatalf("expected at most one in-flight call, observed %d", max)
	}
}

func TestFailFastAbortsPassAfterFirstFailure(t *testing.T) {
	f := newFixture(t, testsupport.WithFailFast())

	a := f.seedJob(t, "a.mp4")
	b := f.seedJob(t, "b.mp4")
	f.analyzer.on("/tmp/a.mp4", &callBehavior{
		err: &analysis.Failure{Kind: analysis.FailureServerError, StatusCode: 503},
	})

	f.processor.ProcessPending()
	waitFor(t, 5*time.Second, func() bool { return f.jobStatus(t, a.ID) == queue.StatusFailed })
	waitFor(t, 2*time.Second, func() bool { return !f.processor.Draining() })

	if got := f.jobStatus(t, b.ID); got != queue.StatusPending {
		t.Fatalf("expected fail-fast to leave B pending, got %s", got)
	}
	if f.analyzer.callCount() != 1 {
		t.Fatalf("expected pass aborted after first failure, got %d calls", f.analyzer.callCount())
	}
}

func TestStopRollsBackInFlightJob(t *testing.T) {
	f := newFixture(t)

	a := f.seedJob(t, "a.mp4")
	gate := make(chan struct{})
	defer close(gate)
	f.analyzer.on("/tmp/a.mp4", &callBehavior{gate: gate})

	f.processor.ProcessPending()
	waitFor(t, 2*time.Second, func() bool { return f.jobStatus(t, a.ID) == queue.StatusUploading })

	f.processor.Stop()
	if got := f.jobStatus(t, a.ID); got != queue.StatusPending {
		t.Fatalf("expected shutdown to roll job back to pending, got %s", got)
	}
}

func TestEnqueueSpoolsArtifactAndDrains(t *testing.T) {
	f := newFixture(t)

	source := testsupport.Artifact(t, t.TempDir(), "range-session.mp4")
	job, err := f.processor.Enqueue(context.Background(), source)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.SourceName != "range-session.mp4" {
		t.Fatalf("unexpected source name %q", job.SourceName)
	}
	if filepath.Dir(job.ArtifactPath) != f.cfg.Paths.SpoolDir {
		t.Fatalf("expected artifact spooled under %s, got %s", f.cfg.Paths.SpoolDir, job.ArtifactPath)
	}
	if _, err := os.Stat(job.ArtifactPath); err != nil {
		t.Fatalf("expected spooled artifact on disk: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return f.jobStatus(t, job.ID) == queue.StatusCompleted })
}

func TestEnqueueWhileDisconnectedWaits(t *testing.T) {
	f := newFixture(t)
	f.conn.set(false)

	source := testsupport.Artifact(t, t.TempDir(), "swing.mp4")
	job, err := f.processor.Enqueue(context.Background(), source)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if f.analyzer.callCount() != 0 {
		t.Fatal("expected no drain while disconnected")
	}
	if got := f.jobStatus(t, job.ID); got != queue.StatusPending {
		t.Fatalf("expected job pending, got %s", got)
	}
}
