package daemon_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"swinglab/internal/analysis"
	"swinglab/internal/config"
	"swinglab/internal/connectivity"
	"swinglab/internal/daemon"
	"swinglab/internal/processor"
	"swinglab/internal/queue"
	"swinglab/internal/testsupport"
)

type fakeProber struct {
	mu        sync.Mutex
	connected bool
}

func (p *fakeProber) set(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
}

func (p *fakeProber) Probe(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected, nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	gate  chan struct{}
	calls int
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, artifactPath string, progress analysis.ProgressFunc) (*analysis.Result, error) {
	a.mu.Lock()
	a.calls++
	gate := a.gate
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gate:
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &analysis.Result{AnalysisID: "an-1", Payload: []byte(`{"score":75}`)}, nil
}

type testDaemon struct {
	cfg      *config.Config
	store    *queue.Store
	prober   *fakeProber
	analyzer *fakeAnalyzer
	daemon   *daemon.Daemon
}

func newTestDaemon(t *testing.T) *testDaemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Connectivity.ProbeIntervalMillis = 10
	cfg.Connectivity.DebounceMillis = 1
	cfg.Queue.InterJobDelayMillis = 1

	store := testsupport.MustOpenStore(t, cfg)
	prober := &fakeProber{}
	analyzer := &fakeAnalyzer{}

	monitor, err := connectivity.NewMonitor(cfg, nil, connectivity.WithProber(prober))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}
	proc := processor.New(cfg, store, nil, analyzer, nil, monitor)

	d, err := daemon.New(cfg, store, nil, proc, monitor, nil)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	return &testDaemon{cfg: cfg, store: store, prober: prober, analyzer: analyzer, daemon: d}
}

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

func (td *testDaemon) jobStatus(t *testing.T, id int64) queue.Status {
	t.Helper()
	job, err := td.store.GetByID(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("GetByID failed: job=%v err=%v", job, err)
	}
	return job.Status
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	td := newTestDaemon(t)

	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer td.daemon.Stop()

	monitor, err := connectivity.NewMonitor(td.cfg, nil, connectivity.WithProber(td.prober))
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}
	proc := processor.New(td.cfg, td.store, nil, td.analyzer, nil, monitor)
	second, err := daemon.New(td.cfg, td.store, nil, proc, monitor, nil)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second daemon start to fail while lock held")
	}
}

func TestDaemonStartResetsInFlightJobs(t *testing.T) {
	td := newTestDaemon(t)

	ctx := context.Background()
	job := testsupport.NewJob(t, td.store, "/tmp/a.mp4", "a.mp4")
	job.Status = queue.StatusAnalyzing
	if err := td.store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := td.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer td.daemon.Stop()

	if got := td.jobStatus(t, job.ID); got != queue.StatusPending {
		t.Fatalf("expected in-flight job reset to pending on startup, got %s", got)
	}
}

func TestDaemonConnectivityEdgesDriveQueue(t *testing.T) {
	td := newTestDaemon(t)

	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer td.daemon.Stop()

	source := testsupport.Artifact(t, t.TempDir(), "swing.mp4")
	job, err := td.daemon.Enqueue(context.Background(), source)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// Offline: job waits.
	time.Sleep(50 * time.Millisecond)
	if td.analyzer.callCount() != 0 {
		t.Fatal("expected no remote calls while offline")
	}
	if got := td.jobStatus(t, job.ID); got != queue.StatusPending {
		t.Fatalf("expected pending while offline, got %s", got)
	}

	// Restored edge kicks the drain.
	td.prober.set(true)
	waitFor(t, 5*time.Second, func() bool {
		return td.jobStatus(t, job.ID) == queue.StatusCompleted
	})
}

func TestDaemonLostEdgeCancelsInFlightJob(t *testing.T) {
	td := newTestDaemon(t)
	td.analyzer.gate = make(chan struct{})
	defer close(td.analyzer.gate)
	td.prober.set(true)

	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer td.daemon.Stop()

	source := testsupport.Artifact(t, t.TempDir(), "swing.mp4")
	job, err := td.daemon.Enqueue(context.Background(), source)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		return td.jobStatus(t, job.ID) == queue.StatusUploading
	})

	// Lost edge cancels immediately and rolls the job back.
	td.prober.set(false)
	waitFor(t, 5*time.Second, func() bool {
		return td.jobStatus(t, job.ID) == queue.StatusPending
	})
}

func TestDaemonEnqueueValidatesInput(t *testing.T) {
	td := newTestDaemon(t)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer td.daemon.Stop()

	if _, err := td.daemon.Enqueue(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := td.daemon.Enqueue(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for directory path")
	}
	source := filepath.Join(t.TempDir(), "notes.txt")
	testsupport.WriteFile(t, source, 10)
	if _, err := td.daemon.Enqueue(context.Background(), source); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
