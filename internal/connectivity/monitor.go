package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"swinglab/internal/config"
	"swinglab/internal/logging"
)

// State is a point-in-time connectivity snapshot.
type State struct {
	Connected    bool
	LastChangeAt time.Time
}

// Monitor probes the analysis service on an interval and publishes debounced
// connectivity edges. Levels are never republished; subscribers only hear
// about transitions.
type Monitor struct {
	logger       *slog.Logger
	prober       Prober
	pollInterval time.Duration
	debounce     time.Duration

	mu            sync.Mutex
	running       bool
	connected     bool
	lastChangeAt  time.Time
	lastPublished bool
	lastEmitAt    time.Time
	seeded        bool
	nextHandle    int
	subscribers   map[int]func(connected bool)
	restored      []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Monitor; used by tests to inject a fake prober.
type Option func(*Monitor)

// WithProber overrides the default HTTP prober.
func WithProber(p Prober) Option {
	return func(m *Monitor) {
		m.prober = p
	}
}

// NewMonitor builds a monitor from configuration. The default prober checks
// TCP reachability followed by the service health endpoint.
func NewMonitor(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	m := &Monitor{
		logger:       logger.With(logging.String(logging.FieldComponent, "connectivity")),
		pollInterval: time.Duration(cfg.Connectivity.ProbeIntervalMillis) * time.Millisecond,
		debounce:     time.Duration(cfg.Connectivity.DebounceMillis) * time.Millisecond,
		subscribers:  make(map[int]func(bool)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.prober == nil {
		prober, err := NewHTTPProber(cfg)
		if err != nil {
			return nil, err
		}
		m.prober = prober
	}
	return m, nil
}

// Start launches the probe loop. The first probe runs immediately so the
// snapshot is meaningful before the first tick.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("connectivity monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// IsConnected reports the last observed level.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Snapshot returns the current state including the last transition time.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Connected: m.connected, LastChangeAt: m.lastChangeAt}
}

// Subscribe registers a callback fired on every debounced edge. The returned
// function removes the subscription.
func (m *Monitor) Subscribe(fn func(connected bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := m.nextHandle
	m.nextHandle++
	m.subscribers[handle] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, handle)
	}
}

// OnRestored registers a callback fired only on disconnected-to-connected
// edges.
func (m *Monitor) OnRestored(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restored = append(m.restored, fn)
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.poll()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	ctx := m.ctx
	if ctx == nil {
		return
	}

	connected, err := m.prober.Probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("connectivity probe failed; treating as disconnected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "connectivity_probe_failed"),
		)
		connected = false
	}

	m.observe(connected)
}

// observe records a probe result and emits an edge when the level differs
// from the last-published one and the debounce window has elapsed. Flaps
// inside the window collapse into the next stable sample.
func (m *Monitor) observe(connected bool) {
	now := time.Now()

	m.mu.Lock()
	if connected != m.connected || !m.seeded {
		m.connected = connected
		m.lastChangeAt = now
	}

	if m.seeded && connected == m.lastPublished {
		m.mu.Unlock()
		return
	}
	if m.seeded && now.Sub(m.lastEmitAt) < m.debounce {
		m.mu.Unlock()
		return
	}

	first := !m.seeded
	m.seeded = true
	m.lastPublished = connected
	m.lastEmitAt = now

	subscribers := make([]func(bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subscribers = append(subscribers, fn)
	}
	var restored []func()
	if connected {
		restored = append(restored, m.restored...)
	}
	m.mu.Unlock()

	if first && !connected {
		// The first sample seeds the baseline. An offline start is not
		// an edge and publishes nothing; a connected start publishes
		// once, and the daemon's startup drain runs off OnRestored from
		// that publication.
		return
	}

	m.logger.Info("connectivity changed",
		logging.Bool("connected", connected),
		logging.String(logging.FieldEventType, "connectivity_edge"),
	)
	for _, fn := range subscribers {
		fn(connected)
	}
	for _, fn := range restored {
		fn()
	}
}
