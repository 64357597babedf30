package testsupport

import (
	"path/filepath"
	"testing"

	"swinglab/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Analysis.BaseURL = "http://127.0.0.1:0"
	cfg.Analysis.APIToken = "test-token"
	cfg.Paths.SpoolDir = filepath.Join(base, "spool")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithAnalysisURL points the test config at the provided analysis endpoint,
// usually an httptest server.
func WithAnalysisURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Analysis.BaseURL = url
	}
}

// WithFailFast enables the fail-fast drain policy on the test config.
func WithFailFast() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.FailFast = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SpoolDir)
}
