package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"swinglab/internal/preflight"
	"swinglab/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Spool directory", dir)
	if !result.Passed {
		t.Fatalf("expected writable temp dir to pass, got %q", result.Detail)
	}

	missing := filepath.Join(dir, "missing")
	result = preflight.CheckDirectoryAccess("Spool directory", missing)
	if result.Passed {
		t.Fatal("expected missing directory to fail")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = preflight.CheckDirectoryAccess("Spool directory", file)
	if result.Passed {
		t.Fatal("expected regular file to fail directory check")
	}
}

func TestCheckAnalysisService(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		expectPass bool
	}{
		{"healthy", http.StatusOK, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/healthz" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			cfg := testsupport.NewConfig(t, testsupport.WithAnalysisURL(server.URL))
			result := preflight.CheckAnalysisService(context.Background(), cfg)
			if result.Passed != tc.expectPass {
				t.Fatalf("expected passed=%v, got %#v", tc.expectPass, result)
			}
		})
	}
}

func TestRunAllChecksDirectoriesAndService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAnalysisURL(server.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !preflight.AllPassed(results) {
		t.Fatalf("expected all checks to pass, got %#v", results)
	}
}
