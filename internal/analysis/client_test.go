package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"swinglab/internal/analysis"
	"swinglab/internal/testsupport"
)

func newTestClient(t *testing.T, serverURL string) *analysis.Client {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithAnalysisURL(serverURL))
	cfg.Analysis.PollIntervalSeconds = 1
	client, err := analysis.NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	return testsupport.Artifact(t, t.TempDir(), "swing.mp4")
}

func TestAnalyzeUploadsAndPolls(t *testing.T) {
	var mu sync.Mutex
	polls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/swings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		file, header, err := r.FormFile("recording")
		if err != nil {
			t.Errorf("missing recording part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "swing.mp4" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"analysis_id": "an-123"})
	})
	mux.HandleFunc("/v1/swings/an-123", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		mu.Lock()
		polls++
		current := polls
		mu.Unlock()
		if current < 2 {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "complete",
			"result": map[string]any{"score": 87, "tempo": "3:1"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)

	var phaseMu sync.Mutex
	var phases []analysis.Phase
	result, err := client.Analyze(context.Background(), writeArtifact(t), func(phase analysis.Phase, _ float64) {
		phaseMu.Lock()
		defer phaseMu.Unlock()
		if len(phases) == 0 || phases[len(phases)-1] != phase {
			phases = append(phases, phase)
		}
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.AnalysisID != "an-123" {
		t.Fatalf("unexpected analysis id %q", result.AnalysisID)
	}

	var payload struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil || payload.Score != 87 {
		t.Fatalf("unexpected payload %s (err %v)", result.Payload, err)
	}
	if len(phases) != 2 || phases[0] != analysis.PhaseUploading || phases[1] != analysis.PhaseAnalyzing {
		t.Fatalf("unexpected phase order %v", phases)
	}
}

func TestAnalyzeClassifiesServerRejection(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   analysis.FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, analysis.FailureUnauthorized},
		{"forbidden", http.StatusForbidden, analysis.FailureUnauthorized},
		{"unsupported media", http.StatusUnsupportedMediaType, analysis.FailureContentInvalid},
		{"unprocessable", http.StatusUnprocessableEntity, analysis.FailureContentInvalid},
		{"internal error", http.StatusInternalServerError, analysis.FailureServerError},
		{"bad gateway", http.StatusBadGateway, analysis.FailureServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rejected"})
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Analyze(context.Background(), writeArtifact(t), nil)
			failure, ok := analysis.AsFailure(err)
			if !ok {
				t.Fatalf("expected typed failure, got %v", err)
			}
			if failure.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, failure.Kind)
			}
			if failure.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, failure.StatusCode)
			}
			if failure.Message != "rejected" {
				t.Fatalf("expected server message surfaced, got %q", failure.Message)
			}
		})
	}
}

func TestAnalyzeRemoteFailedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/swings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"analysis_id": "an-1"})
	})
	mux.HandleFunc("/v1/swings/an-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":     "failed",
			"error":      "no swing detected in recording",
			"error_code": "invalid_content",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Analyze(context.Background(), writeArtifact(t), nil)
	failure, ok := analysis.AsFailure(err)
	if !ok {
		t.Fatalf("expected typed failure, got %v", err)
	}
	if failure.Kind != analysis.FailureContentInvalid {
		t.Fatalf("expected content_invalid, got %s", failure.Kind)
	}
}

func TestAnalyzeUnreachableServerIsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Analyze(context.Background(), writeArtifact(t), nil)
	failure, ok := analysis.AsFailure(err)
	if !ok {
		t.Fatalf("expected typed failure, got %v", err)
	}
	if failure.Kind != analysis.FailureNetwork {
		t.Fatalf("expected network failure, got %s", failure.Kind)
	}
	if !analysis.Retriable(err) {
		t.Fatal("expected network failure to be retriable")
	}
}

func TestAnalyzeCancellationIsNotAFailure(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/swings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"analysis_id": "an-1"})
	})
	mux.HandleFunc("/v1/swings/an-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(t, server.URL)

	done := make(chan error, 1)
	go func() {
		_, err := client.Analyze(ctx, writeArtifact(t), nil)
		done <- err
	}()
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok := analysis.AsFailure(err); ok {
		t.Fatal("cancellation must not be a typed failure")
	}
}

func TestAnalyzeMissingArtifact(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), nil)
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
}
