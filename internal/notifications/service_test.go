package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swinglab/internal/config"
	"swinglab/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyAnalysisComplete(context.Background(), "swing.mp4", ""); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "analysis complete",
			notify: func(svc notifications.Service) error {
				return svc.NotifyAnalysisComplete(context.Background(), "swing-042.mp4", "Tempo 3:1, score 87")
			},
			expectTitle:   "Swinglab - Analysis Complete",
			expectMessage: "Analysis ready: swing-042.mp4\nTempo 3:1, score 87",
			expectTags:    "swinglab,analysis,completed",
		},
		{
			name: "analysis failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyAnalysisFailed(context.Background(), "swing-042.mp4", "no swing detected")
			},
			expectTitle:    "Swinglab - Analysis Failed",
			expectMessage:  "Analysis failed: swing-042.mp4\nReason: no swing detected",
			expectTags:     "swinglab,analysis,failed",
			expectPriority: "high",
		},
		{
			name: "queue completed clean",
			notify: func(svc notifications.Service) error {
				return svc.NotifyQueueCompleted(context.Background(), 3, 0, 65*time.Second)
			},
			expectTitle:   "Swinglab - Queue Complete",
			expectMessage: "Queue drain complete: 3 recordings analyzed in 1m5s",
			expectTags:    "swinglab,queue,completed",
		},
		{
			name: "queue completed with failures",
			notify: func(svc notifications.Service) error {
				return svc.NotifyQueueCompleted(context.Background(), 2, 1, 30*time.Second)
			},
			expectTitle:   "Swinglab - Queue Complete (with errors)",
			expectMessage: "Queue drain complete: 2 succeeded, 1 failed in 30s",
			expectTags:    "swinglab,queue,completed",
		},
		{
			name: "connectivity restored",
			notify: func(svc notifications.Service) error {
				return svc.NotifyConnectivityRestored(context.Background(), 4)
			},
			expectTitle:   "Swinglab - Back Online",
			expectMessage: "Connection to analysis service restored; resuming 4 pending recordings",
			expectTags:    "swinglab,connectivity,restored",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("upload rejected"), "queue drain")
			},
			expectTitle:    "Swinglab - Error",
			expectMessage:  "Error with queue drain: upload rejected",
			expectTags:     "swinglab,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from rejected notification")
	}
}
