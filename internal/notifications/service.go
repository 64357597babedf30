package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"swinglab/internal/config"
)

const userAgent = "Swinglab-Go/0.1.0"

// Service defines the notification surface exposed to queue components.
type Service interface {
	NotifyAnalysisComplete(ctx context.Context, sourceName, summary string) error
	NotifyAnalysisFailed(ctx context.Context, sourceName, reason string) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyConnectivityRestored(ctx context.Context, pending int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyAnalysisComplete(ctx context.Context, sourceName, summary string) error {
	sourceName = strings.TrimSpace(sourceName)
	message := fmt.Sprintf("Analysis ready: %s", sourceName)
	if summary = strings.TrimSpace(summary); summary != "" {
		message = fmt.Sprintf("%s\n%s", message, summary)
	}
	data := payload{
		title:   "Swinglab - Analysis Complete",
		message: message,
		tags:    []string{"swinglab", "analysis", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAnalysisFailed(ctx context.Context, sourceName, reason string) error {
	sourceName = strings.TrimSpace(sourceName)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Swinglab - Analysis Failed",
		message:  fmt.Sprintf("Analysis failed: %s\nReason: %s", sourceName, reason),
		tags:     []string{"swinglab", "analysis", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "Swinglab - Queue Complete"
		message = fmt.Sprintf("Queue drain complete: %d recordings analyzed in %s", processed, durationText)
	} else {
		title = "Swinglab - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue drain complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"swinglab", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyConnectivityRestored(ctx context.Context, pending int) error {
	message := "Connection to analysis service restored"
	if pending > 0 {
		message = fmt.Sprintf("%s; resuming %d pending recordings", message, pending)
	}
	data := payload{
		title:   "Swinglab - Back Online",
		message: message,
		tags:    []string{"swinglab", "connectivity", "restored"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Swinglab - Error",
		message:  builder.String(),
		tags:     []string{"swinglab", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Swinglab - Test",
		message:  "Notification system test",
		tags:     []string{"swinglab", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyAnalysisComplete(context.Context, string, string) error        { return nil }
func (noopService) NotifyAnalysisFailed(context.Context, string, string) error          { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyConnectivityRestored(context.Context, int) error               { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
