package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"swinglab/internal/config"
)

// Phase identifies where an analysis call currently is.
type Phase string

const (
	PhaseUploading Phase = "uploading"
	PhaseAnalyzing Phase = "analyzing"
)

// ProgressFunc receives phase and percent updates while a call is in flight.
// Percent is meaningful during upload; analysis polling reports -1.
type ProgressFunc func(phase Phase, percent float64)

// Result is the payload returned by a completed analysis.
type Result struct {
	AnalysisID string
	Payload    json.RawMessage
}

// Client talks to the remote swing-analysis service. One call uploads the
// recording, then polls until the analysis finishes. The whole exchange is
// cancellable through the request context.
type Client struct {
	baseURL        *url.URL
	token          string
	http           *http.Client
	uploadTimeout  time.Duration
	analyzeTimeout time.Duration
	pollInterval   time.Duration
}

// NewClient builds a Client from configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	base := strings.TrimSpace(cfg.Analysis.BaseURL)
	if base == "" {
		return nil, errors.New("analysis: base url is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("analysis: parse base url: %w", err)
	}

	return &Client{
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Analysis.APIToken),
		http:           &http.Client{},
		uploadTimeout:  time.Duration(cfg.Analysis.UploadTimeout) * time.Second,
		analyzeTimeout: time.Duration(cfg.Analysis.AnalyzeTimeout) * time.Second,
		pollInterval:   time.Duration(cfg.Analysis.PollIntervalSeconds) * time.Second,
	}, nil
}

// Analyze uploads the artifact and waits for the analysis result. Errors are
// typed *Failure values except for context cancellation, which is returned
// unwrapped so callers can treat it as rollback rather than failure.
func (c *Client) Analyze(ctx context.Context, artifactPath string, progress ProgressFunc) (*Result, error) {
	if c == nil {
		return nil, errors.New("analysis: client is nil")
	}
	if progress == nil {
		progress = func(Phase, float64) {}
	}

	analysisID, err := c.upload(ctx, artifactPath, progress)
	if err != nil {
		return nil, err
	}

	payload, err := c.awaitResult(ctx, analysisID, progress)
	if err != nil {
		return nil, err
	}

	return &Result{AnalysisID: analysisID, Payload: payload}, nil
}

func (c *Client) upload(ctx context.Context, artifactPath string, progress ProgressFunc) (string, error) {
	file, err := os.Open(artifactPath)
	if err != nil {
		return "", fmt.Errorf("analysis: open artifact: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("analysis: stat artifact: %w", err)
	}

	progress(PhaseUploading, 0)

	pipeReader, pipeWriter := io.Pipe()
	writer := multipart.NewWriter(pipeWriter)
	go func() {
		part, err := writer.CreateFormFile("recording", filepath.Base(artifactPath))
		if err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		counted := &countingReader{
			reader:   file,
			total:    info.Size(),
			progress: progress,
		}
		if _, err := io.Copy(part, counted); err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		pipeWriter.CloseWithError(writer.Close())
	}()

	uploadCtx := ctx
	var cancel context.CancelFunc
	if c.uploadTimeout > 0 {
		uploadCtx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()
	}

	endpoint := c.baseURL.JoinPath("v1", "swings")
	req, err := http.NewRequestWithContext(uploadCtx, http.MethodPost, endpoint.String(), pipeReader)
	if err != nil {
		return "", fmt.Errorf("analysis: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := contextDone(ctx, err); ctxErr != nil {
			return "", ctxErr
		}
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", classifyStatus(resp.StatusCode, readErrorBody(resp.Body))
	}

	var created struct {
		AnalysisID string `json:"analysis_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &Failure{Kind: FailureServerError, Message: "malformed upload response", Err: err}
	}
	if created.AnalysisID == "" {
		return "", &Failure{Kind: FailureServerError, Message: "upload response missing analysis_id"}
	}

	progress(PhaseUploading, 100)
	return created.AnalysisID, nil
}

func (c *Client) awaitResult(ctx context.Context, analysisID string, progress ProgressFunc) (json.RawMessage, error) {
	pollCtx := ctx
	var cancel context.CancelFunc
	if c.analyzeTimeout > 0 {
		pollCtx, cancel = context.WithTimeout(ctx, c.analyzeTimeout)
		defer cancel()
	}

	progress(PhaseAnalyzing, -1)

	endpoint := c.baseURL.JoinPath("v1", "swings", analysisID)
	interval := c.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		payload, done, err := c.fetchStatus(pollCtx, endpoint.String())
		if err != nil {
			if ctxErr := contextDone(ctx, err); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, context.DeadlineExceeded) && pollCtx.Err() != nil {
				return nil, &Failure{Kind: FailureTimeout, Message: "analysis did not finish in time", Err: err}
			}
			return nil, err
		}
		if done {
			return payload, nil
		}

		progress(PhaseAnalyzing, -1)
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &Failure{Kind: FailureTimeout, Message: "analysis did not finish in time", Err: pollCtx.Err()}
		case <-time.After(interval):
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context, endpoint string) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("analysis: build status request: %w", err)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, false, classifyStatus(resp.StatusCode, readErrorBody(resp.Body))
	}

	var status struct {
		Status    string          `json:"status"`
		Result    json.RawMessage `json:"result"`
		Error     string          `json:"error"`
		ErrorCode string          `json:"error_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, false, &Failure{Kind: FailureServerError, Message: "malformed status response", Err: err}
	}

	switch status.Status {
	case "complete":
		if len(status.Result) == 0 {
			return nil, false, &Failure{Kind: FailureServerError, Message: "complete status missing result"}
		}
		return status.Result, true, nil
	case "failed":
		kind := FailureServerError
		if status.ErrorCode == "invalid_content" {
			kind = FailureContentInvalid
		}
		return nil, false, &Failure{Kind: kind, Message: status.Error}
	default:
		return nil, false, nil
	}
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// contextDone surfaces cancellation of the caller's context; timeouts from
// the client's own deadlines stay classified as failures.
func contextDone(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctx.Err()
	}
	return nil
}

func readErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	trimmed := strings.TrimSpace(string(data))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return trimmed
}

type countingReader struct {
	reader   io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 && r.total > 0 {
		r.read += int64(n)
		r.progress(PhaseUploading, float64(r.read)/float64(r.total)*100)
	}
	return n, err
}
