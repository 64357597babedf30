package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"swinglab/internal/config"
)

// Prober answers whether the analysis service is usable right now. A nil
// error with false means a clean "not reachable"; errors describe probe
// breakage worth logging.
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

// HTTPProber combines a raw TCP reachability check with an application
// health probe. A reachable host whose health endpoint does not answer 200
// counts as disconnected.
type HTTPProber struct {
	healthURL string
	hostPort  string
	timeout   time.Duration
	client    *http.Client
}

// NewHTTPProber builds a prober for the configured analysis endpoint.
func NewHTTPProber(cfg *config.Config) (*HTTPProber, error) {
	parsed, err := url.Parse(strings.TrimSpace(cfg.Analysis.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse analysis base url: %w", err)
	}

	host := parsed.Hostname()
	port := parsed.Port()
	if port == "" {
		if parsed.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	timeout := time.Duration(cfg.Connectivity.ProbeTimeout) * time.Second
	return &HTTPProber{
		healthURL: strings.TrimRight(parsed.String(), "/") + cfg.Connectivity.HealthPath,
		hostPort:  net.JoinHostPort(host, port),
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (p *HTTPProber) Probe(ctx context.Context) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(probeCtx, "tcp", p.hostPort)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return false, fmt.Errorf("build health request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
