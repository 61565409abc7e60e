package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig configures the HTTP source. Zero values get defaults: 60s
// timeout, 3 retries, 200ms initial backoff capped at 5s.
type HTTPConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Client overrides the constructed http.Client, for tests.
	Client *http.Client
}

// HTTP fetches an extract over HTTP with retry and exponential backoff.
// Portal endpoints throttle and flake; a flat GET is not enough for an
// unattended batch job.
type HTTP struct {
	url string
	cfg HTTPConfig

	client *http.Client
	sleep  func(time.Duration)
}

// NewHTTP returns a Source downloading from url.
func NewHTTP(url string, cfg HTTPConfig) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTP{url: url, cfg: cfg, client: client, sleep: time.Sleep}
}

// Open issues the GET, retrying transport errors and retryable statuses
// (429 and 5xx) with doubling backoff. The returned body streams the extract;
// the caller closes it.
func (h *HTTP) Open(ctx context.Context) (io.ReadCloser, error) {
	backoff := h.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			h.sleep(backoff)
			backoff *= 2
			if backoff > h.cfg.MaxBackoff {
				backoff = h.cfg.MaxBackoff
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
		if err != nil {
			return nil, fmt.Errorf("datasource: build request: %w", err)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("datasource: GET %s: status %s", h.url, resp.Status)
		if !retryableStatus(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("datasource: GET %s failed after %d attempts: %w",
		h.url, h.cfg.MaxRetries+1, lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
