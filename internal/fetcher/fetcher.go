// Package fetcher retrieves URLs, generalizing the teacher's
// internal/httpclient.Client into the Fetcher port spec.md §4.2 names:
// non-2xx is returned as data, never as an error, and every call honors
// ctx cancellation.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the outcome of one Fetch call.
type Result struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Elapsed    time.Duration
}

// Fetcher retrieves a URL. Implementations must not return an error for a
// non-2xx response; only transport-level failures (DNS, connection reset,
// timeout) are errors.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (Result, error)
}

// HTTPFetcher is the lightweight, non-JS-rendering Fetcher implementation;
// spec.md's Non-goals explicitly leave a headless-browser Fetcher
// unimplemented, matching the teacher shipping only a plain http.Client.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// DefaultUserAgent mirrors httpclient.DefaultConfig's UserAgent string.
const DefaultUserAgent = "AutoScraper/1.0 (+https://autoscraper.local/bot)"

// New builds an HTTPFetcher. The http.Client's own Timeout is left unset;
// each Fetch call derives a per-request context deadline instead, so the
// board's configured request_timeout_s is honored per call.
func New(userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/json,application/rss+xml,*/*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		// Transport-level failure: DNS, connection reset, timeout. This is
		// the only case Fetch returns a non-nil error for.
		return Result{Elapsed: time.Since(start)}, fmt.Errorf("fetcher: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20)) // 16MiB cap, matches a sane page-body bound
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Elapsed: time.Since(start)}, fmt.Errorf("fetcher: read body: %w", err)
	}

	return Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
		Elapsed:    time.Since(start),
	}, nil
}
