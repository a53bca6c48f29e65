// Package http provides the HTTP implementations of docdex's fetching
// collaborators: the classified page fetcher, the robots.txt policy
// cache, and sitemap discovery.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/docdex/docdex"
)

// DefaultFetchTimeout is the hard per-request timeout.
const DefaultFetchTimeout = 30 * time.Second

// DefaultMaxBodyBytes caps response bodies. Documentation pages beyond
// this are not worth chunking.
const DefaultMaxBodyBytes = 10 << 20 // 10 MiB

// userAgent identifies the crawler to servers and robots.txt groups.
const userAgent = "docdex/1.0 (+https://github.com/docdex/docdex)"

// Renderer produces rendered HTML for JavaScript-heavy pages. The rod
// package provides the browser-backed implementation.
type Renderer interface {
	Render(ctx context.Context, url string) (html string, err error)
}

// Ensure Fetcher implements docdex.Fetcher at compile time.
var _ docdex.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves page content over HTTP with per-host request
// spacing and outcome classification. When a Renderer is configured,
// rendered HTML is attempted first with raw HTTP as the fallback.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBody  int64
	limiter  docdex.DomainLimiter
	renderer Renderer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout.
// Defaults to DefaultFetchTimeout (30s).
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodyBytes caps the accepted response body size.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBody = n
	}
}

// WithLimiter sets the per-host rate limiter consulted before each
// request.
func WithLimiter(limiter docdex.DomainLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// WithRenderer enables the render-first path for JavaScript-rendered
// pages.
func WithRenderer(renderer Renderer) Option {
	return func(f *Fetcher) {
		f.renderer = renderer
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout: DefaultFetchTimeout,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch issues a single GET for the URL and classifies the outcome.
// Retry policy lives in the crawler, which requeues retryable failures
// against the persistent queue.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*docdex.FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &docdex.FetchError{URL: rawURL, Kind: docdex.FetchInvalidURL, Err: err}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}
	}

	if f.renderer != nil {
		if html, err := f.renderer.Render(ctx, rawURL); err == nil {
			return &docdex.FetchResult{
				FinalURL:    rawURL,
				ContentType: "text/html",
				Body:        []byte(html),
			}, nil
		}
		// Rendering failures fall back to raw HTTP.
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &docdex.FetchError{URL: rawURL, Kind: docdex.FetchInvalidURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &docdex.FetchError{URL: rawURL, Kind: docdex.FetchThrottled, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &docdex.FetchError{URL: rawURL, Kind: docdex.FetchHTTPServer, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, &docdex.FetchError{URL: rawURL, Kind: docdex.FetchHTTPClient, StatusCode: resp.StatusCode}
	}

	// Read one byte past the cap to detect oversized bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, classifyTransport(rawURL, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, &docdex.FetchError{URL: rawURL, Kind: docdex.FetchTooLarge}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &docdex.FetchResult{
		FinalURL:    finalURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Close releases resources. The HTTP client needs no explicit cleanup.
func (f *Fetcher) Close() error {
	return nil
}

// classifyTransport distinguishes timeouts from other transport errors.
func classifyTransport(rawURL string, err error) *docdex.FetchError {
	kind := docdex.FetchTransport
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		kind = docdex.FetchTimeout
	case errors.As(err, &urlErr) && urlErr.Timeout():
		kind = docdex.FetchTimeout
	case strings.Contains(err.Error(), "Client.Timeout"):
		kind = docdex.FetchTimeout
	}
	return &docdex.FetchError{URL: rawURL, Kind: kind, Err: err}
}
