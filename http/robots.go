package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/docdex/docdex"
)

// Ensure RobotsService implements docdex.RobotsService at compile time.
var _ docdex.RobotsService = (*RobotsService)(nil)

// RobotsService acquires and evaluates robots.txt rules, cached per
// host for the service's lifetime. An unreachable or unparsable
// robots.txt is treated as allow-all; the deviation is surfaced as a
// warning.
type RobotsService struct {
	client *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // keyed by scheme://host
}

// RobotsOption configures a RobotsService.
type RobotsOption func(*RobotsService)

// WithRobotsLogger sets the logger for acquisition warnings.
func WithRobotsLogger(logger *slog.Logger) RobotsOption {
	return func(s *RobotsService) {
		s.logger = logger
	}
}

// NewRobotsService creates a RobotsService. If client is nil, a client
// with the default fetch timeout is used.
func NewRobotsService(client *http.Client, opts ...RobotsOption) *RobotsService {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	s := &RobotsService{
		client: client,
		logger: slog.Default(),
		cache:  make(map[string]*robotstxt.RobotsData),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allowed reports whether fetching rawURL is permitted for our agent.
func (s *RobotsService) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, docdex.Errorf(docdex.EINVALID, "invalid URL %q: %v", rawURL, err)
	}

	data, err := s.dataForHost(ctx, u)
	if err != nil {
		return false, err
	}
	if data == nil {
		return true, nil
	}
	return data.TestAgent(u.Path, userAgent), nil
}

// SitemapURLs returns the sitemap locations declared in the host's
// robots.txt.
func (s *RobotsService) SitemapURLs(ctx context.Context, rawURL string) ([]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, docdex.Errorf(docdex.EINVALID, "invalid URL %q: %v", rawURL, err)
	}

	data, err := s.dataForHost(ctx, u)
	if err != nil || data == nil {
		return nil, err
	}
	return data.Sitemaps, nil
}

// dataForHost returns the cached robots data for the URL's host,
// acquiring it on first use. A nil result means allow-all.
func (s *RobotsService) dataForHost(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	key := u.Scheme + "://" + u.Host

	s.mu.Lock()
	data, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return data, nil
	}

	data = s.acquire(ctx, key+"/robots.txt")

	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()
	return data, nil
}

// acquire fetches and parses robots.txt. Failures degrade to allow-all.
func (s *RobotsService) acquire(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("robots.txt unreachable, treating as allow-all",
			"url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.logger.Warn("robots.txt read failed, treating as allow-all",
			"url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		s.logger.Warn("robots.txt parse failed, treating as allow-all",
			"url", robotsURL, "error", err)
		return nil
	}
	return data
}
