package mock

import (
	"context"

	"github.com/docdex/docdex"
)

var _ docdex.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of docdex.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (*docdex.FetchResult, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*docdex.FetchResult, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	if f.CloseFn == nil {
		return nil
	}
	return f.CloseFn()
}

var _ docdex.RobotsService = (*RobotsService)(nil)

// RobotsService is a mock implementation of docdex.RobotsService.
type RobotsService struct {
	AllowedFn     func(ctx context.Context, rawURL string) (bool, error)
	SitemapURLsFn func(ctx context.Context, rawURL string) ([]string, error)
}

func (s *RobotsService) Allowed(ctx context.Context, rawURL string) (bool, error) {
	return s.AllowedFn(ctx, rawURL)
}

func (s *RobotsService) SitemapURLs(ctx context.Context, rawURL string) ([]string, error) {
	if s.SitemapURLsFn == nil {
		return nil, nil
	}
	return s.SitemapURLsFn(ctx, rawURL)
}

var _ docdex.SitemapService = (*SitemapService)(nil)

// SitemapService is a mock implementation of docdex.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL)
}

var _ docdex.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of docdex.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, host string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, host string) error {
	return l.WaitFn(ctx, host)
}
