package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"

	"github.com/docdex/docdex"
)

// Ensure SitemapService implements docdex.SitemapService.
var _ docdex.SitemapService = (*SitemapService)(nil)

// SitemapService discovers page URLs from a site's sitemaps. Sitemap
// locations come from robots.txt directives with /sitemap.xml as the
// fallback; sitemap indexes are resolved recursively.
type SitemapService struct {
	client *http.Client
	robots docdex.RobotsService
}

// NewSitemapService creates a SitemapService. If client is nil, a
// client with the default fetch timeout is used. robots may be nil, in
// which case only the /sitemap.xml fallback is probed.
func NewSitemapService(client *http.Client, robots docdex.RobotsService) *SitemapService {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &SitemapService{client: client, robots: robots}
}

// DiscoverURLs finds all URLs from the site's sitemaps that fall inside
// the baseURL scope. Returns an empty slice when no sitemap exists.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, docdex.Errorf(docdex.EINVALID, "invalid base URL %q: %v", baseURL, err)
	}

	sitemapURLs, err := s.findSitemapURLs(ctx, base)
	if err != nil {
		return nil, err
	}
	if len(sitemapURLs) == 0 {
		return []string{}, nil
	}

	seenSitemaps := make(map[string]bool)
	seenURLs := make(map[string]bool)
	var inScope []string

	for _, sitemapURL := range sitemapURLs {
		urls, err := s.processSitemap(ctx, sitemapURL, seenSitemaps)
		if err != nil {
			// A broken sitemap should not fail discovery; BFS link
			// crawling still covers the site.
			continue
		}
		for _, u := range urls {
			if seenURLs[u] || !strings.HasPrefix(u, baseURL) {
				continue
			}
			seenURLs[u] = true
			inScope = append(inScope, u)
		}
	}

	if inScope == nil {
		inScope = []string{}
	}
	return inScope, nil
}

// findSitemapURLs collects sitemap locations from robots.txt, falling
// back to probing /sitemap.xml at the host root.
func (s *SitemapService) findSitemapURLs(ctx context.Context, base *url.URL) ([]string, error) {
	if s.robots != nil {
		sitemaps, err := s.robots.SitemapURLs(ctx, base.String())
		if err == nil && len(sitemaps) > 0 {
			return sitemaps, nil
		}
	}

	fallback := base.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()
	exists, err := s.urlExists(ctx, fallback)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	if exists {
		return []string{fallback}, nil
	}
	return nil, nil
}

// urlExists probes a URL with a HEAD request.
func (s *SitemapService) urlExists(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// fetchURL retrieves a sitemap body.
func (s *SitemapService) fetchURL(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// processSitemap fetches and parses a sitemap, handling both urlset and
// sitemapindex documents.
func (s *SitemapService) processSitemap(ctx context.Context, sitemapURL string, seen map[string]bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seen[sitemapURL] {
		return nil, nil
	}
	seen[sitemapURL] = true

	body, err := s.fetchURL(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(body); err != nil {
		return nil, fmt.Errorf("parsing sitemap XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty sitemap XML")
	}

	if root.Tag == "sitemapindex" {
		return s.processSitemapIndex(ctx, root, seen)
	}
	return parseURLSet(root), nil
}

// processSitemapIndex resolves a <sitemapindex> element recursively.
func (s *SitemapService) processSitemapIndex(ctx context.Context, root *etree.Element, seen map[string]bool) ([]string, error) {
	var all []string
	for _, sitemap := range root.SelectElements("sitemap") {
		loc := sitemap.SelectElement("loc")
		if loc == nil {
			continue
		}
		child := strings.TrimSpace(loc.Text())
		if child == "" {
			continue
		}

		urls, err := s.processSitemap(ctx, child, seen)
		if err != nil {
			return nil, err
		}
		all = append(all, urls...)
	}
	return all, nil
}

// parseURLSet extracts page URLs from a <urlset> element.
func parseURLSet(root *etree.Element) []string {
	var urls []string
	for _, u := range root.SelectElements("url") {
		loc := u.SelectElement("loc")
		if loc == nil {
			continue
		}
		if page := strings.TrimSpace(loc.Text()); page != "" {
			urls = append(urls, page)
		}
	}
	return urls
}
