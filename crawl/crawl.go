// Package crawl drives the breadth-first crawl of a documentation site
// against the persistent queue: claiming entries, fetching, extracting,
// enqueueing discovered links, and handing pages to the indexing stage.
package crawl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/bloom"
)

// Retry policy for retryable fetch outcomes.
const (
	// DefaultMaxRetries bounds requeues of a retryable URL.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the fixed delay before a retryable entry is
	// requeued. HTTP 429 waits twice as long.
	DefaultRetryDelay = 30 * time.Second

	// DefaultMaxPageFailures is the failed-page threshold past which a
	// drained site is marked failed instead of completed.
	DefaultMaxPageFailures = 10
)

// Bloom filter sizing for the in-run enqueue dedup cache. The queue's
// (site_id, url) uniqueness is authoritative; the filter only avoids
// redundant insert attempts.
const (
	seenExpectedURLs      = 10000
	seenFalsePositiveRate = 0.01
)

// ErrSeedDisallowed reports that robots.txt denies the site's seed URL;
// the whole site fails.
var ErrSeedDisallowed = errors.New("robots.txt disallows the site's index URL")

// IndexPageFunc receives each successfully extracted page. An error
// fails the page's queue entry.
type IndexPageFunc func(ctx context.Context, site *docdex.Site, doc *docdex.PageDoc) error

// Result summarizes a per-site crawl run.
type Result struct {
	Indexed int
	Failed  int
}

// Crawler is the per-site breadth-first driver invoked by the indexer.
type Crawler struct {
	Sites     docdex.SiteService
	Queue     docdex.QueueService
	Fetcher   docdex.Fetcher
	Robots    docdex.RobotsService
	Extractor docdex.Extractor

	// Sitemaps, when set, seeds the queue from sitemap discovery before
	// link-following begins.
	Sitemaps docdex.SitemapService

	Logger *slog.Logger

	// MaxRetries, RetryDelay, and MaxPageFailures default to the
	// package constants when zero.
	MaxRetries      int
	RetryDelay      time.Duration
	MaxPageFailures int
}

// CrawlSite drains the site's queue, calling index for each extracted
// page. On return the site's status has been transitioned to completed
// or failed unless the context was canceled mid-run.
func (c *Crawler) CrawlSite(ctx context.Context, site *docdex.Site, index IndexPageFunc) (*Result, error) {
	logger := c.logger().With("site", site.Name, "site_id", site.ID)

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := c.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	maxFailures := c.MaxPageFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxPageFailures
	}

	// Crash recovery: entries stranded in processing by a dead run
	// become claimable again.
	if reset, err := c.Queue.ResetProcessing(ctx, site.ID); err != nil {
		return nil, err
	} else if reset > 0 {
		logger.Info("reset stranded queue entries", "count", reset)
	}

	seen := bloom.NewFilter(seenExpectedURLs, seenFalsePositiveRate)

	// The seed is always queued; Enqueue is idempotent.
	if _, err := c.Queue.Enqueue(ctx, site.ID, NormalizeURL(site.IndexURL)); err != nil {
		return nil, err
	}
	c.seedFromSitemaps(ctx, site, seen, logger)

	var result Result
	for {
		if err := ctx.Err(); err != nil {
			return &result, err
		}

		entry, err := c.Queue.ClaimNextPending(ctx, site.ID)
		if docdex.ErrorCode(err) == docdex.ENOTFOUND {
			break // queue drained
		}
		if err != nil {
			return &result, err
		}

		if err := c.processEntry(ctx, site, entry, seen, index, maxRetries, retryDelay, &result, logger); err != nil {
			// Cancellation returns the in-flight entry to pending so the
			// next run picks it up.
			if ctx.Err() != nil {
				_ = c.Queue.MarkQueueEntry(context.WithoutCancel(ctx), entry.ID, docdex.QueueStatusPending, "")
				return &result, ctx.Err()
			}
			return &result, err
		}

		if err := c.updateProgress(ctx, site, &result); err != nil {
			return &result, err
		}
	}

	return &result, c.finishSite(ctx, site, &result, maxFailures, logger)
}

// processEntry runs one queue entry through fetch, extract, enqueue,
// and index. Terminal outcomes are recorded against the entry; only
// infrastructure errors propagate.
func (c *Crawler) processEntry(
	ctx context.Context,
	site *docdex.Site,
	entry *docdex.QueueEntry,
	seen *bloom.Filter,
	index IndexPageFunc,
	maxRetries int,
	retryDelay time.Duration,
	result *Result,
	logger *slog.Logger,
) error {
	allowed, err := c.Robots.Allowed(ctx, entry.URL)
	if err != nil {
		return err
	}
	if !allowed {
		result.Failed++
		if markErr := c.Queue.MarkQueueEntry(ctx, entry.ID, docdex.QueueStatusFailed, "robots.txt disallows URL"); markErr != nil {
			return markErr
		}
		if NormalizeURL(entry.URL) == NormalizeURL(site.IndexURL) {
			return ErrSeedDisallowed
		}
		return nil
	}

	fetched, err := c.Fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		return c.handleFetchError(ctx, entry, err, maxRetries, retryDelay, result, logger)
	}

	doc, err := c.Extractor.Extract(entry.URL, site.BaseURL, fetched.Body)
	if err != nil {
		// Malformed input surviving the lenient parse: log, skip page.
		logger.Warn("extraction failed, skipping page", "url", entry.URL, "error", err)
		result.Failed++
		return c.Queue.MarkQueueEntry(ctx, entry.ID, docdex.QueueStatusFailed, "extraction failed: "+err.Error())
	}

	c.enqueueLinks(ctx, site, doc.Links, seen, logger)

	if err := index(ctx, site, doc); err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Warn("indexing failed", "url", entry.URL, "error", err)
		result.Failed++
		return c.Queue.MarkQueueEntry(ctx, entry.ID, docdex.QueueStatusFailed, docdex.ErrorMessage(err))
	}

	result.Indexed++
	return c.Queue.MarkQueueEntry(ctx, entry.ID, docdex.QueueStatusCompleted, "")
}

// handleFetchError applies the retry policy to a classified fetch
// failure.
func (c *Crawler) handleFetchError(
	ctx context.Context,
	entry *docdex.QueueEntry,
	err error,
	maxRetries int,
	retryDelay time.Duration,
	result *Result,
	logger *slog.Logger,
) error {
	var fetchErr *docdex.FetchError
	if !errors.As(err, &fetchErr) {
		// Context cancellation or limiter failure.
		return err
	}

	if fetchErr.Retryable() && entry.RetryCount < maxRetries {
		delay := retryDelay
		if fetchErr.Kind == docdex.FetchThrottled {
			delay *= 2
		}
		logger.Info("retryable fetch failure, requeueing",
			"url", entry.URL,
			"kind", string(fetchErr.Kind),
			"retry", entry.RetryCount+1,
			"delay", delay,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		return c.Queue.RequeueEntry(ctx, entry.ID, fetchErr.Error())
	}

	logger.Warn("fetch failed", "url", entry.URL, "kind", string(fetchErr.Kind), "error", fetchErr)
	result.Failed++
	return c.Queue.MarkQueueEntry(ctx, entry.ID, docdex.QueueStatusFailed, fetchErr.Error())
}

// enqueueLinks adds in-scope discovered links to the queue, using the
// bloom cache to skip URLs already attempted this run.
func (c *Crawler) enqueueLinks(ctx context.Context, site *docdex.Site, links []string, seen *bloom.Filter, logger *slog.Logger) {
	for _, link := range links {
		normalized := NormalizeURL(link)
		if seen.Test(normalized) {
			continue
		}
		seen.Add(normalized)

		if _, err := c.Queue.Enqueue(ctx, site.ID, normalized); err != nil {
			logger.Warn("enqueue failed", "url", normalized, "error", err)
		}
	}
}

// seedFromSitemaps enqueues sitemap-discovered URLs before BFS begins.
// Sites without sitemaps rely on link discovery alone.
func (c *Crawler) seedFromSitemaps(ctx context.Context, site *docdex.Site, seen *bloom.Filter, logger *slog.Logger) {
	if c.Sitemaps == nil {
		return
	}

	urls, err := c.Sitemaps.DiscoverURLs(ctx, site.BaseURL)
	if err != nil {
		logger.Warn("sitemap discovery failed", "error", err)
		return
	}
	if len(urls) > 0 {
		logger.Info("seeding queue from sitemaps", "count", len(urls))
		c.enqueueLinks(ctx, site, urls, seen, logger)
	}
}

// updateProgress recomputes the site's page counters from the queue
// and stamps the site's heartbeat so observers can tell the crawl is
// alive.
func (c *Crawler) updateProgress(ctx context.Context, site *docdex.Site, result *Result) error {
	counts, err := c.Queue.CountQueue(ctx, site.ID)
	if err != nil {
		return err
	}
	if err := c.Sites.UpdateSiteProgress(ctx, site.ID, counts.Completed, counts.Total()); err != nil {
		return err
	}
	return c.Sites.TouchSiteHeartbeat(ctx, site.ID)
}

// finishSite transitions the drained site to completed or failed.
func (c *Crawler) finishSite(ctx context.Context, site *docdex.Site, result *Result, maxFailures int, logger *slog.Logger) error {
	status := docdex.SiteStatusCompleted
	var errMsg string
	if result.Failed > maxFailures {
		status = docdex.SiteStatusFailed
		errMsg = "too many page failures"
	}

	now := time.Now().UTC()
	upd := docdex.SiteUpdate{Status: &status, IndexedDate: &now}
	if errMsg != "" {
		upd.ErrorMessage = &errMsg
	}
	if _, err := c.Sites.UpdateSite(ctx, site.ID, upd); err != nil {
		return err
	}

	logger.Info("site crawl finished",
		"status", string(status),
		"indexed", result.Indexed,
		"failed", result.Failed,
	)
	return nil
}

// logger returns the configured logger or the default.
func (c *Crawler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
