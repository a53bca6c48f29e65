// Package index implements the single-writer background indexer: it
// owns the data directory's advisory lock, heartbeats while running,
// drains crawled pages into chunks and embeddings, and keeps the
// metadata and vector stores consistent.
package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/crawl"
)

// Timing defaults for the lock-and-heartbeat protocol.
const (
	// DefaultHeartbeatInterval is how often the running indexer stamps
	// the heartbeat row.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultStaleAfter is the heartbeat age past which a lock holder
	// is considered dead and its lock may be broken.
	DefaultStaleAfter = 60 * time.Second

	// DefaultLinger is how long the indexer waits for new work after
	// the queue drains before exiting.
	DefaultLinger = 2 * time.Second
)

// Indexer is the background single writer. Exactly one instance may be
// active per data directory.
type Indexer struct {
	Sites      docdex.SiteService
	Queue      docdex.QueueService
	Chunks     docdex.ChunkService
	Heartbeats docdex.HeartbeatService
	Vectors    docdex.VectorStore
	Embedder   docdex.Embedder
	Chunker    docdex.Chunker
	Crawler    *crawl.Crawler

	// LockPath is the advisory lock file, <data_dir>/.indexer.lock.
	LockPath string

	Logger *slog.Logger

	// Zero values fall back to the package defaults.
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	Linger            time.Duration
}

// Run acquires the indexer lock and processes sites until no work
// remains or the context is canceled. Returns ECONFLICT when a live
// indexer already holds the lock.
func (ix *Indexer) Run(ctx context.Context) error {
	logger := ix.logger()

	lock, err := ix.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer lock.release()

	// Graceful termination: whatever happens below, leave status idle
	// unless we crashed hard enough to skip deferred calls entirely.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := ix.Heartbeats.SetHeartbeat(shutdownCtx, docdex.IndexerStatusIdle); err != nil {
			logger.Warn("failed to record idle heartbeat on shutdown", "error", err)
		}
	}()

	if err := ix.Heartbeats.SetHeartbeat(ctx, docdex.IndexerStatusIndexing); err != nil {
		return err
	}
	stopHeartbeat := ix.startHeartbeat(ctx)
	defer stopHeartbeat()

	// Startup consistency pass over every site.
	if err := ix.validateAll(ctx); err != nil {
		logger.Warn("startup consistency validation failed", "error", err)
	}

	return ix.workLoop(ctx)
}

// workLoop drains sites with outstanding work, lingering briefly for
// new work before exiting.
func (ix *Indexer) workLoop(ctx context.Context) error {
	logger := ix.logger()
	linger := ix.Linger
	if linger <= 0 {
		linger = DefaultLinger
	}

	idleSince := time.Time{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		site, err := ix.nextSiteWithWork(ctx)
		if err != nil {
			return err
		}
		if site == nil {
			if idleSince.IsZero() {
				idleSince = time.Now()
			}
			if time.Since(idleSince) >= linger {
				logger.Info("no outstanding work, indexer exiting")
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(linger / 4):
			}
			continue
		}
		idleSince = time.Time{}

		if err := ix.indexSite(ctx, site); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Error("site indexing failed", "site", site.Name, "error", err)
		}
	}
}

// nextSiteWithWork returns a site with status pending or indexing and
// non-terminal queue entries, or its seed not yet crawled.
func (ix *Indexer) nextSiteWithWork(ctx context.Context) (*docdex.Site, error) {
	sites, err := ix.Sites.FindSites(ctx)
	if err != nil {
		return nil, err
	}

	for _, site := range sites {
		switch site.Status {
		case docdex.SiteStatusPending, docdex.SiteStatusIndexing:
		default:
			continue
		}

		counts, err := ix.Queue.CountQueue(ctx, site.ID)
		if err != nil {
			return nil, err
		}
		// A pending site with an empty queue still needs its seed
		// crawled; the crawler enqueues it.
		if counts.Remaining() > 0 || site.Status == docdex.SiteStatusPending {
			return site, nil
		}
	}
	return nil, nil
}

// indexSite runs the full crawl-and-commit pipeline for one site.
func (ix *Indexer) indexSite(ctx context.Context, site *docdex.Site) error {
	logger := ix.logger().With("site", site.Name, "site_id", site.ID)
	logger.Info("indexing site", "url", site.IndexURL)

	if err := ix.Embedder.EnsureModel(ctx); err != nil {
		ix.failSite(ctx, site, err)
		return err
	}

	status := docdex.SiteStatusIndexing
	if _, err := ix.Sites.UpdateSite(ctx, site.ID, docdex.SiteUpdate{Status: &status}); err != nil {
		return err
	}

	_, err := ix.Crawler.CrawlSite(ctx, site, ix.commitPage)
	switch {
	case errors.Is(err, crawl.ErrSeedDisallowed):
		ix.failSite(ctx, site, err)
		return err
	case err != nil && ctx.Err() != nil:
		// Graceful shutdown: the site returns to pending so the next
		// run resumes it.
		pending := docdex.SiteStatusPending
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = ix.Sites.UpdateSite(cleanupCtx, site.ID, docdex.SiteUpdate{Status: &pending})
		return err
	case err != nil:
		ix.failSite(ctx, site, err)
		return err
	}

	// Post-completion consistency validation.
	report, err := ix.ValidateSite(ctx, site.ID)
	if err != nil {
		logger.Warn("consistency validation failed", "error", err)
	} else if !report.Clean() {
		logger.Warn("consistency repairs applied",
			"orphan_vectors", len(report.OrphanVectors),
			"missing_vectors", len(report.MissingVectors),
			"reset_urls", len(report.ResetURLs),
		)
	}
	return nil
}

// failSite marks the site failed with the error's message.
func (ix *Indexer) failSite(ctx context.Context, site *docdex.Site, cause error) {
	status := docdex.SiteStatusFailed
	msg := cause.Error()
	if appMsg := docdex.ErrorMessage(cause); appMsg != "" && appMsg != "Internal error." {
		msg = appMsg
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := ix.Sites.UpdateSite(cleanupCtx, site.ID, docdex.SiteUpdate{Status: &status, ErrorMessage: &msg}); err != nil {
		ix.logger().Warn("failed to mark site failed", "site", site.Name, "error", err)
	}
}

// startHeartbeat stamps the heartbeat row on an interval independent of
// work transactions, returning a stop function.
func (ix *Indexer) startHeartbeat(ctx context.Context) func() {
	interval := ix.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ix.Heartbeats.SetHeartbeat(ctx, docdex.IndexerStatusIndexing); err != nil {
					ix.logger().Warn("heartbeat write failed", "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

// validateAll runs the consistency validator over every site.
func (ix *Indexer) validateAll(ctx context.Context) error {
	sites, err := ix.Sites.FindSites(ctx)
	if err != nil {
		return err
	}
	for _, site := range sites {
		if _, err := ix.ValidateSite(ctx, site.ID); err != nil {
			return err
		}
	}
	return nil
}

// logger returns the configured logger or the default.
func (ix *Indexer) logger() *slog.Logger {
	if ix.Logger != nil {
		return ix.Logger
	}
	return slog.Default()
}
