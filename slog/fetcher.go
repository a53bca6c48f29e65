// Package slog provides logging decorators for docdex interfaces.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/docdex/docdex"
)

// Ensure LoggingFetcher implements docdex.Fetcher.
var _ docdex.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with debug logging of outcomes and
// timings.
type LoggingFetcher struct {
	next   docdex.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a LoggingFetcher.
func NewLoggingFetcher(next docdex.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch delegates to the wrapped fetcher, logging the classified
// outcome.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (*docdex.FetchResult, error) {
	begin := time.Now()
	result, err := f.next.Fetch(ctx, url)
	if err != nil {
		f.logger.Debug("fetch failed",
			"url", url,
			"duration", time.Since(begin),
			"error", err,
		)
		return nil, err
	}

	f.logger.Debug("fetch",
		"url", url,
		"bytes", len(result.Body),
		"content_type", result.ContentType,
		"duration", time.Since(begin),
	)
	return result, nil
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}
