package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/docdex/docdex"
)

// Ensure LoggingEmbedder implements docdex.Embedder.
var _ docdex.Embedder = (*LoggingEmbedder)(nil)

// LoggingEmbedder wraps an Embedder with timing logs for batch calls.
type LoggingEmbedder struct {
	next   docdex.Embedder
	logger *slog.Logger
}

// NewLoggingEmbedder creates a LoggingEmbedder.
func NewLoggingEmbedder(next docdex.Embedder, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// EmbedMany delegates to the wrapped embedder, logging batch size and
// duration.
func (e *LoggingEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	begin := time.Now()
	vectors, err := e.next.EmbedMany(ctx, texts)
	if err != nil {
		e.logger.Warn("embedding failed",
			"texts", len(texts),
			"duration", time.Since(begin),
			"error", err,
		)
		return nil, err
	}

	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	e.logger.Debug("embedded batch",
		"texts", len(texts),
		"dimension", dimension,
		"duration", time.Since(begin),
	)
	return vectors, nil
}

// EnsureModel delegates to the wrapped embedder.
func (e *LoggingEmbedder) EnsureModel(ctx context.Context) error {
	return e.next.EnsureModel(ctx)
}

// HealthCheck delegates to the wrapped embedder.
func (e *LoggingEmbedder) HealthCheck(ctx context.Context) error {
	return e.next.HealthCheck(ctx)
}
