package mock

import (
	"context"

	"github.com/docdex/docdex"
)

var _ docdex.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of docdex.Extractor.
type Extractor struct {
	ExtractFn func(pageURL, baseURL string, html []byte) (*docdex.PageDoc, error)
}

func (e *Extractor) Extract(pageURL, baseURL string, html []byte) (*docdex.PageDoc, error) {
	return e.ExtractFn(pageURL, baseURL, html)
}

var _ docdex.Converter = (*Converter)(nil)

// Converter is a mock implementation of docdex.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}

var _ docdex.Chunker = (*Chunker)(nil)

// Chunker is a mock implementation of docdex.Chunker.
type Chunker struct {
	ChunkFn func(doc *docdex.PageDoc) []docdex.ContentChunk
}

func (c *Chunker) Chunk(doc *docdex.PageDoc) []docdex.ContentChunk {
	return c.ChunkFn(doc)
}

var _ docdex.SearchService = (*SearchService)(nil)

// SearchService is a mock implementation of docdex.SearchService.
type SearchService struct {
	SearchDocsFn         func(ctx context.Context, query string, opts docdex.SearchOptions) ([]docdex.SearchResult, error)
	ListCompletedSitesFn func(ctx context.Context) ([]*docdex.Site, error)
}

func (s *SearchService) SearchDocs(ctx context.Context, query string, opts docdex.SearchOptions) ([]docdex.SearchResult, error) {
	return s.SearchDocsFn(ctx, query, opts)
}

func (s *SearchService) ListCompletedSites(ctx context.Context) ([]*docdex.Site, error) {
	return s.ListCompletedSitesFn(ctx)
}

var _ docdex.Embedder = (*Embedder)(nil)

// Embedder is a mock implementation of docdex.Embedder.
type Embedder struct {
	EmbedManyFn   func(ctx context.Context, texts []string) ([][]float32, error)
	EnsureModelFn func(ctx context.Context) error
	HealthCheckFn func(ctx context.Context) error
}

func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedManyFn(ctx, texts)
}

func (e *Embedder) EnsureModel(ctx context.Context) error {
	if e.EnsureModelFn == nil {
		return nil
	}
	return e.EnsureModelFn(ctx)
}

func (e *Embedder) HealthCheck(ctx context.Context) error {
	if e.HealthCheckFn == nil {
		return nil
	}
	return e.HealthCheckFn(ctx)
}
