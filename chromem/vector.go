// Package chromem provides a chromem-go backed implementation of
// docdex.VectorStore. Embeddings persist under a single directory; a
// sidecar manifest tracks vector IDs, their owning sites, and the
// pinned dimension so the store can be enumerated and validated.
package chromem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/docdex/docdex"
)

// collectionName is the single collection holding all documentation
// embeddings.
const collectionName = "docdex"

// indexThreshold is the record count past which CreateIndex considers
// the store trained.
const indexThreshold = 256

// Compile-time interface verification.
var _ docdex.VectorStore = (*VectorStore)(nil)

// VectorStore implements docdex.VectorStore using a persistent
// chromem-go collection.
type VectorStore struct {
	dir      string
	logger   *slog.Logger
	db       *chromem.DB
	col      *chromem.Collection
	manifest *manifest
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithLogger sets the logger used for corruption recovery warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) {
		s.logger = logger
	}
}

// Open opens (or creates) the vector store rooted at dir. A store that
// fails its self-check is moved aside to a timestamped backup path and
// recreated empty, surfacing a warning through the logger.
func Open(dir string, opts ...Option) (*VectorStore, error) {
	s := &VectorStore{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.open(); err != nil {
		// Corrupted stores are recoverable: preserve the directory for
		// inspection and start fresh.
		backup := fmt.Sprintf("%s.corrupt.%s", dir, time.Now().UTC().Format("20060102T150405Z"))
		if renameErr := os.Rename(dir, backup); renameErr != nil {
			return nil, docdex.Errorf(docdex.ECORRUPT,
				"vector store at %s is corrupted (%v) and could not be moved aside: %v", dir, err, renameErr)
		}
		s.logger.Warn("vector store corrupted, recreated empty",
			"dir", dir,
			"backup", backup,
			"error", err,
		)
		if err := s.open(); err != nil {
			return nil, docdex.Errorf(docdex.ECORRUPT, "failed to recreate vector store at %s: %v", dir, err)
		}
	}

	return s, nil
}

// open loads the chromem database and the manifest, verifying they
// agree on record count.
func (s *VectorStore) open() error {
	db, err := chromem.NewPersistentDB(s.dir, false)
	if err != nil {
		return err
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, noEmbeddingFunc)
	if err != nil {
		return err
	}

	m, err := loadManifest(manifestPath(s.dir))
	if err != nil {
		return err
	}
	if m.CountAll() != col.Count() {
		return fmt.Errorf("manifest records %d vectors but collection holds %d", m.CountAll(), col.Count())
	}

	s.db = db
	s.col = col
	s.manifest = m
	return nil
}

// noEmbeddingFunc guards against accidental text-embedding through the
// collection; all embeddings are computed upstream and supplied with
// the records.
func noEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, docdex.Errorf(docdex.EINTERNAL, "vector store does not embed text; supply embeddings")
}

// manifestPath returns the sidecar manifest location inside dir.
func manifestPath(dir string) string {
	return filepath.Join(dir, "manifest.json")
}

// UpsertMany writes records, replacing any with matching vector IDs.
// The first record written to an empty store pins the dimension; if the
// store is empty and a different dimension arrives, the collection is
// recreated for the new dimension.
func (s *VectorStore) UpsertMany(ctx context.Context, records []*docdex.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	dim := len(records[0].Embedding)
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if len(r.Embedding) != dim {
			return docdex.Errorf(docdex.EINVALID,
				"embedding dimension %d does not match batch dimension %d", len(r.Embedding), dim)
		}
	}

	switch {
	case s.manifest.Dimension == 0:
		s.manifest.Dimension = dim
	case s.manifest.Dimension != dim && s.Count() == 0:
		// Empty store: recreate for the new dimension.
		if err := s.recreate(); err != nil {
			return err
		}
		s.manifest.Dimension = dim
	case s.manifest.Dimension != dim:
		return docdex.Errorf(docdex.EINVALID,
			"embedding dimension %d does not match store dimension %d", dim, s.manifest.Dimension)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.VectorID,
			Embedding: r.Embedding,
			Content:   r.ChunkContent,
			Metadata:  encodeMetadata(r.Metadata),
		}
	}

	// Replaced IDs must be deleted first so counts stay consistent.
	var replaced []string
	for _, r := range records {
		if s.manifest.Has(r.VectorID) {
			replaced = append(replaced, r.VectorID)
		}
	}
	if len(replaced) > 0 {
		if err := s.col.Delete(ctx, nil, nil, replaced...); err != nil {
			return fmt.Errorf("replacing vectors: %w", err)
		}
		s.manifest.Remove(replaced)
	}

	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding vectors: %w", err)
	}
	for _, r := range records {
		s.manifest.Add(r.VectorID, r.Metadata.SiteID)
	}
	return s.manifest.Save(manifestPath(s.dir))
}

// recreate drops and recreates the collection.
func (s *VectorStore) recreate() error {
	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(collectionName, nil, noEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	s.col = col
	s.manifest.Reset()
	return s.manifest.Save(manifestPath(s.dir))
}

// DeleteByVectorIDs removes records by vector ID. Missing IDs are
// ignored.
func (s *VectorStore) DeleteByVectorIDs(ctx context.Context, vectorIDs []string) error {
	present := make([]string, 0, len(vectorIDs))
	for _, id := range vectorIDs {
		if s.manifest.Has(id) {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := s.col.Delete(ctx, nil, nil, present...); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	s.manifest.Remove(present)
	return s.manifest.Save(manifestPath(s.dir))
}

// DeleteWhere removes all records matching the filter.
func (s *VectorStore) DeleteWhere(ctx context.Context, filter *docdex.VectorFilter) error {
	return s.DeleteByVectorIDs(ctx, s.manifest.IDsMatching(filter))
}

// Search returns the k nearest records by cosine distance, ascending,
// restricted to the filter.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error) {
	if k <= 0 {
		return nil, docdex.Errorf(docdex.EINVALID, "search limit must be positive")
	}
	if s.manifest.Dimension != 0 && len(query) != s.manifest.Dimension {
		return nil, docdex.Errorf(docdex.EINVALID,
			"query dimension %d does not match store dimension %d", len(query), s.manifest.Dimension)
	}

	candidates := s.manifest.CountMatching(filter)
	if candidates == 0 {
		return nil, nil
	}

	// chromem rejects nResults larger than the candidate set.
	n := k
	if n > candidates {
		n = candidates
	}

	// A single-site equality filter is pushed down; multi-site filters
	// over-fetch and post-filter.
	var where map[string]string
	if filter != nil && filter.SiteID != nil && len(filter.SiteIDs) == 0 {
		where = map[string]string{"site_id": strconv.FormatInt(*filter.SiteID, 10)}
	} else if filter != nil && len(filter.SiteIDs) > 0 {
		n = s.col.Count()
	}

	results, err := s.col.QueryEmbedding(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	matches := make([]docdex.VectorMatch, 0, len(results))
	for _, r := range results {
		md := decodeMetadata(r.Metadata)
		if !filter.Match(md) {
			continue
		}
		matches = append(matches, docdex.VectorMatch{
			VectorID:     r.ID,
			ChunkContent: r.Content,
			Metadata:     md,
			Distance:     1 - r.Similarity,
		})
		if len(matches) == k {
			break
		}
	}

	// chromem returns similarity-descending order; distances ascend.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches, nil
}

// ListVectorIDs returns the vector IDs of all records matching the
// filter.
func (s *VectorStore) ListVectorIDs(_ context.Context, filter *docdex.VectorFilter) ([]string, error) {
	ids := s.manifest.IDsMatching(filter)
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of stored records.
func (s *VectorStore) Count() int {
	return s.col.Count()
}

// Dimension returns the pinned vector dimension, or 0 when empty.
func (s *VectorStore) Dimension() int {
	return s.manifest.Dimension
}

// CreateIndex prepares the store for search once the record count
// crosses the training threshold. The store searches exhaustively, so
// crossing the threshold only records that the store is trained.
func (s *VectorStore) CreateIndex(_ context.Context) error {
	if s.Count() < indexThreshold {
		return nil
	}
	if !s.manifest.Trained {
		s.manifest.Trained = true
		return s.manifest.Save(manifestPath(s.dir))
	}
	return nil
}

// Optimize compacts the store's persisted state by rewriting the
// manifest.
func (s *VectorStore) Optimize(_ context.Context) error {
	return s.manifest.Save(manifestPath(s.dir))
}

// HealthCheck verifies the store and manifest agree.
func (s *VectorStore) HealthCheck(_ context.Context) error {
	if s.col == nil {
		return docdex.Errorf(docdex.EUNAVAILABLE, "vector store is not open")
	}
	if got, want := s.col.Count(), s.manifest.CountAll(); got != want {
		return docdex.Errorf(docdex.ECORRUPT,
			"vector store holds %d records but manifest tracks %d", got, want)
	}
	return nil
}

// Close releases the store handle.
func (s *VectorStore) Close() error {
	if s.manifest != nil {
		return s.manifest.Save(manifestPath(s.dir))
	}
	return nil
}

// encodeMetadata flattens chunk context into chromem's string-keyed
// metadata.
func encodeMetadata(md docdex.VectorMetadata) map[string]string {
	return map[string]string{
		"site_id":      strconv.FormatInt(md.SiteID, 10),
		"url":          md.URL,
		"page_title":   md.PageTitle,
		"heading_path": md.HeadingPath,
		"chunk_index":  strconv.Itoa(md.ChunkIndex),
		"content_hash": md.ContentHash,
	}
}

// decodeMetadata restores chunk context from stored metadata.
func decodeMetadata(m map[string]string) docdex.VectorMetadata {
	siteID, _ := strconv.ParseInt(m["site_id"], 10, 64)
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	return docdex.VectorMetadata{
		SiteID:      siteID,
		URL:         m["url"],
		PageTitle:   m["page_title"],
		HeadingPath: m["heading_path"],
		ChunkIndex:  chunkIndex,
		ContentHash: m["content_hash"],
	}
}
