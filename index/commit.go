package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/docdex/docdex"
)

// commitPage is the chunk/embed stage handed to the crawler: it chunks
// the page, embeds the chunk texts, and commits to both stores with the
// vector store written first.
func (ix *Indexer) commitPage(ctx context.Context, site *docdex.Site, doc *docdex.PageDoc) error {
	contentChunks := ix.Chunker.Chunk(doc)
	if len(contentChunks) == 0 {
		return nil
	}

	// Re-crawled pages (repair, update) replace their prior chunks.
	if err := ix.purgePriorChunks(ctx, site.ID, doc.URL); err != nil {
		return err
	}

	texts := make([]string, len(contentChunks))
	for i, c := range contentChunks {
		texts[i] = c.Content
	}

	embeddings, err := ix.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(contentChunks) {
		return docdex.Errorf(docdex.EINTERNAL,
			"embedder returned %d vectors for %d chunks", len(embeddings), len(contentChunks))
	}

	chunks := make([]*docdex.Chunk, len(contentChunks))
	records := make([]*docdex.EmbeddingRecord, len(contentChunks))
	for i, c := range contentChunks {
		vectorID := uuid.New().String()
		contentHash := fmt.Sprintf("%x", xxhash.Sum64String(c.Content))

		chunks[i] = &docdex.Chunk{
			SiteID:       site.ID,
			URL:          doc.URL,
			PageTitle:    c.PageTitle,
			HeadingPath:  c.HeadingPath,
			ChunkContent: c.Content,
			ChunkIndex:   c.ChunkIndex,
			VectorID:     vectorID,
			ContentHash:  contentHash,
		}
		records[i] = &docdex.EmbeddingRecord{
			VectorID:     vectorID,
			Embedding:    embeddings[i],
			ChunkContent: c.Content,
			Metadata: docdex.VectorMetadata{
				SiteID:      site.ID,
				URL:         doc.URL,
				PageTitle:   c.PageTitle,
				HeadingPath: c.HeadingPath,
				ChunkIndex:  c.ChunkIndex,
				ContentHash: contentHash,
			},
		}
	}

	// Vector-first commit: the metadata row is what makes a chunk
	// visible, so an interrupted write leaves only repairable vector
	// orphans.
	if err := ix.Vectors.UpsertMany(ctx, records); err != nil {
		return err
	}
	if err := ix.Chunks.InsertChunks(ctx, chunks); err != nil {
		// Best-effort rollback; the consistency validator converges any
		// leftovers.
		vectorIDs := make([]string, len(records))
		for i, r := range records {
			vectorIDs[i] = r.VectorID
		}
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if delErr := ix.Vectors.DeleteByVectorIDs(rollbackCtx, vectorIDs); delErr != nil {
			ix.logger().Warn("vector rollback failed, validator will repair",
				"url", doc.URL, "error", delErr)
		}
		return err
	}

	// Opportunistic index training once the record count crosses the
	// threshold.
	if err := ix.Vectors.CreateIndex(ctx); err != nil {
		ix.logger().Warn("vector index creation failed", "error", err)
	}

	return nil
}

// purgePriorChunks removes any chunks (and their vectors) previously
// committed for the page.
func (ix *Indexer) purgePriorChunks(ctx context.Context, siteID int64, url string) error {
	prior, err := ix.Chunks.ListVectorIDsByURL(ctx, siteID, url)
	if err != nil {
		return err
	}
	if len(prior) == 0 {
		return nil
	}
	if err := ix.Vectors.DeleteByVectorIDs(ctx, prior); err != nil {
		return err
	}
	return ix.Chunks.DeleteChunksByVectorIDs(ctx, siteID, prior)
}
