package docdex

import "context"

// VectorMetadata is the denormalized chunk context stored alongside an
// embedding so search results can be rendered without a metadata join.
type VectorMetadata struct {
	SiteID      int64  `json:"siteId"`
	URL         string `json:"url"`
	PageTitle   string `json:"pageTitle,omitempty"`
	HeadingPath string `json:"headingPath,omitempty"`
	ChunkIndex  int    `json:"chunkIndex"`
	ContentHash string `json:"contentHash,omitempty"`
}

// EmbeddingRecord is a row in the vector store.
type EmbeddingRecord struct {
	// VectorID matches the owning Chunk's VectorID.
	VectorID string `json:"vectorId"`

	// Embedding is a fixed-dimension vector. The dimension is pinned by
	// the first record written to a store.
	Embedding []float32 `json:"embedding"`

	// ChunkContent duplicates the chunk text so results can be returned
	// from the vector store alone.
	ChunkContent string `json:"chunkContent"`

	Metadata VectorMetadata `json:"metadata"`
}

// Validate returns an error if the record contains invalid fields.
func (r *EmbeddingRecord) Validate() error {
	if r.VectorID == "" {
		return Errorf(EINVALID, "embedding record vector ID required")
	}
	if len(r.Embedding) == 0 {
		return Errorf(EINVALID, "embedding record vector required")
	}
	if r.Metadata.SiteID == 0 {
		return Errorf(EINVALID, "embedding record site ID required")
	}
	return nil
}

// VectorFilter restricts a search or deletion to matching metadata.
// A nil filter matches everything.
type VectorFilter struct {
	// SiteID restricts matches to a single site.
	SiteID *int64

	// SiteIDs restricts matches to any of the given sites. Applied in
	// addition to SiteID when both are set.
	SiteIDs []int64
}

// Match reports whether metadata passes the filter.
func (f *VectorFilter) Match(md VectorMetadata) bool {
	if f == nil {
		return true
	}
	if f.SiteID != nil && md.SiteID != *f.SiteID {
		return false
	}
	if len(f.SiteIDs) > 0 {
		found := false
		for _, id := range f.SiteIDs {
			if md.SiteID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VectorMatch is a search hit.
type VectorMatch struct {
	VectorID     string
	ChunkContent string
	Metadata     VectorMetadata

	// Distance is the cosine distance to the query, in [0, 2].
	Distance float32
}

// RelevanceScore converts a cosine distance to a relevance score in
// [0, 1], higher is more similar.
func RelevanceScore(distance float32) float32 {
	score := 1 - distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// VectorStore is an append-and-search store of fixed-dimension embedding
// records. The first upsert pins the store's dimension; records of other
// dimensions are rejected with EINVALID unless the store is empty, in
// which case it is recreated for the new dimension.
type VectorStore interface {
	// UpsertMany writes records, replacing any with matching vector IDs.
	UpsertMany(ctx context.Context, records []*EmbeddingRecord) error

	// DeleteByVectorIDs removes records by vector ID. Missing IDs are
	// ignored.
	DeleteByVectorIDs(ctx context.Context, vectorIDs []string) error

	// DeleteWhere removes all records matching the filter.
	DeleteWhere(ctx context.Context, filter *VectorFilter) error

	// Search returns the k nearest records by cosine distance, sorted
	// ascending by distance, restricted to the filter.
	Search(ctx context.Context, query []float32, k int, filter *VectorFilter) ([]VectorMatch, error)

	// ListVectorIDs returns the vector IDs of all records matching the
	// filter.
	ListVectorIDs(ctx context.Context, filter *VectorFilter) ([]string, error)

	// Count returns the number of stored records.
	Count() int

	// Dimension returns the pinned vector dimension, or 0 when the
	// store is empty.
	Dimension() int

	// CreateIndex prepares the store for search once the record count
	// crosses the training threshold.
	CreateIndex(ctx context.Context) error

	// Optimize compacts the store's persisted state.
	Optimize(ctx context.Context) error

	// HealthCheck verifies the store is usable.
	HealthCheck(ctx context.Context) error

	// Close releases the store handle.
	Close() error
}
