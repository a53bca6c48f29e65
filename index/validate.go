package index

import (
	"context"

	"github.com/docdex/docdex"
)

// ConsistencyReport records what the validator found and repaired for
// one site.
type ConsistencyReport struct {
	SiteID int64 `json:"siteId"`

	// OrphanVectors are vector IDs present in the vector store with no
	// matching chunk; they were deleted.
	OrphanVectors []string `json:"orphanVectors,omitempty"`

	// MissingVectors are chunk vector IDs with no matching embedding;
	// the chunks were deleted and their pages requeued.
	MissingVectors []string `json:"missingVectors,omitempty"`

	// ResetURLs are the pages requeued for re-crawl.
	ResetURLs []string `json:"resetUrls,omitempty"`
}

// Clean reports whether no repairs were needed.
func (r *ConsistencyReport) Clean() bool {
	return len(r.OrphanVectors) == 0 && len(r.MissingVectors) == 0
}

// ValidateSite reconciles the metadata and vector stores for a site:
// vector-store orphans are deleted, and chunks whose embeddings are
// missing are dropped with their pages reset to pending so a re-crawl
// regenerates them.
func (ix *Indexer) ValidateSite(ctx context.Context, siteID int64) (*ConsistencyReport, error) {
	report := &ConsistencyReport{SiteID: siteID}

	metaIDs, err := ix.Chunks.ListVectorIDsBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	vecIDs, err := ix.Vectors.ListVectorIDs(ctx, &docdex.VectorFilter{SiteID: &siteID})
	if err != nil {
		return nil, err
	}

	meta := make(map[string]bool, len(metaIDs))
	for _, id := range metaIDs {
		meta[id] = true
	}
	vec := make(map[string]bool, len(vecIDs))
	for _, id := range vecIDs {
		vec[id] = true
	}

	for _, id := range vecIDs {
		if !meta[id] {
			report.OrphanVectors = append(report.OrphanVectors, id)
		}
	}
	for _, id := range metaIDs {
		if !vec[id] {
			report.MissingVectors = append(report.MissingVectors, id)
		}
	}

	if len(report.OrphanVectors) > 0 {
		if err := ix.Vectors.DeleteByVectorIDs(ctx, report.OrphanVectors); err != nil {
			return nil, err
		}
	}

	if len(report.MissingVectors) > 0 {
		urls, err := ix.Chunks.FindURLsByVectorIDs(ctx, siteID, report.MissingVectors)
		if err != nil {
			return nil, err
		}
		report.ResetURLs = urls

		if err := ix.Queue.ResetEntriesForURLs(ctx, siteID, urls); err != nil {
			return nil, err
		}
		if err := ix.Chunks.DeleteChunksByVectorIDs(ctx, siteID, report.MissingVectors); err != nil {
			return nil, err
		}
	}

	if !report.Clean() {
		ix.logger().Info("consistency report",
			"site_id", siteID,
			"orphan_vectors", len(report.OrphanVectors),
			"missing_vectors", len(report.MissingVectors),
			"reset_urls", len(report.ResetURLs),
		)
	}
	return report, nil
}
