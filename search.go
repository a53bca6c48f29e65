package docdex

import "context"

// SearchOptions configures a search_docs query.
type SearchOptions struct {
	// SiteID restricts results to a single site.
	SiteID *int64 `json:"siteId,omitempty"`

	// SitesFilter is a regular expression matched against site names and
	// base URLs to pre-resolve candidate sites.
	SitesFilter string `json:"sitesFilter,omitempty"`

	// Limit is the maximum number of results. Defaults to 10.
	Limit int `json:"limit,omitempty"`
}

// SearchResult is a ranked retrieval hit joined with its site metadata.
type SearchResult struct {
	Content     string `json:"content"`
	URL         string `json:"url"`
	PageTitle   string `json:"pageTitle,omitempty"`
	HeadingPath string `json:"headingPath,omitempty"`
	SiteName    string `json:"siteName"`
	SiteVersion string `json:"siteVersion,omitempty"`

	// RelevanceScore is 1 - cosine distance, clamped to [0, 1].
	RelevanceScore float32 `json:"relevanceScore"`
}

// SearchService answers semantic queries over indexed documentation.
// Only sites with status completed contribute results.
type SearchService interface {
	// SearchDocs embeds the query, searches the vector store, and joins
	// the hits to site metadata, returning results sorted by descending
	// relevance.
	SearchDocs(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)

	// ListCompletedSites returns all sites with status completed.
	ListCompletedSites(ctx context.Context) ([]*Site, error)
}
