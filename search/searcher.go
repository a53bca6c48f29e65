// Package search implements the retrieval engine: it embeds a query
// with the same model used at ingestion, searches the vector store, and
// joins hits to site metadata.
package search

import (
	"context"
	"regexp"
	"sort"

	"github.com/docdex/docdex"
)

// DefaultLimit is the result count when the caller does not specify
// one.
const DefaultLimit = 10

// overfetchFactor over-requests vector matches so the completed-only
// post-filter still fills the limit.
const overfetchFactor = 3

// Ensure Searcher implements docdex.SearchService at compile time.
var _ docdex.SearchService = (*Searcher)(nil)

// Searcher implements docdex.SearchService.
type Searcher struct {
	Sites    docdex.SiteService
	Vectors  docdex.VectorStore
	Embedder docdex.Embedder
}

// NewSearcher creates a Searcher.
func NewSearcher(sites docdex.SiteService, vectors docdex.VectorStore, embedder docdex.Embedder) *Searcher {
	return &Searcher{Sites: sites, Vectors: vectors, Embedder: embedder}
}

// SearchDocs embeds the query, searches the vector store with the
// resolved site filter, and returns completed-site results sorted by
// descending relevance.
func (s *Searcher) SearchDocs(ctx context.Context, query string, opts docdex.SearchOptions) ([]docdex.SearchResult, error) {
	if query == "" {
		return nil, docdex.Errorf(docdex.EINVALID, "search query required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	completed, filter, err := s.resolveSites(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return []docdex.SearchResult{}, nil
	}

	vectors, err := s.Embedder.EmbedMany(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, docdex.Errorf(docdex.EINTERNAL, "embedder returned %d vectors for one query", len(vectors))
	}

	matches, err := s.Vectors.Search(ctx, vectors[0], limit*overfetchFactor, filter)
	if err != nil {
		return nil, err
	}

	results := make([]docdex.SearchResult, 0, limit)
	for _, m := range matches {
		site, ok := completed[m.Metadata.SiteID]
		if !ok {
			// Orphans and not-yet-completed sites are filtered here.
			continue
		}
		results = append(results, docdex.SearchResult{
			Content:        m.ChunkContent,
			URL:            m.Metadata.URL,
			PageTitle:      m.Metadata.PageTitle,
			HeadingPath:    m.Metadata.HeadingPath,
			SiteName:       site.Name,
			SiteVersion:    site.Version,
			RelevanceScore: docdex.RelevanceScore(m.Distance),
		})
		if len(results) == limit {
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return results, nil
}

// resolveSites returns the completed sites eligible for this query and
// the vector filter to push down.
func (s *Searcher) resolveSites(ctx context.Context, opts docdex.SearchOptions) (map[int64]*docdex.Site, *docdex.VectorFilter, error) {
	sites, err := s.Sites.FindSites(ctx)
	if err != nil {
		return nil, nil, err
	}

	var re *regexp.Regexp
	if opts.SitesFilter != "" {
		re, err = regexp.Compile(opts.SitesFilter)
		if err != nil {
			return nil, nil, docdex.Errorf(docdex.EINVALID, "invalid sites filter %q: %v", opts.SitesFilter, err)
		}
	}

	completed := make(map[int64]*docdex.Site)
	var filterIDs []int64
	for _, site := range sites {
		if site.Status != docdex.SiteStatusCompleted {
			continue
		}
		if opts.SiteID != nil && site.ID != *opts.SiteID {
			continue
		}
		if re != nil && !re.MatchString(site.Name) && !re.MatchString(site.BaseURL) {
			continue
		}
		completed[site.ID] = site
		filterIDs = append(filterIDs, site.ID)
	}

	filter := &docdex.VectorFilter{}
	switch {
	case opts.SiteID != nil:
		filter.SiteID = opts.SiteID
	case re != nil:
		filter.SiteIDs = filterIDs
	default:
		filter = nil
	}
	return completed, filter, nil
}

// ListCompletedSites returns all sites with status completed.
func (s *Searcher) ListCompletedSites(ctx context.Context) ([]*docdex.Site, error) {
	sites, err := s.Sites.FindSites(ctx)
	if err != nil {
		return nil, err
	}

	var completed []*docdex.Site
	for _, site := range sites {
		if site.Status == docdex.SiteStatusCompleted {
			completed = append(completed, site)
		}
	}
	return completed, nil
}
