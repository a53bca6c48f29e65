package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/mock"
	"github.com/docdex/docdex/search"
)

// fixedSites returns a site service with one completed and one
// indexing site.
func fixedSites() *mock.SiteService {
	return &mock.SiteService{
		FindSitesFn: func(ctx context.Context) ([]*docdex.Site, error) {
			return []*docdex.Site{
				{ID: 1, Name: "alpha", Version: "1.0", BaseURL: "https://alpha.com/docs/", Status: docdex.SiteStatusCompleted},
				{ID: 2, Name: "beta", BaseURL: "https://beta.com/docs/", Status: docdex.SiteStatusIndexing},
				{ID: 3, Name: "gamma", BaseURL: "https://gamma.com/docs/", Status: docdex.SiteStatusCompleted},
			}, nil
		},
	}
}

// queryEmbedder embeds every text to the same unit vector.
func queryEmbedder() *mock.Embedder {
	return &mock.Embedder{
		EmbedManyFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			vecs := make([][]float32, len(texts))
			for i := range texts {
				vecs[i] = []float32{1, 0, 0}
			}
			return vecs, nil
		},
	}
}

func match(vectorID string, siteID int64, distance float32) docdex.VectorMatch {
	return docdex.VectorMatch{
		VectorID:     vectorID,
		ChunkContent: "content " + vectorID,
		Metadata: docdex.VectorMetadata{
			SiteID:    siteID,
			URL:       "https://alpha.com/docs/p",
			PageTitle: "P",
		},
		Distance: distance,
	}
}

func TestSearcher_SearchDocs(t *testing.T) {
	t.Parallel()

	t.Run("returns completed-site results sorted by descending relevance", func(t *testing.T) {
		t.Parallel()

		vectors := &mock.VectorStore{
			SearchFn: func(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error) {
				return []docdex.VectorMatch{
					match("close", 1, 0.1),
					match("indexing-site", 2, 0.2),
					match("far", 3, 0.6),
				}, nil
			},
		}

		s := search.NewSearcher(fixedSites(), vectors, queryEmbedder())
		results, err := s.SearchDocs(context.Background(), "how do I install", docdex.SearchOptions{})
		require.NoError(t, err)

		require.Len(t, results, 2, "the indexing site's hit is filtered out")
		assert.Equal(t, "content close", results[0].Content)
		assert.Equal(t, "alpha", results[0].SiteName)
		assert.Equal(t, "1.0", results[0].SiteVersion)
		assert.InDelta(t, 0.9, results[0].RelevanceScore, 1e-6)
		assert.Equal(t, "gamma", results[1].SiteName)
		assert.Greater(t, results[0].RelevanceScore, results[1].RelevanceScore)
	})

	t.Run("pushes a single site filter down to the vector store", func(t *testing.T) {
		t.Parallel()

		var gotFilter *docdex.VectorFilter
		vectors := &mock.VectorStore{
			SearchFn: func(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error) {
				gotFilter = filter
				return nil, nil
			},
		}

		s := search.NewSearcher(fixedSites(), vectors, queryEmbedder())
		siteID := int64(1)
		_, err := s.SearchDocs(context.Background(), "q", docdex.SearchOptions{SiteID: &siteID})
		require.NoError(t, err)
		require.NotNil(t, gotFilter)
		require.NotNil(t, gotFilter.SiteID)
		assert.Equal(t, int64(1), *gotFilter.SiteID)
	})

	t.Run("resolves sites_filter regex to candidate site IDs", func(t *testing.T) {
		t.Parallel()

		var gotFilter *docdex.VectorFilter
		vectors := &mock.VectorStore{
			SearchFn: func(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error) {
				gotFilter = filter
				return nil, nil
			},
		}

		s := search.NewSearcher(fixedSites(), vectors, queryEmbedder())
		_, err := s.SearchDocs(context.Background(), "q", docdex.SearchOptions{SitesFilter: "^alpha$"})
		require.NoError(t, err)
		require.NotNil(t, gotFilter)
		assert.Equal(t, []int64{1}, gotFilter.SiteIDs)
	})

	t.Run("rejects an invalid regex", func(t *testing.T) {
		t.Parallel()

		s := search.NewSearcher(fixedSites(), &mock.VectorStore{}, queryEmbedder())
		_, err := s.SearchDocs(context.Background(), "q", docdex.SearchOptions{SitesFilter: "("})
		require.Error(t, err)
		assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
	})

	t.Run("rejects an empty query", func(t *testing.T) {
		t.Parallel()

		s := search.NewSearcher(fixedSites(), &mock.VectorStore{}, queryEmbedder())
		_, err := s.SearchDocs(context.Background(), "", docdex.SearchOptions{})
		require.Error(t, err)
		assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
	})

	t.Run("returns empty result when no completed site matches", func(t *testing.T) {
		t.Parallel()

		searchCalled := false
		vectors := &mock.VectorStore{
			SearchFn: func(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error) {
				searchCalled = true
				return nil, nil
			},
		}

		s := search.NewSearcher(fixedSites(), vectors, queryEmbedder())
		results, err := s.SearchDocs(context.Background(), "q", docdex.SearchOptions{SitesFilter: "^beta$"})
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.False(t, searchCalled, "the vector store is not consulted without candidates")
	})

	t.Run("honors the limit", func(t *testing.T) {
		t.Parallel()

		vectors := &mock.VectorStore{
			SearchFn: func(ctx context.Context, query []float32, k int, filter *docdex.VectorFilter) ([]docdex.VectorMatch, error) {
				var matches []docdex.VectorMatch
				for i := 0; i < 20; i++ {
					matches = append(matches, match(string(rune('a'+i)), 1, float32(i)*0.01))
				}
				return matches, nil
			},
		}

		s := search.NewSearcher(fixedSites(), vectors, queryEmbedder())
		results, err := s.SearchDocs(context.Background(), "q", docdex.SearchOptions{Limit: 5})
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})
}

func TestSearcher_ListCompletedSites(t *testing.T) {
	t.Parallel()

	s := search.NewSearcher(fixedSites(), &mock.VectorStore{}, queryEmbedder())
	sites, err := s.ListCompletedSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "alpha", sites[0].Name)
	assert.Equal(t, "gamma", sites[1].Name)
}
