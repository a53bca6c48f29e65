package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/mock"
)

func TestServer_handleSearchDocs(t *testing.T) {
	t.Parallel()

	t.Run("maps search results to the tool output schema", func(t *testing.T) {
		t.Parallel()

		var gotQuery string
		var gotOpts docdex.SearchOptions
		srv, err := NewServer(&mock.SearchService{
			SearchDocsFn: func(ctx context.Context, query string, opts docdex.SearchOptions) ([]docdex.SearchResult, error) {
				gotQuery = query
				gotOpts = opts
				return []docdex.SearchResult{{
					Content:        "install with go get",
					URL:            "https://a.com/docs/install",
					PageTitle:      "Install",
					HeadingPath:    "Install > Quick Start",
					SiteName:       "alpha",
					SiteVersion:    "1.0",
					RelevanceScore: 0.92,
				}}, nil
			},
		})
		require.NoError(t, err)

		siteID := int64(4)
		_, out, err := srv.handleSearchDocs(context.Background(), nil, SearchDocsInput{
			Query:  "how to install",
			SiteID: &siteID,
			Limit:  5,
		})
		require.NoError(t, err)

		assert.Equal(t, "how to install", gotQuery)
		require.NotNil(t, gotOpts.SiteID)
		assert.Equal(t, int64(4), *gotOpts.SiteID)
		assert.Equal(t, 5, gotOpts.Limit)

		require.Len(t, out.Results, 1)
		assert.Equal(t, "install with go get", out.Results[0].Content)
		assert.Equal(t, "Install > Quick Start", out.Results[0].HeadingPath)
		assert.Equal(t, "alpha", out.Results[0].SiteName)
		assert.InDelta(t, 0.92, out.Results[0].RelevanceScore, 1e-6)
	})

	t.Run("propagates search errors", func(t *testing.T) {
		t.Parallel()

		srv, err := NewServer(&mock.SearchService{
			SearchDocsFn: func(ctx context.Context, query string, opts docdex.SearchOptions) ([]docdex.SearchResult, error) {
				return nil, docdex.Errorf(docdex.EUNAVAILABLE, "embedding service unreachable")
			},
		})
		require.NoError(t, err)

		_, _, err = srv.handleSearchDocs(context.Background(), nil, SearchDocsInput{Query: "q"})
		require.Error(t, err)
		assert.Equal(t, docdex.EUNAVAILABLE, docdex.ErrorCode(err))
	})
}

func TestServer_handleListSites(t *testing.T) {
	t.Parallel()

	indexed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	srv, err := NewServer(&mock.SearchService{
		ListCompletedSitesFn: func(ctx context.Context) ([]*docdex.Site, error) {
			return []*docdex.Site{{
				ID:           7,
				Name:         "alpha",
				Version:      "1.0",
				IndexURL:     "https://a.com/docs/",
				Status:       docdex.SiteStatusCompleted,
				IndexedPages: 42,
				IndexedDate:  &indexed,
			}}, nil
		},
	})
	require.NoError(t, err)

	_, out, err := srv.handleListSites(context.Background(), nil, struct{}{})
	require.NoError(t, err)

	require.Len(t, out.Sites, 1)
	site := out.Sites[0]
	assert.Equal(t, int64(7), site.ID)
	assert.Equal(t, "alpha", site.Name)
	assert.Equal(t, "https://a.com/docs/", site.URL)
	assert.Equal(t, "completed", site.Status)
	assert.Equal(t, 42, site.PageCount)
	assert.Equal(t, "2025-06-01T12:00:00Z", site.IndexedDate)
}

func TestNewServer_requires_search_service(t *testing.T) {
	t.Parallel()

	_, err := NewServer(nil)
	require.Error(t, err)
	assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
}
