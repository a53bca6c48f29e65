package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/sqlite"
)

func TestSiteService_CreateSite(t *testing.T) {
	t.Parallel()

	t.Run("assigns ID, base URL, and UTC created date", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSiteService(mustOpenDB(t))
		ctx := context.Background()

		site := &docdex.Site{
			IndexURL: "https://example.com/docs/index.html",
			Name:     "example",
			Version:  "1.0",
		}
		require.NoError(t, s.CreateSite(ctx, site))

		assert.NotZero(t, site.ID)
		assert.Equal(t, "https://example.com/docs/", site.BaseURL)
		assert.Equal(t, docdex.SiteStatusPending, site.Status)
		assert.Equal(t, time.UTC, site.CreatedDate.Location())

		got, err := s.FindSiteByID(ctx, site.ID)
		require.NoError(t, err)
		assert.Equal(t, "example", got.Name)
		assert.Equal(t, time.UTC, got.CreatedDate.Location())
	})

	t.Run("rejects duplicate index URL", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSiteService(mustOpenDB(t))
		ctx := context.Background()

		require.NoError(t, s.CreateSite(ctx, &docdex.Site{IndexURL: "https://a.com/docs/", Name: "a"}))
		err := s.CreateSite(ctx, &docdex.Site{IndexURL: "https://a.com/docs/", Name: "b"})
		require.Error(t, err)
		assert.Equal(t, docdex.ECONFLICT, docdex.ErrorCode(err))
	})

	t.Run("rejects duplicate name and version pair", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSiteService(mustOpenDB(t))
		ctx := context.Background()

		require.NoError(t, s.CreateSite(ctx, &docdex.Site{IndexURL: "https://a.com/docs/", Name: "a", Version: "1"}))
		err := s.CreateSite(ctx, &docdex.Site{IndexURL: "https://b.com/docs/", Name: "a", Version: "1"})
		require.Error(t, err)
		assert.Equal(t, docdex.ECONFLICT, docdex.ErrorCode(err))
	})

	t.Run("rejects invalid URL", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSiteService(mustOpenDB(t))
		err := s.CreateSite(context.Background(), &docdex.Site{IndexURL: "not-a-url", Name: "x"})
		require.Error(t, err)
		assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
	})
}

func TestSiteService_UpdateSiteProgress(t *testing.T) {
	t.Parallel()

	s := sqlite.NewSiteService(mustOpenDB(t))
	ctx := context.Background()

	site := &docdex.Site{IndexURL: "https://a.com/docs/", Name: "a"}
	require.NoError(t, s.CreateSite(ctx, site))

	require.NoError(t, s.UpdateSiteProgress(ctx, site.ID, 1, 3))

	got, err := s.FindSiteByID(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.IndexedPages)
	assert.Equal(t, 3, got.TotalPages)
	assert.Equal(t, 33, got.ProgressPercent, "percent is the floor of 100*indexed/total")

	require.NoError(t, s.UpdateSiteProgress(ctx, site.ID, 3, 3))
	got, err = s.FindSiteByID(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.ProgressPercent)
}

func TestSiteService_UpdateSite_status_transitions(t *testing.T) {
	t.Parallel()

	s := sqlite.NewSiteService(mustOpenDB(t))
	ctx := context.Background()

	site := &docdex.Site{IndexURL: "https://a.com/docs/", Name: "a"}
	require.NoError(t, s.CreateSite(ctx, site))

	status := docdex.SiteStatusIndexing
	_, err := s.UpdateSite(ctx, site.ID, docdex.SiteUpdate{Status: &status})
	require.NoError(t, err)

	status = docdex.SiteStatusCompleted
	now := time.Now().UTC()
	updated, err := s.UpdateSite(ctx, site.ID, docdex.SiteUpdate{Status: &status, IndexedDate: &now})
	require.NoError(t, err)
	assert.Equal(t, docdex.SiteStatusCompleted, updated.Status)
	require.NotNil(t, updated.IndexedDate)

	got, err := s.FindSiteByID(ctx, site.ID)
	require.NoError(t, err)
	require.NotNil(t, got.IndexedDate)
	assert.Equal(t, time.UTC, got.IndexedDate.Location())
}

func TestSiteService_DeleteSite(t *testing.T) {
	t.Parallel()

	t.Run("cascades queue entries and chunks", func(t *testing.T) {
		t.Parallel()

		db := mustOpenDB(t)
		sites := sqlite.NewSiteService(db)
		queue := sqlite.NewQueueService(db)
		chunks := sqlite.NewChunkService(db)
		ctx := context.Background()

		site := &docdex.Site{IndexURL: "https://a.com/docs/", Name: "a"}
		require.NoError(t, sites.CreateSite(ctx, site))

		_, err := queue.Enqueue(ctx, site.ID, "https://a.com/docs/page.html")
		require.NoError(t, err)
		require.NoError(t, chunks.InsertChunks(ctx, []*docdex.Chunk{{
			SiteID:       site.ID,
			URL:          "https://a.com/docs/page.html",
			ChunkContent: "text",
			VectorID:     "v-1",
		}}))

		require.NoError(t, sites.DeleteSite(ctx, site.ID))

		counts, err := queue.CountQueue(ctx, site.ID)
		require.NoError(t, err)
		assert.Zero(t, counts.Total())

		ids, err := chunks.ListVectorIDsBySite(ctx, site.ID)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("returns ENOTFOUND for unknown site", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewSiteService(mustOpenDB(t))
		err := s.DeleteSite(context.Background(), 999)
		require.Error(t, err)
		assert.Equal(t, docdex.ENOTFOUND, docdex.ErrorCode(err))
	})
}

func TestSiteService_FindSiteByName(t *testing.T) {
	t.Parallel()

	s := sqlite.NewSiteService(mustOpenDB(t))
	ctx := context.Background()

	require.NoError(t, s.CreateSite(ctx, &docdex.Site{IndexURL: "https://a.com/docs/", Name: "alpha"}))

	got, err := s.FindSiteByName(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	_, err = s.FindSiteByName(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, docdex.ENOTFOUND, docdex.ErrorCode(err))
}

func TestBaseURLFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		indexURL string
		want     string
	}{
		{"strips trailing filename", "https://a.com/docs/index.html", "https://a.com/docs/"},
		{"keeps directory path", "https://a.com/docs/", "https://a.com/docs/"},
		{"keeps extensionless segment", "https://a.com/docs/guide", "https://a.com/docs/guide"},
		{"adds root path", "https://a.com", "https://a.com/"},
		{"drops query and fragment", "https://a.com/docs/index.html?x=1#top", "https://a.com/docs/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, docdex.BaseURLFor(tt.indexURL))
		})
	}
}
