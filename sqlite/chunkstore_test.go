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

func TestChunkService_InsertChunks(t *testing.T) {
	t.Parallel()

	t.Run("persists all chunks atomically", func(t *testing.T) {
		t.Parallel()

		db := mustOpenDB(t)
		site := mustCreateSite(t, db, "https://a.com/docs/", "a")
		s := sqlite.NewChunkService(db)
		ctx := context.Background()

		chunks := []*docdex.Chunk{
			{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: "first", ChunkIndex: 0, VectorID: "v-0"},
			{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: "second", ChunkIndex: 1, VectorID: "v-1"},
		}
		require.NoError(t, s.InsertChunks(ctx, chunks))
		assert.NotZero(t, chunks[0].ID)
		assert.Equal(t, time.UTC, chunks[0].IndexedDate.Location())

		ids, err := s.ListVectorIDsBySite(ctx, site.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"v-0", "v-1"}, ids)
	})

	t.Run("rolls back the batch when a vector ID conflicts", func(t *testing.T) {
		t.Parallel()

		db := mustOpenDB(t)
		site := mustCreateSite(t, db, "https://a.com/docs/", "a")
		s := sqlite.NewChunkService(db)
		ctx := context.Background()

		require.NoError(t, s.InsertChunks(ctx, []*docdex.Chunk{
			{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: "x", VectorID: "dup"},
		}))

		err := s.InsertChunks(ctx, []*docdex.Chunk{
			{SiteID: site.ID, URL: "https://a.com/docs/q", ChunkContent: "y", VectorID: "fresh"},
			{SiteID: site.ID, URL: "https://a.com/docs/q", ChunkContent: "z", ChunkIndex: 1, VectorID: "dup"},
		})
		require.Error(t, err)
		assert.Equal(t, docdex.ECONFLICT, docdex.ErrorCode(err))

		// The non-conflicting chunk from the failed batch must not exist.
		ids, err := s.ListVectorIDsBySite(ctx, site.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"dup"}, ids)
	})

	t.Run("validates chunks before writing", func(t *testing.T) {
		t.Parallel()

		db := mustOpenDB(t)
		site := mustCreateSite(t, db, "https://a.com/docs/", "a")
		s := sqlite.NewChunkService(db)

		err := s.InsertChunks(context.Background(), []*docdex.Chunk{
			{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: ""},
		})
		require.Error(t, err)
		assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
	})
}

func TestChunkService_ListVectorIDsBySite_contains_each_id_once(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	site := mustCreateSite(t, db, "https://a.com/docs/", "a")
	s := sqlite.NewChunkService(db)
	ctx := context.Background()

	chunk := &docdex.Chunk{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: "x", VectorID: "v-42"}
	require.NoError(t, s.InsertChunks(ctx, []*docdex.Chunk{chunk}))

	ids, err := s.ListVectorIDsBySite(ctx, site.ID)
	require.NoError(t, err)

	occurrences := 0
	for _, id := range ids {
		if id == "v-42" {
			occurrences++
		}
	}
	assert.Equal(t, 1, occurrences)
}

func TestChunkService_DeleteChunksByVectorIDs(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	site := mustCreateSite(t, db, "https://a.com/docs/", "a")
	s := sqlite.NewChunkService(db)
	ctx := context.Background()

	require.NoError(t, s.InsertChunks(ctx, []*docdex.Chunk{
		{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: "x", VectorID: "keep"},
		{SiteID: site.ID, URL: "https://a.com/docs/q", ChunkContent: "y", VectorID: "drop"},
	}))

	require.NoError(t, s.DeleteChunksByVectorIDs(ctx, site.ID, []string{"drop"}))

	ids, err := s.ListVectorIDsBySite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, ids)
}

func TestChunkService_FindURLsByVectorIDs(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	site := mustCreateSite(t, db, "https://a.com/docs/", "a")
	s := sqlite.NewChunkService(db)
	ctx := context.Background()

	require.NoError(t, s.InsertChunks(ctx, []*docdex.Chunk{
		{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: "x", ChunkIndex: 0, VectorID: "v-0"},
		{SiteID: site.ID, URL: "https://a.com/docs/p", ChunkContent: "y", ChunkIndex: 1, VectorID: "v-1"},
		{SiteID: site.ID, URL: "https://a.com/docs/q", ChunkContent: "z", ChunkIndex: 0, VectorID: "v-2"},
	}))

	urls, err := s.FindURLsByVectorIDs(ctx, site.ID, []string{"v-0", "v-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/docs/p"}, urls, "URLs are distinct")
}

func TestHeartbeatService(t *testing.T) {
	t.Parallel()

	t.Run("upserts the singleton row", func(t *testing.T) {
		t.Parallel()

		db := mustOpenDB(t)
		s := sqlite.NewHeartbeatService(db)
		ctx := context.Background()

		require.NoError(t, s.SetHeartbeat(ctx, docdex.IndexerStatusIndexing))

		hb, err := s.ReadHeartbeat(ctx)
		require.NoError(t, err)
		assert.Equal(t, docdex.IndexerStatusIndexing, hb.Status)
		assert.NotZero(t, hb.ProcessID)
		assert.Equal(t, time.UTC, hb.LastHeartbeat.Location())

		require.NoError(t, s.SetHeartbeat(ctx, docdex.IndexerStatusIdle))
		hb, err = s.ReadHeartbeat(ctx)
		require.NoError(t, err)
		assert.Equal(t, docdex.IndexerStatusIdle, hb.Status)
	})

	t.Run("returns ENOTFOUND before any heartbeat", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewHeartbeatService(mustOpenDB(t))
		_, err := s.ReadHeartbeat(context.Background())
		require.Error(t, err)
		assert.Equal(t, docdex.ENOTFOUND, docdex.ErrorCode(err))
	})
}
