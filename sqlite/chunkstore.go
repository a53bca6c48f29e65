package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/docdex/docdex"
)

// Compile-time interface verification.
var _ docdex.ChunkService = (*ChunkService)(nil)

// ChunkService implements docdex.ChunkService using SQLite.
type ChunkService struct {
	db *DB
}

// NewChunkService creates a new ChunkService.
func NewChunkService(db *DB) *ChunkService {
	return &ChunkService{db: db}
}

const chunkColumns = `id, site_id, url, page_title, heading_path, chunk_content,
	chunk_index, vector_id, content_hash, indexed_date`

// InsertChunks persists all chunks in a single transaction.
func (s *ChunkService) InsertChunks(ctx context.Context, chunks []*docdex.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	return s.db.withBusyRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx)
		if err != nil {
			return mapError(err)
		}
		defer tx.Rollback()

		nowT := time.Now().UTC()
		now := formatTime(nowT)
		for _, c := range chunks {
			c.IndexedDate = nowT
			res, err := tx.ExecContext(ctx, `
				INSERT INTO indexed_chunks
					(site_id, url, page_title, heading_path, chunk_content,
					 chunk_index, vector_id, content_hash, indexed_date)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, c.SiteID, c.URL, nullable(c.PageTitle), nullable(c.HeadingPath),
				c.ChunkContent, c.ChunkIndex, c.VectorID, c.ContentHash, now)
			if err != nil {
				return mapError(err)
			}
			if c.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// FindChunksBySite retrieves all chunks for a site ordered by URL and
// chunk index.
func (s *ChunkService) FindChunksBySite(ctx context.Context, siteID int64) ([]*docdex.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM indexed_chunks
		WHERE site_id = ?
		ORDER BY url, chunk_index
	`, siteID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var chunks []*docdex.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// ListVectorIDsBySite returns the vector IDs of all chunks for a site.
func (s *ChunkService) ListVectorIDsBySite(ctx context.Context, siteID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vector_id FROM indexed_chunks WHERE site_id = ? ORDER BY id`, siteID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListVectorIDsByURL returns the vector IDs of the chunks for a single
// page.
func (s *ChunkService) ListVectorIDsByURL(ctx context.Context, siteID int64, url string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vector_id FROM indexed_chunks WHERE site_id = ? AND url = ? ORDER BY chunk_index`,
		siteID, url)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChunksByVectorIDs removes the chunks with the given vector IDs.
func (s *ChunkService) DeleteChunksByVectorIDs(ctx context.Context, siteID int64, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		return nil
	}

	args := make([]any, 0, len(vectorIDs)+1)
	args = append(args, siteID)
	for _, id := range vectorIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM indexed_chunks
		WHERE site_id = ? AND vector_id IN (`+placeholders(len(vectorIDs))+`)
	`, args...)
	return mapError(err)
}

// DeleteChunksBySite removes all chunks for a site.
func (s *ChunkService) DeleteChunksBySite(ctx context.Context, siteID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM indexed_chunks WHERE site_id = ?`, siteID)
	return mapError(err)
}

// FindURLsByVectorIDs returns the distinct owning URLs for the given
// vector IDs.
func (s *ChunkService) FindURLsByVectorIDs(ctx context.Context, siteID int64, vectorIDs []string) ([]string, error) {
	if len(vectorIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(vectorIDs)+1)
	args = append(args, siteID)
	for _, id := range vectorIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT url FROM indexed_chunks
		WHERE site_id = ? AND vector_id IN (`+placeholders(len(vectorIDs))+`)
		ORDER BY url
	`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// nullable converts an empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scanChunk scans a chunk row in chunkColumns order.
func scanChunk(row rowScanner) (*docdex.Chunk, error) {
	var chunk docdex.Chunk
	var pageTitle, headingPath sql.NullString
	var indexedDate string

	err := row.Scan(&chunk.ID, &chunk.SiteID, &chunk.URL, &pageTitle, &headingPath,
		&chunk.ChunkContent, &chunk.ChunkIndex, &chunk.VectorID, &chunk.ContentHash,
		&indexedDate)
	if err == sql.ErrNoRows {
		return nil, docdex.Errorf(docdex.ENOTFOUND, "chunk not found")
	}
	if err != nil {
		return nil, mapError(err)
	}

	chunk.PageTitle = pageTitle.String
	chunk.HeadingPath = headingPath.String
	if chunk.IndexedDate, err = parseRFC3339(indexedDate, "indexed_date"); err != nil {
		return nil, err
	}
	return &chunk, nil
}
