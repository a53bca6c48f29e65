package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/docdex/docdex"
)

// Compile-time interface verification.
var _ docdex.QueueService = (*QueueService)(nil)

// QueueService implements docdex.QueueService using SQLite.
type QueueService struct {
	db *DB
}

// NewQueueService creates a new QueueService.
func NewQueueService(db *DB) *QueueService {
	return &QueueService{db: db}
}

const queueColumns = `id, site_id, url, status, retry_count, error_message, created_date`

// Enqueue adds a URL to a site's queue with status pending. Idempotent
// on (site_id, url): an already-queued URL is left untouched and false
// is returned.
func (s *QueueService) Enqueue(ctx context.Context, siteID int64, url string) (bool, error) {
	if url == "" {
		return false, docdex.Errorf(docdex.EINVALID, "queue URL required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_queue (site_id, url, status, created_date)
		VALUES (?, ?, 'pending', ?)
		ON CONFLICT (site_id, url) DO NOTHING
	`, siteID, url, formatTime(time.Now()))
	if err != nil {
		return false, mapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ClaimNextPending atomically selects the oldest pending entry, marks it
// processing, and returns it. The single write connection serializes the
// select-and-mark so two workers cannot claim the same entry.
func (s *QueueService) ClaimNextPending(ctx context.Context, siteID int64) (*docdex.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE crawl_queue SET status = 'processing'
		WHERE id = (
			SELECT id FROM crawl_queue
			WHERE site_id = ? AND status = 'pending'
			ORDER BY created_date, id
			LIMIT 1
		)
		RETURNING `+queueColumns,
		siteID)
	return scanQueueEntry(row)
}

// MarkQueueEntry transitions an entry to the given status.
func (s *QueueService) MarkQueueEntry(ctx context.Context, entryID int64, status docdex.QueueStatus, errorMessage string) error {
	var msg any
	if errorMessage != "" {
		msg = errorMessage
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_queue SET status = ?, error_message = ? WHERE id = ?
	`, string(status), msg, entryID)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(res, "queue entry")
}

// RequeueEntry returns a processing entry to pending with an incremented
// retry count, preserving entry identity.
func (s *QueueService) RequeueEntry(ctx context.Context, entryID int64, errorMessage string) error {
	var msg any
	if errorMessage != "" {
		msg = errorMessage
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_queue
		SET status = 'pending', retry_count = retry_count + 1, error_message = ?
		WHERE id = ?
	`, msg, entryID)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(res, "queue entry")
}

// ResetProcessing returns all processing entries to pending. Crash
// recovery: entries stranded by a dead indexer become claimable again.
func (s *QueueService) ResetProcessing(ctx context.Context, siteID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_queue SET status = 'pending'
		WHERE site_id = ? AND status = 'processing'
	`, siteID)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// ResetEntriesForURLs returns completed entries for the given URLs to
// pending so their pages are re-crawled.
func (s *QueueService) ResetEntriesForURLs(ctx context.Context, siteID int64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	args := make([]any, 0, len(urls)+1)
	args = append(args, siteID)
	for _, u := range urls {
		args = append(args, u)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_queue SET status = 'pending', error_message = NULL
		WHERE site_id = ? AND url IN (`+placeholders(len(urls))+`)
	`, args...)
	return mapError(err)
}

// DeleteQueueBySite removes all queue entries for a site.
func (s *QueueService) DeleteQueueBySite(ctx context.Context, siteID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM crawl_queue WHERE site_id = ?`, siteID)
	return mapError(err)
}

// CountQueue returns per-status counts for the site's queue.
func (s *QueueService) CountQueue(ctx context.Context, siteID int64) (docdex.QueueCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM crawl_queue WHERE site_id = ? GROUP BY status
	`, siteID)
	if err != nil {
		return docdex.QueueCounts{}, mapError(err)
	}
	defer rows.Close()

	var counts docdex.QueueCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return docdex.QueueCounts{}, err
		}
		switch docdex.QueueStatus(status) {
		case docdex.QueueStatusPending:
			counts.Pending = n
		case docdex.QueueStatusProcessing:
			counts.Processing = n
		case docdex.QueueStatusCompleted:
			counts.Completed = n
		case docdex.QueueStatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// scanQueueEntry scans a queue row in queueColumns order.
func scanQueueEntry(row rowScanner) (*docdex.QueueEntry, error) {
	var entry docdex.QueueEntry
	var status, createdDate string
	var errorMessage sql.NullString

	err := row.Scan(&entry.ID, &entry.SiteID, &entry.URL, &status, &entry.RetryCount,
		&errorMessage, &createdDate)
	if err == sql.ErrNoRows {
		return nil, docdex.Errorf(docdex.ENOTFOUND, "no pending queue entry")
	}
	if err != nil {
		return nil, mapError(err)
	}

	entry.Status = docdex.QueueStatus(status)
	entry.ErrorMessage = errorMessage.String
	if entry.CreatedDate, err = parseRFC3339(createdDate, "created_date"); err != nil {
		return nil, err
	}
	return &entry, nil
}
