package docdex

import (
	"context"
	"time"
)

// QueueStatus describes a crawl queue entry's state.
type QueueStatus string

// Valid queue entry statuses. completed and failed are terminal.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueueEntry is a URL awaiting crawl or retry for a site.
type QueueEntry struct {
	ID           int64       `json:"id"`
	SiteID       int64       `json:"siteId"`
	URL          string      `json:"url"`
	Status       QueueStatus `json:"status"`
	RetryCount   int         `json:"retryCount"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	CreatedDate  time.Time   `json:"createdDate"`
}

// QueueCounts summarizes a site's queue by status.
type QueueCounts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Total returns the number of entries across all states.
func (c QueueCounts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed
}

// Remaining returns the number of entries that still need work.
func (c QueueCounts) Remaining() int {
	return c.Pending + c.Processing
}

// QueueService manages the persistent crawl queue.
type QueueService interface {
	// Enqueue adds a URL to a site's queue with status pending.
	// Idempotent on (siteID, url): returns false without error when the
	// URL is already queued in any state.
	Enqueue(ctx context.Context, siteID int64, url string) (bool, error)

	// ClaimNextPending atomically selects the oldest pending entry for
	// the site, marks it processing, and returns it. Ordering is FIFO by
	// (created_date, id). Returns ENOTFOUND when no pending entry exists.
	ClaimNextPending(ctx context.Context, siteID int64) (*QueueEntry, error)

	// MarkQueueEntry transitions an entry to the given status, recording
	// an error message for failures.
	MarkQueueEntry(ctx context.Context, entryID int64, status QueueStatus, errorMessage string) error

	// RequeueEntry returns a processing entry to pending and increments
	// its retry count, preserving entry identity.
	RequeueEntry(ctx context.Context, entryID int64, errorMessage string) error

	// ResetProcessing returns all processing entries for the site to
	// pending without touching retry counts. Used for crash recovery on
	// startup. Returns the number of entries reset.
	ResetProcessing(ctx context.Context, siteID int64) (int64, error)

	// ResetEntriesForURLs returns completed entries for the given URLs
	// to pending so the pages are re-crawled. Used by consistency repair.
	ResetEntriesForURLs(ctx context.Context, siteID int64, urls []string) error

	// DeleteQueueBySite removes all queue entries for a site. Used by
	// the update flow before re-seeding.
	DeleteQueueBySite(ctx context.Context, siteID int64) error

	// CountQueue returns per-status counts for the site's queue.
	CountQueue(ctx context.Context, siteID int64) (QueueCounts, error)
}
