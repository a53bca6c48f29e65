package docdex

import (
	"context"
	"time"
)

// IndexerStatus describes the background indexer's state.
type IndexerStatus string

// Valid indexer statuses.
const (
	IndexerStatusIdle     IndexerStatus = "idle"
	IndexerStatusIndexing IndexerStatus = "indexing"
	IndexerStatusFailed   IndexerStatus = "failed"
)

// IndexerHeartbeat is the singleton liveness record for the background
// indexer. A heartbeat older than the staleness window means the
// previous holder is dead and its lock may be broken.
type IndexerHeartbeat struct {
	LastHeartbeat time.Time     `json:"lastHeartbeat"`
	ProcessID     int           `json:"processId,omitempty"`
	Status        IndexerStatus `json:"status"`
}

// HeartbeatService manages the singleton indexer heartbeat row.
type HeartbeatService interface {
	// SetHeartbeat stamps the heartbeat with the current UTC time, the
	// calling process ID, and the given status.
	SetHeartbeat(ctx context.Context, status IndexerStatus) error

	// ReadHeartbeat returns the heartbeat. Returns ENOTFOUND when no
	// indexer has ever run against the store.
	ReadHeartbeat(ctx context.Context) (*IndexerHeartbeat, error)
}
