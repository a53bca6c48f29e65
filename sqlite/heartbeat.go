package sqlite

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/docdex/docdex"
)

// Compile-time interface verification.
var _ docdex.HeartbeatService = (*HeartbeatService)(nil)

// HeartbeatService implements docdex.HeartbeatService using SQLite.
// The heartbeat is a singleton row with id = 1.
type HeartbeatService struct {
	db *DB
}

// NewHeartbeatService creates a new HeartbeatService.
func NewHeartbeatService(db *DB) *HeartbeatService {
	return &HeartbeatService{db: db}
}

// SetHeartbeat stamps the heartbeat row with the current UTC time, the
// calling process ID, and the given status.
func (s *HeartbeatService) SetHeartbeat(ctx context.Context, status docdex.IndexerStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexer_heartbeat (id, last_heartbeat, process_id, status)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_heartbeat = excluded.last_heartbeat,
			process_id = excluded.process_id,
			status = excluded.status
	`, formatTime(time.Now()), os.Getpid(), string(status))
	return mapError(err)
}

// ReadHeartbeat returns the singleton heartbeat row.
func (s *HeartbeatService) ReadHeartbeat(ctx context.Context) (*docdex.IndexerHeartbeat, error) {
	var hb docdex.IndexerHeartbeat
	var lastHeartbeat, status string
	var processID sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT last_heartbeat, process_id, status FROM indexer_heartbeat WHERE id = 1
	`).Scan(&lastHeartbeat, &processID, &status)
	if err == sql.ErrNoRows {
		return nil, docdex.Errorf(docdex.ENOTFOUND, "no indexer heartbeat recorded")
	}
	if err != nil {
		return nil, mapError(err)
	}

	hb.Status = docdex.IndexerStatus(status)
	hb.ProcessID = int(processID.Int64)
	if hb.LastHeartbeat, err = parseRFC3339(lastHeartbeat, "last_heartbeat"); err != nil {
		return nil, err
	}
	return &hb, nil
}
