package index

import (
	"context"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/docdex/docdex"
)

// heldLock wraps the acquired advisory lock.
type heldLock struct {
	fl *flock.Flock
}

// release drops the lock and removes the lock file.
func (l *heldLock) release() {
	path := l.fl.Path()
	_ = l.fl.Unlock()
	_ = os.Remove(path)
}

// acquireLock takes the exclusive advisory lock at LockPath. A held
// lock whose heartbeat is fresh means another live indexer owns the
// directory (ECONFLICT). A stale heartbeat marks the previous holder
// dead: the lock file is removed and acquisition retried once.
func (ix *Indexer) acquireLock(ctx context.Context) (*heldLock, error) {
	staleAfter := ix.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	fl := flock.New(ix.LockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, docdex.Errorf(docdex.EINTERNAL, "acquiring indexer lock %s: %v", ix.LockPath, err)
	}
	if locked {
		return &heldLock{fl: fl}, nil
	}

	hb, err := ix.Heartbeats.ReadHeartbeat(ctx)
	if err != nil && docdex.ErrorCode(err) != docdex.ENOTFOUND {
		return nil, err
	}
	if hb != nil && time.Since(hb.LastHeartbeat) <= staleAfter {
		return nil, docdex.Errorf(docdex.ECONFLICT,
			"indexer already running (pid %d, heartbeat %s ago)",
			hb.ProcessID, time.Since(hb.LastHeartbeat).Round(time.Second))
	}

	// The holder is dead; break the lock and reacquire.
	ix.logger().Warn("breaking stale indexer lock",
		"path", ix.LockPath,
		"stale_heartbeat", hb != nil,
	)
	if err := os.Remove(ix.LockPath); err != nil && !os.IsNotExist(err) {
		return nil, docdex.Errorf(docdex.EINTERNAL, "removing stale lock %s: %v", ix.LockPath, err)
	}

	fl = flock.New(ix.LockPath)
	locked, err = fl.TryLock()
	if err != nil {
		return nil, docdex.Errorf(docdex.EINTERNAL, "reacquiring indexer lock %s: %v", ix.LockPath, err)
	}
	if !locked {
		return nil, docdex.Errorf(docdex.ECONFLICT, "indexer lock %s contended during takeover", ix.LockPath)
	}
	return &heldLock{fl: fl}, nil
}
