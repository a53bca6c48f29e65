package crawl

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/docdex/docdex"
)

// DefaultHostInterval is the minimum spacing between requests to the
// same host.
const DefaultHostInterval = 250 * time.Millisecond

var _ docdex.DomainLimiter = (*HostLimiter)(nil)

// HostLimiter enforces per-host request spacing using token buckets.
// Each host gets its own limiter with a burst of 1, so requests to
// different hosts proceed concurrently while requests within a host are
// spaced by the configured interval.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewHostLimiter creates a HostLimiter with the given minimum
// inter-request interval per host. A non-positive interval falls back
// to DefaultHostInterval.
func NewHostLimiter(interval time.Duration) *HostLimiter {
	if interval <= 0 {
		interval = DefaultHostInterval
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until the rate limit allows a request to the host.
// Returns an error if the context is canceled before the wait
// completes.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	return limiter.Wait(ctx)
}
