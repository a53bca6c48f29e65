// Package rod provides the browser-backed rendering collaborator for
// JavaScript-heavy documentation sites: a bounded pool of headless
// Chrome instances, each serving a bounded number of tabs.
package rod

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"golang.org/x/sync/semaphore"

	"github.com/docdex/docdex"
)

// Pool bounds for configuration validation.
const (
	MinPoolSize = 1
	MaxPoolSize = 10
	MinTabs     = 1
	MaxTabs     = 10
)

// PoolConfig sizes the browser pool.
type PoolConfig struct {
	// Instances is the number of browser processes (1-10).
	Instances int

	// TabsPerInstance is the tab permit count per browser (1-10).
	TabsPerInstance int

	// Windowed launches browsers with a visible window, for debugging.
	// The zero value launches them headless.
	Windowed bool

	// WindowWidth and WindowHeight size the browser viewport.
	WindowWidth  int
	WindowHeight int
}

// validate clamps nothing: out-of-range values are configuration
// errors.
func (c *PoolConfig) validate() error {
	if c.Instances < MinPoolSize || c.Instances > MaxPoolSize {
		return docdex.Errorf(docdex.EINVALID, "browser pool size %d out of range [%d, %d]",
			c.Instances, MinPoolSize, MaxPoolSize)
	}
	if c.TabsPerInstance < MinTabs || c.TabsPerInstance > MaxTabs {
		return docdex.Errorf(docdex.EINVALID, "tabs per browser %d out of range [%d, %d]",
			c.TabsPerInstance, MinTabs, MaxTabs)
	}
	return nil
}

// instance is one launched browser with its own tab permits.
type instance struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	tabs     *semaphore.Weighted
}

// Pool manages browser instances and tab leases. Each lease records the
// instance that granted it so release returns the permit to the correct
// slot; without that, long runs leak tabs.
type Pool struct {
	cfg       PoolConfig
	mu        sync.Mutex
	instances []*instance
	next      int
	closed    bool
}

// Lease is an acquired tab. Close releases the tab and returns its
// permit to the owning instance.
type Lease struct {
	page *rod.Page

	// owner is the index of the instance the permit came from.
	owner int
	pool  *Pool
}

// Page returns the leased tab.
func (l *Lease) Page() *rod.Page {
	return l.page
}

// Close closes the tab and returns the permit to the owning instance.
func (l *Lease) Close() {
	if l.page != nil {
		_ = l.page.Close()
		l.page = nil
	}
	l.pool.releaseTab(l.owner)
}

// NewPool launches the configured browser instances. Close must be
// called when the pool is no longer needed.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Pool{cfg: cfg}
	for i := 0; i < cfg.Instances; i++ {
		inst, err := launchInstance(cfg)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("launching browser %d: %w", i, err)
		}
		p.instances = append(p.instances, inst)
	}
	return p, nil
}

// launchInstance starts one headless browser with stability flags.
func launchInstance(cfg PoolConfig) (*instance, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(!cfg.Windowed)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight))
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &instance{
		browser:  browser,
		launcher: l,
		tabs:     semaphore.NewWeighted(int64(cfg.TabsPerInstance)),
	}, nil
}

// Acquire leases a tab, blocking until a permit is available on some
// instance or the context is canceled. Instances are tried round-robin
// so load spreads across browsers.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, docdex.Errorf(docdex.EUNAVAILABLE, "browser pool is closed")
		}
		start := p.next
		p.next = (p.next + 1) % len(p.instances)

		// First pass: non-blocking probe of every instance.
		for i := 0; i < len(p.instances); i++ {
			idx := (start + i) % len(p.instances)
			inst := p.instances[idx]
			if inst.tabs.TryAcquire(1) {
				p.mu.Unlock()
				return p.lease(ctx, idx, inst)
			}
		}
		blockOn := p.instances[start]
		p.mu.Unlock()

		// Every instance is saturated: block on one permit.
		if err := blockOn.tabs.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			blockOn.tabs.Release(1)
			return nil, docdex.Errorf(docdex.EUNAVAILABLE, "browser pool is closed")
		}
		return p.lease(ctx, start, blockOn)
	}
}

// lease opens a tab on the instance, returning the permit on failure.
func (p *Pool) lease(ctx context.Context, idx int, inst *instance) (*Lease, error) {
	page, err := inst.browser.Page(protoTargetCreate())
	if err != nil {
		inst.tabs.Release(1)
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	return &Lease{page: page.Context(ctx), owner: idx, pool: p}, nil
}

// releaseTab returns a permit to the instance that granted it.
func (p *Pool) releaseTab(owner int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if owner >= 0 && owner < len(p.instances) {
		p.instances[owner].tabs.Release(1)
	}
}

// Close shuts down every browser instance. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	for _, inst := range p.instances {
		if inst.browser != nil {
			_ = inst.browser.Close()
		}
		if inst.launcher != nil {
			inst.launcher.Kill()
		}
	}
}
