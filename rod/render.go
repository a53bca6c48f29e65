package rod

import (
	"context"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// DefaultRenderTimeout bounds a single page render.
const DefaultRenderTimeout = 30 * time.Second

// Renderer renders JavaScript-heavy pages through the browser pool. It
// satisfies the http package's Renderer contract: render(url) -> HTML.
type Renderer struct {
	pool    *Pool
	timeout time.Duration
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRenderTimeout sets the per-page render timeout.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		r.timeout = d
	}
}

// NewRenderer creates a Renderer over the pool.
func NewRenderer(pool *Pool, opts ...RendererOption) *Renderer {
	r := &Renderer{
		pool:    pool,
		timeout: DefaultRenderTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render navigates a leased tab to the URL, waits for the page to
// load, and returns the rendered HTML.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lease, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer lease.Close()

	page := lease.Page()
	if err := page.Navigate(url); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}
	return page.HTML()
}

// protoTargetCreate returns the CDP request for a new blank tab.
func protoTargetCreate() proto.TargetCreateTarget {
	return proto.TargetCreateTarget{}
}
