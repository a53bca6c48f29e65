package docdex

import "context"

// Embedder produces dense vector embeddings through an external
// embedding service.
type Embedder interface {
	// EmbedMany embeds texts in configured batch sizes, preserving input
	// order. Empty input yields empty output. Transport and HTTP 5xx
	// failures are retried with exponential backoff; HTTP 4xx is fatal
	// for the call (EUNAVAILABLE / EINTERNAL respectively).
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// EnsureModel confirms the configured model is installed on the
	// service. Returns EINVALID with an actionable message when it is
	// not, EUNAVAILABLE when the service cannot be reached.
	EnsureModel(ctx context.Context) error

	// HealthCheck reports whether the service is reachable.
	HealthCheck(ctx context.Context) error
}
