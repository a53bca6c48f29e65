// Package ollama provides the docdex.Embedder implementation backed by
// a local Ollama service.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docdex/docdex"
)

// Default configuration values.
const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "nomic-embed-text"
	DefaultBatchSize = 64
	DefaultTimeout   = 120 * time.Second

	// Backoff for retryable failures: base doubles up to the cap.
	// Attempts are unbounded; embedding outages are transient by policy
	// and the caller's context bounds the total wait.
	defaultBackoffBase = 1 * time.Second
	defaultBackoffCap  = 60 * time.Second
)

// Ensure Embedder implements docdex.Embedder at compile time.
var _ docdex.Embedder = (*Embedder)(nil)

// Embedder generates embeddings through Ollama's HTTP API.
type Embedder struct {
	client      *http.Client
	baseURL     string
	model       string
	batchSize   int
	backoffBase time.Duration
	backoffCap  time.Duration
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithBaseURL sets the Ollama API base URL
// (default http://localhost:11434).
func WithBaseURL(baseURL string) Option {
	return func(e *Embedder) {
		e.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithModel sets the embedding model (default nomic-embed-text).
func WithModel(model string) Option {
	return func(e *Embedder) {
		e.model = model
	}
}

// WithBatchSize sets how many texts are grouped per processing batch.
func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Embedder) {
		e.client.Timeout = d
	}
}

// WithBackoff overrides the retry backoff bounds. Tests use short
// delays.
func WithBackoff(base, cap time.Duration) Option {
	return func(e *Embedder) {
		e.backoffBase = base
		e.backoffCap = cap
	}
}

// NewEmbedder creates an Embedder.
func NewEmbedder(opts ...Option) *Embedder {
	e := &Embedder{
		client:      &http.Client{Timeout: DefaultTimeout},
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		batchSize:   DefaultBatchSize,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the configured model name.
func (e *Embedder) Model() string {
	return e.model
}

// embedRequest is the Ollama embeddings request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama embeddings response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedMany embeds texts in configured batch sizes, preserving input
// order. Empty input yields empty output. The service embeds one
// prompt per request, so a batch bounds how many requests are in one
// processing group between cancellation checks.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		for _, text := range texts[start:end] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			vec, err := e.embedOne(ctx, text)
			if err != nil {
				return nil, err
			}
			embeddings = append(embeddings, vec)
		}
	}

	// Vectors must have uniform length within a response set.
	for i := 1; i < len(embeddings); i++ {
		if len(embeddings[i]) != len(embeddings[0]) {
			return nil, docdex.Errorf(docdex.EINTERNAL,
				"embedding %d has dimension %d, expected %d", i, len(embeddings[i]), len(embeddings[0]))
		}
	}

	return embeddings, nil
}

// embedOne issues one embeddings request, retrying retryable failures
// with exponential backoff until the context ends.
func (e *Embedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	delay := e.backoffBase
	for {
		vec, retryable, err := e.tryEmbed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !retryable {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > e.backoffCap {
			delay = e.backoffCap
		}
	}
}

// tryEmbed performs a single embeddings request and classifies the
// failure.
func (e *Embedder) tryEmbed(ctx context.Context, text string) (vec []float32, retryable bool, err error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, docdex.Errorf(docdex.EUNAVAILABLE, "embedding service unreachable: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, docdex.Errorf(docdex.EUNAVAILABLE,
			"embedding service error (status %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, false, docdex.Errorf(docdex.EINTERNAL,
			"embedding request rejected (status %d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, false, docdex.Errorf(docdex.EINTERNAL, "decode embedding response: %v", err)
	}
	if len(er.Embedding) == 0 {
		return nil, false, docdex.Errorf(docdex.EINTERNAL, "embedding response is empty")
	}

	out := make([]float32, len(er.Embedding))
	for i, v := range er.Embedding {
		out[i] = float32(v)
	}
	return out, false, nil
}

// tagsResponse is the Ollama model listing format.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// EnsureModel confirms the configured model is installed.
func (e *Embedder) EnsureModel(ctx context.Context) error {
	tags, err := e.listModels(ctx)
	if err != nil {
		return err
	}

	for _, m := range tags.Models {
		if m.Name == e.model || strings.TrimSuffix(m.Name, ":latest") == e.model {
			return nil
		}
	}
	return docdex.Errorf(docdex.EINVALID,
		"embedding model %q is not installed; run `ollama pull %s`", e.model, e.model)
}

// HealthCheck reports whether the service is reachable.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	_, err := e.listModels(ctx)
	return err
}

// listModels fetches /api/tags.
func (e *Embedder) listModels(ctx context.Context) (*tagsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, docdex.Errorf(docdex.EUNAVAILABLE, "embedding service unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, docdex.Errorf(docdex.EUNAVAILABLE,
			"embedding service returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, docdex.Errorf(docdex.EINTERNAL, "decode model list: %v", err)
	}
	return &tags, nil
}
