package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
	dochttp "github.com/docdex/docdex/http"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and content type on success", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}))
		defer srv.Close()

		f := dochttp.NewFetcher()
		defer f.Close()

		res, err := f.Fetch(context.Background(), srv.URL+"/page")
		require.NoError(t, err)
		assert.Contains(t, string(res.Body), "hello")
		assert.Contains(t, res.ContentType, "text/html")
	})

	t.Run("classifies HTTP 503 as retryable server error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		f := dochttp.NewFetcher()
		_, err := f.Fetch(context.Background(), srv.URL)
		require.Error(t, err)

		var fetchErr *docdex.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, docdex.FetchHTTPServer, fetchErr.Kind)
		assert.Equal(t, 503, fetchErr.StatusCode)
		assert.True(t, fetchErr.Retryable())
	})

	t.Run("classifies HTTP 404 as fatal client error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		f := dochttp.NewFetcher()
		_, err := f.Fetch(context.Background(), srv.URL)

		var fetchErr *docdex.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, docdex.FetchHTTPClient, fetchErr.Kind)
		assert.False(t, fetchErr.Retryable())
	})

	t.Run("classifies HTTP 429 as retryable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		f := dochttp.NewFetcher()
		_, err := f.Fetch(context.Background(), srv.URL)

		var fetchErr *docdex.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, docdex.FetchThrottled, fetchErr.Kind)
		assert.True(t, fetchErr.Retryable())
	})

	t.Run("classifies invalid URL as fatal", func(t *testing.T) {
		t.Parallel()

		f := dochttp.NewFetcher()
		_, err := f.Fetch(context.Background(), "not a url")

		var fetchErr *docdex.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, docdex.FetchInvalidURL, fetchErr.Kind)
		assert.False(t, fetchErr.Retryable())
	})

	t.Run("classifies connection refusal as transport error", func(t *testing.T) {
		t.Parallel()

		f := dochttp.NewFetcher()
		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/page")

		var fetchErr *docdex.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, docdex.FetchTransport, fetchErr.Kind)
		assert.True(t, fetchErr.Retryable())
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
		}))
		defer srv.Close()

		f := dochttp.NewFetcher(dochttp.WithMaxBodyBytes(1024))
		_, err := f.Fetch(context.Background(), srv.URL)

		var fetchErr *docdex.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, docdex.FetchTooLarge, fetchErr.Kind)
		assert.False(t, fetchErr.Retryable())
	})

	t.Run("waits on the per-host limiter before requesting", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		limiter := &recordingLimiter{}
		f := dochttp.NewFetcher(dochttp.WithLimiter(limiter))
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, 1, limiter.calls)
	})

	t.Run("falls back to raw HTTP when rendering fails", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("raw html"))
		}))
		defer srv.Close()

		f := dochttp.NewFetcher(dochttp.WithRenderer(renderFunc(func(ctx context.Context, url string) (string, error) {
			return "", errors.New("browser crashed")
		})))
		res, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "raw html", string(res.Body))
	})

	t.Run("prefers rendered HTML when available", func(t *testing.T) {
		t.Parallel()

		f := dochttp.NewFetcher(dochttp.WithRenderer(renderFunc(func(ctx context.Context, url string) (string, error) {
			return "<html>rendered</html>", nil
		})))
		res, err := f.Fetch(context.Background(), "http://example.invalid/page")
		require.NoError(t, err)
		assert.Equal(t, "<html>rendered</html>", string(res.Body))
	})
}

// recordingLimiter counts Wait calls.
type recordingLimiter struct {
	calls int
}

func (l *recordingLimiter) Wait(ctx context.Context, host string) error {
	l.calls++
	return nil
}

// renderFunc adapts a function to the Renderer interface.
type renderFunc func(ctx context.Context, url string) (string, error)

func (f renderFunc) Render(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}
