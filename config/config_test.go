package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/config"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file yields defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Ollama.Host)
		assert.Equal(t, 11434, cfg.Ollama.Port)
		assert.Equal(t, "nomic-embed-text", cfg.Ollama.Model)
		assert.Equal(t, 64, cfg.Ollama.BatchSize)
		assert.False(t, cfg.Browser.Enabled)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[ollama]
host = "embed-host"
port = 12345
batch_size = 8

[browser]
enabled = true
pool_size = 3
tabs_per_browser = 2
timeout_seconds = 60
headless = true
window_width = 1024
window_height = 768
`), 0o644))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "embed-host", cfg.Ollama.Host)
		assert.Equal(t, 12345, cfg.Ollama.Port)
		assert.Equal(t, 8, cfg.Ollama.BatchSize)
		assert.Equal(t, "nomic-embed-text", cfg.Ollama.Model, "unset keys keep defaults")
		assert.True(t, cfg.Browser.Enabled)
		assert.Equal(t, 3, cfg.Browser.PoolSize)
		assert.Equal(t, "http://embed-host:12345", cfg.Ollama.BaseURL())
	})

	t.Run("rejects invalid TOML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[ollama\nhost="), 0o644))

		_, err := config.Load(path)
		require.Error(t, err)
		assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
	})

	t.Run("rejects out-of-range values", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[ollama]\nbatch_size = 5000\n"), 0o644))

		_, err := config.Load(path)
		require.Error(t, err)
		assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
	})
}

func TestConfig_Save_round_trip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := config.Default()
	cfg.Ollama.Model = "custom-model"
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDataDir_honors_environment(t *testing.T) {
	t.Setenv(config.DataDirEnv, "/tmp/docdex-test-data")
	assert.Equal(t, "/tmp/docdex-test-data", config.DataDir())
}

func TestPaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/data/config.toml", config.ConfigPath("/data"))
	assert.Equal(t, "/data/metadata.db", config.MetadataPath("/data"))
	assert.Equal(t, "/data/embeddings", config.EmbeddingsDir("/data"))
	assert.Equal(t, "/data/.indexer.lock", config.LockPath("/data"))
}
