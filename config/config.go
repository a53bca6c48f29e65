// Package config loads and validates the docdex configuration from the
// TOML file in the per-user data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/docdex/docdex"
)

// FileName is the configuration file inside the data directory.
const FileName = "config.toml"

// DataDirEnv overrides the default data directory location.
const DataDirEnv = "DOCDEX_DATA_DIR"

// defaultDataDirName is the directory created under the user's home.
const defaultDataDirName = ".docs-mcp"

// Config is the recognized configuration surface.
type Config struct {
	Ollama  OllamaConfig  `toml:"ollama"`
	Browser BrowserConfig `toml:"browser"`
}

// OllamaConfig locates the embedding service.
type OllamaConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Model     string `toml:"model"`
	BatchSize int    `toml:"batch_size"`
}

// BaseURL renders the service endpoint.
func (c OllamaConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// BrowserConfig sizes the optional JS-rendering pool.
type BrowserConfig struct {
	Enabled        bool `toml:"enabled"`
	PoolSize       int  `toml:"pool_size"`
	TabsPerBrowser int  `toml:"tabs_per_browser"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
	Headless       bool `toml:"headless"`
	WindowWidth    int  `toml:"window_width"`
	WindowHeight   int  `toml:"window_height"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			Host:      "localhost",
			Port:      11434,
			Model:     "nomic-embed-text",
			BatchSize: 64,
		},
		Browser: BrowserConfig{
			Enabled:        false,
			PoolSize:       2,
			TabsPerBrowser: 4,
			TimeoutSeconds: 30,
			Headless:       true,
			WindowWidth:    1280,
			WindowHeight:   1024,
		},
	}
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.Ollama.Host == "" {
		return docdex.Errorf(docdex.EINVALID, "ollama.host must not be empty")
	}
	if c.Ollama.Port < 1 || c.Ollama.Port > 65535 {
		return docdex.Errorf(docdex.EINVALID, "ollama.port %d out of range [1, 65535]", c.Ollama.Port)
	}
	if c.Ollama.Model == "" {
		return docdex.Errorf(docdex.EINVALID, "ollama.model must not be empty")
	}
	if c.Ollama.BatchSize < 1 || c.Ollama.BatchSize > 1000 {
		return docdex.Errorf(docdex.EINVALID, "ollama.batch_size %d out of range [1, 1000]", c.Ollama.BatchSize)
	}
	if c.Browser.PoolSize < 1 || c.Browser.PoolSize > 10 {
		return docdex.Errorf(docdex.EINVALID, "browser.pool_size %d out of range [1, 10]", c.Browser.PoolSize)
	}
	if c.Browser.TabsPerBrowser < 1 || c.Browser.TabsPerBrowser > 10 {
		return docdex.Errorf(docdex.EINVALID, "browser.tabs_per_browser %d out of range [1, 10]", c.Browser.TabsPerBrowser)
	}
	if c.Browser.TimeoutSeconds < 1 || c.Browser.TimeoutSeconds > 300 {
		return docdex.Errorf(docdex.EINVALID, "browser.timeout_seconds %d out of range [1, 300]", c.Browser.TimeoutSeconds)
	}
	if c.Browser.WindowWidth < 100 || c.Browser.WindowWidth > 4000 {
		return docdex.Errorf(docdex.EINVALID, "browser.window_width %d out of range [100, 4000]", c.Browser.WindowWidth)
	}
	if c.Browser.WindowHeight < 100 || c.Browser.WindowHeight > 4000 {
		return docdex.Errorf(docdex.EINVALID, "browser.window_height %d out of range [100, 4000]", c.Browser.WindowHeight)
	}
	return nil
}

// Load reads the configuration at path, applying defaults for a
// missing file. Unknown keys are ignored; invalid TOML or out-of-range
// values are EINVALID.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, docdex.Errorf(docdex.EINVALID, "invalid configuration %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating the directory as
// needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DataDir returns the per-user data directory, honoring DOCDEX_DATA_DIR.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(home, defaultDataDirName)
}

// Paths inside a data directory.

// ConfigPath returns the config file location under dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// MetadataPath returns the SQLite database location under dataDir.
func MetadataPath(dataDir string) string {
	return filepath.Join(dataDir, "metadata.db")
}

// EmbeddingsDir returns the vector store directory under dataDir.
func EmbeddingsDir(dataDir string) string {
	return filepath.Join(dataDir, "embeddings")
}

// LockPath returns the indexer lock file under dataDir.
func LockPath(dataDir string) string {
	return filepath.Join(dataDir, ".indexer.lock")
}
