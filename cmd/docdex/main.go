// Command docdex indexes developer documentation sites into a local
// hybrid store and serves semantic search to AI coding agents over the
// Model Context Protocol.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/chromem"
	"github.com/docdex/docdex/chunk"
	"github.com/docdex/docdex/config"
	"github.com/docdex/docdex/crawl"
	"github.com/docdex/docdex/goquery"
	dochttp "github.com/docdex/docdex/http"
	"github.com/docdex/docdex/htmltomarkdown"
	"github.com/docdex/docdex/index"
	"github.com/docdex/docdex/ollama"
	"github.com/docdex/docdex/rod"
	"github.com/docdex/docdex/search"
	docslog "github.com/docdex/docdex/slog"
	"github.com/docdex/docdex/sqlite"
	"github.com/docdex/docdex/trafilatura"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitRuntime = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitOK)
}

// exitCodeFor maps error codes to the CLI exit convention: user and
// configuration errors exit 1, runtime failures exit 2.
func exitCodeFor(err error) int {
	switch docdex.ErrorCode(err) {
	case docdex.EINVALID, docdex.ENOTFOUND, docdex.ECONFLICT:
		return exitUsage
	default:
		return exitRuntime
	}
}

// Main represents the program.
type Main struct {
	// DataDir is resolved before Run; override for tests.
	DataDir string

	// DB is retained for end-to-end tests.
	DB *sqlite.DB
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{DataDir: config.DataDir()}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:     ctx,
		Stdout:  stdout,
		Stderr:  stderr,
		DataDir: m.DataDir,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docdex"),
		kong.Description("Local documentation indexing and MCP retrieval engine."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return docdex.Errorf(docdex.EINVALID, "no command specified; run 'docdex --help'")
	}
	if cmd := args[0]; cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return docdex.Errorf(docdex.EINVALID, "%v", err)
	}

	if err := os.MkdirAll(m.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", m.DataDir, err)
	}

	cfg, err := config.Load(config.ConfigPath(m.DataDir))
	if err != nil {
		return err
	}
	deps.Config = cfg

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	slog.SetDefault(logger)

	// The config command only needs the configuration itself.
	if strings.HasPrefix(kongCtx.Command(), "config") {
		return kongCtx.Run(deps)
	}

	if err := m.wire(deps, cfg, logger); err != nil {
		return err
	}
	defer m.Close()
	if deps.CloseBrowser != nil {
		defer deps.CloseBrowser()
	}
	defer deps.Vectors.Close()

	return kongCtx.Run(deps)
}

// wire opens the stores and builds the service graph.
func (m *Main) wire(deps *Dependencies, cfg *config.Config, logger *slog.Logger) error {
	m.DB = sqlite.NewDB(config.MetadataPath(m.DataDir))
	if err := m.DB.Open(); err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	deps.DB = m.DB
	deps.Sites = sqlite.NewSiteService(m.DB)
	deps.Queue = sqlite.NewQueueService(m.DB)
	deps.Chunks = sqlite.NewChunkService(m.DB)
	deps.Heartbeats = sqlite.NewHeartbeatService(m.DB)

	vectors, err := chromem.Open(config.EmbeddingsDir(m.DataDir), chromem.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	deps.Vectors = vectors

	deps.Embedder = docslog.NewLoggingEmbedder(ollama.NewEmbedder(
		ollama.WithBaseURL(cfg.Ollama.BaseURL()),
		ollama.WithModel(cfg.Ollama.Model),
		ollama.WithBatchSize(cfg.Ollama.BatchSize),
	), logger)

	fetchOpts := []dochttp.Option{
		dochttp.WithLimiter(crawl.NewHostLimiter(crawl.DefaultHostInterval)),
	}
	if cfg.Browser.Enabled {
		pool, err := rod.NewPool(rod.PoolConfig{
			Instances:       cfg.Browser.PoolSize,
			TabsPerInstance: cfg.Browser.TabsPerBrowser,
			Windowed:        !cfg.Browser.Headless,
			WindowWidth:     cfg.Browser.WindowWidth,
			WindowHeight:    cfg.Browser.WindowHeight,
		})
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: Chrome or Chromium must be installed for browser rendering")
			return fmt.Errorf("starting browser pool: %w", err)
		}
		deps.CloseBrowser = pool.Close
		fetchOpts = append(fetchOpts, dochttp.WithRenderer(rod.NewRenderer(pool,
			rod.WithRenderTimeout(time.Duration(cfg.Browser.TimeoutSeconds)*time.Second))))
	}

	fetcher := docslog.NewLoggingFetcher(dochttp.NewFetcher(fetchOpts...), logger)
	robots := dochttp.NewRobotsService(nil, dochttp.WithRobotsLogger(logger))
	sitemaps := dochttp.NewSitemapService(nil, robots)
	extractor := goquery.NewExtractor(
		htmltomarkdown.NewConverter(),
		goquery.WithFallback(trafilatura.NewLocator()),
	)

	deps.Indexer = &index.Indexer{
		Sites:      deps.Sites,
		Queue:      deps.Queue,
		Chunks:     deps.Chunks,
		Heartbeats: deps.Heartbeats,
		Vectors:    deps.Vectors,
		Embedder:   deps.Embedder,
		Chunker:    chunk.NewChunker(),
		Crawler: &crawl.Crawler{
			Sites:     deps.Sites,
			Queue:     deps.Queue,
			Fetcher:   fetcher,
			Robots:    robots,
			Extractor: extractor,
			Sitemaps:  sitemaps,
			Logger:    logger,
		},
		LockPath: config.LockPath(m.DataDir),
		Logger:   logger,
	}

	deps.Search = search.NewSearcher(deps.Sites, deps.Vectors, deps.Embedder)
	return nil
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}
