package main

import (
	"context"
	"io"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/config"
	"github.com/docdex/docdex/index"
	"github.com/docdex/docdex/sqlite"
)

// Dependencies holds all services and configuration for command
// execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer

	DataDir string
	Config  *config.Config

	DB         *sqlite.DB
	Sites      docdex.SiteService
	Queue      docdex.QueueService
	Chunks     docdex.ChunkService
	Heartbeats docdex.HeartbeatService
	Vectors    docdex.VectorStore
	Embedder   docdex.Embedder
	Search     docdex.SearchService
	Indexer    *index.Indexer

	// CloseBrowser shuts down the render pool, if one was started.
	CloseBrowser func()
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config ConfigCmd `cmd:"" help:"Show or initialize the configuration"`
	Add    AddCmd    `cmd:"" help:"Register a documentation site and index it"`
	List   ListCmd   `cmd:"" help:"List registered sites"`
	Delete DeleteCmd `cmd:"" help:"Delete a site and its indexed content"`
	Update UpdateCmd `cmd:"" help:"Purge and re-index a site"`
	Status StatusCmd `cmd:"" help:"Show indexing status"`
	Serve  ServeCmd  `cmd:"" help:"Serve the MCP tools over stdio"`
}

// ConfigCmd is the "config" subcommand.
type ConfigCmd struct {
	Show bool `help:"Print the active configuration"`
}

// AddCmd is the "add" subcommand.
type AddCmd struct {
	URL     string `arg:"" help:"Documentation index URL"`
	Name    string `help:"Site name (defaults to the URL host)"`
	Version string `help:"Site version label"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct{}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	Site string `arg:"" help:"Site ID or name"`
}

// UpdateCmd is the "update" subcommand.
type UpdateCmd struct {
	Site string `arg:"" help:"Site ID or name"`
}

// StatusCmd is the "status" subcommand.
type StatusCmd struct{}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct{}
