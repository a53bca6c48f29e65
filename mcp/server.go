// Package mcp exposes docdex retrieval to AI coding agents over the
// Model Context Protocol: the search_docs and list_sites tools served
// on stdio.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docdex/docdex"
)

// Version is the MCP server version.
const Version = "1.0.0"

// Server is the docdex MCP server.
type Server struct {
	search docdex.SearchService
	server *mcp.Server
}

// NewServer creates an MCP server backed by the given search service.
func NewServer(search docdex.SearchService) (*Server, error) {
	if search == nil {
		return nil, docdex.Errorf(docdex.EINVALID, "search service required")
	}

	impl := &mcp.Implementation{
		Name:    "docdex",
		Version: Version,
	}

	s := &Server{
		search: search,
		server: mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves the MCP protocol over stdio until the context is canceled
// or the peer disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
