package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docdex/docdex"
)

// SearchDocsInput is the input schema for the search_docs tool.
type SearchDocsInput struct {
	Query       string `json:"query" jsonschema:"the natural language search query"`
	SiteID      *int64 `json:"site_id,omitempty" jsonschema:"restrict results to a single site ID"`
	SitesFilter string `json:"sites_filter,omitempty" jsonschema:"regex matched against site names and base URLs"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
}

// SearchDocsOutput is the output schema for the search_docs tool.
type SearchDocsOutput struct {
	Results []SearchDocsResult `json:"results"`
}

// SearchDocsResult is a single ranked hit.
type SearchDocsResult struct {
	Content        string  `json:"content"`
	URL            string  `json:"url"`
	PageTitle      string  `json:"page_title,omitempty"`
	HeadingPath    string  `json:"heading_path,omitempty"`
	SiteName       string  `json:"site_name"`
	SiteVersion    string  `json:"site_version,omitempty"`
	RelevanceScore float32 `json:"relevance_score"`
}

// ListSitesOutput is the output schema for the list_sites tool.
type ListSitesOutput struct {
	Sites []SiteInfo `json:"sites"`
}

// SiteInfo describes one completed site.
type SiteInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	IndexedDate string `json:"indexed_date,omitempty"`
	PageCount   int    `json:"page_count"`
}

// registerTools registers the tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_docs",
		Description: "Semantic search over locally indexed documentation sites",
	}, s.handleSearchDocs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sites",
		Description: "List indexed documentation sites available for searching",
	}, s.handleListSites)
}

// handleSearchDocs handles the search_docs tool invocation.
func (s *Server) handleSearchDocs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchDocsInput,
) (*mcp.CallToolResult, SearchDocsOutput, error) {
	results, err := s.search.SearchDocs(ctx, input.Query, docdex.SearchOptions{
		SiteID:      input.SiteID,
		SitesFilter: input.SitesFilter,
		Limit:       input.Limit,
	})
	if err != nil {
		return nil, SearchDocsOutput{}, err
	}

	output := SearchDocsOutput{Results: make([]SearchDocsResult, len(results))}
	for i, r := range results {
		output.Results[i] = SearchDocsResult{
			Content:        r.Content,
			URL:            r.URL,
			PageTitle:      r.PageTitle,
			HeadingPath:    r.HeadingPath,
			SiteName:       r.SiteName,
			SiteVersion:    r.SiteVersion,
			RelevanceScore: r.RelevanceScore,
		}
	}
	return nil, output, nil
}

// handleListSites handles the list_sites tool invocation.
func (s *Server) handleListSites(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, ListSitesOutput, error) {
	sites, err := s.search.ListCompletedSites(ctx)
	if err != nil {
		return nil, ListSitesOutput{}, err
	}

	output := ListSitesOutput{Sites: make([]SiteInfo, len(sites))}
	for i, site := range sites {
		info := SiteInfo{
			ID:        site.ID,
			Name:      site.Name,
			Version:   site.Version,
			URL:       site.IndexURL,
			Status:    string(site.Status),
			PageCount: site.IndexedPages,
		}
		if site.IndexedDate != nil {
			info.IndexedDate = site.IndexedDate.UTC().Format(time.RFC3339)
		}
		output.Sites[i] = info
	}
	return nil, output, nil
}
