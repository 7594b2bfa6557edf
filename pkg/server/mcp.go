package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/deep-leads/pkg/research/tools"
	"github.com/mikeboe/deep-leads/pkg/vectorstore"
)

const (
	mcpServerName = "deep-leads-mcp"
	defaultLeadK  = 5
	maxLeadK      = 50
)

type SearchLeadsArgs struct {
	Query string `json:"query" jsonschema:"free-text description of the people to look for"`
	K     int    `json:"k,omitempty" jsonschema:"number of leads to return, default 5"`
}

type FindLeadsArgs struct {
	Institution  string   `json:"institution,omitempty" jsonschema:"exact institution name"`
	Institutions []string `json:"institutions,omitempty" jsonschema:"match leads at any of these institutions"`
	JobID        string   `json:"job_id,omitempty" jsonschema:"id of the search job that found the leads"`
	ExcludeJobID string   `json:"exclude_job_id,omitempty" jsonschema:"skip leads found by this search job"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of leads, default 5"`
}

// leadFilter turns the arguments into a metadata filter. Several criteria
// are combined with $and; an empty filter means no criteria were given.
func leadFilter(in FindLeadsArgs) map[string]any {
	var conds []any
	if in.Institution != "" {
		conds = append(conds, map[string]any{"institution": in.Institution})
	}
	if len(in.Institutions) > 0 {
		anyOf := make([]any, 0, len(in.Institutions))
		for _, inst := range in.Institutions {
			anyOf = append(anyOf, map[string]any{"institution": inst})
		}
		conds = append(conds, map[string]any{"$or": anyOf})
	}
	if in.JobID != "" {
		conds = append(conds, map[string]any{"job_id": in.JobID})
	}
	if in.ExcludeJobID != "" {
		conds = append(conds, map[string]any{"$not": map[string]any{"job_id": in.ExcludeJobID}})
	}
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0].(map[string]any)
	}
	return map[string]any{"$and": conds}
}

// NewMCPServer exposes the web tools and the stored leads over MCP. index
// may be nil, in which case the lead tools are not registered.
func NewMCPServer(web *tools.Web, index *vectorstore.LeadIndex, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: mcpServerName, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "browse_web",
		Description: "Browse the web for information. Returns titles, URLs and snippets of the top results.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in tools.QueryArgs) (*mcp.CallToolResult, any, error) {
		return webResult(web.BrowseWeb(ctx, in.Query)), nil, nil
	})
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_website_map",
		Description: "Get the website map: the list of page URLs found on a site.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in tools.URLArgs) (*mcp.CallToolResult, any, error) {
		return webResult(web.WebsiteMap(ctx, in.URL)), nil, nil
	})
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_website_content",
		Description: "Get the website content of a single page as markdown.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in tools.URLArgs) (*mcp.CallToolResult, any, error) {
		return webResult(web.WebsiteContent(ctx, in.URL)), nil, nil
	})

	if index == nil {
		return server
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_leads",
		Description: "Search previously found leads by semantic similarity.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in SearchLeadsArgs) (*mcp.CallToolResult, any, error) {
		if in.Query == "" {
			return nil, nil, errors.New("query is required")
		}
		matches, err := index.Similar(ctx, in.Query, clampK(in.K), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("lead search failed: %w", err)
		}
		if matches == nil {
			matches = []vectorstore.LeadMatch{}
		}
		return jsonResult(matches)
	})
	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_leads",
		Description: "List previously found leads by institution or search job. Criteria are combined with AND.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in FindLeadsArgs) (*mcp.CallToolResult, any, error) {
		filter := leadFilter(in)
		if filter == nil {
			return nil, nil, errors.New("at least one of institution, institutions, job_id or exclude_job_id is required")
		}
		matches, err := index.Find(ctx, filter, clampK(in.Limit))
		if err != nil {
			return nil, nil, fmt.Errorf("lead lookup failed: %w", err)
		}
		if matches == nil {
			matches = []vectorstore.LeadMatch{}
		}
		return jsonResult(matches)
	})
	return server
}

// NewMCPHandler serves server over the streamable HTTP transport.
func NewMCPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func webResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: tools.IsErrorSentinel(text),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil, nil
}

func clampK(k int) int {
	if k <= 0 {
		return defaultLeadK
	}
	return min(k, maxLeadK)
}
