package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-leads/pkg/agent"
)

// Sentinel observations returned instead of errors, so a failed lookup never
// stops the agent.
const (
	BrowseWebError      = "Error browsing the web"
	WebsiteMapError     = "Error getting the website map"
	WebsiteContentError = "Error getting the website content"
)

const (
	DefaultSearchResults    = 5
	DefaultMaxContentChunks = 8
)

// IsErrorSentinel reports whether s is one of the failure observations.
func IsErrorSentinel(s string) bool {
	switch s {
	case BrowseWebError, WebsiteMapError, WebsiteContentError:
		return true
	}
	return false
}

// WebAPI is the hosted search backend.
type WebAPI interface {
	Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error)
	Map(ctx context.Context, url string) (*MapResponse, error)
	Extract(ctx context.Context, urls ...string) (*ExtractResponse, error)
}

// Fetcher retrieves a single page as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Chunker splits long text.
type Chunker interface {
	SplitText(text string) ([]string, error)
}

// Web backs the agent's web tools.
type Web struct {
	API WebAPI
	// Fallback is used when extraction through the API fails. Optional.
	Fallback Fetcher
	// Splitter caps page content at MaxChunks chunks. Optional.
	Splitter      Chunker
	MaxChunks     int
	SearchResults int
	Logger        *slog.Logger
}

func (w *Web) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// BrowseWeb searches the web for query.
func (w *Web) BrowseWeb(ctx context.Context, query string) string {
	n := w.SearchResults
	if n <= 0 {
		n = DefaultSearchResults
	}
	res, err := w.API.Search(ctx, query, n)
	if err != nil {
		w.logger().Warn(BrowseWebError, "query", query, "error", err)
		return BrowseWebError
	}
	w.logger().Debug("Web search done", "query", query, "results", len(res.Results))
	return res.String()
}

// WebsiteMap lists the pages of the site at url.
func (w *Web) WebsiteMap(ctx context.Context, url string) string {
	res, err := w.API.Map(ctx, url)
	if err != nil {
		w.logger().Warn(WebsiteMapError, "url", url, "error", err)
		return WebsiteMapError
	}
	if res.BaseURL == "" {
		res.BaseURL = url
	}
	return res.String()
}

// WebsiteContent returns the content of the page at url.
func (w *Web) WebsiteContent(ctx context.Context, url string) string {
	content, err := w.extract(ctx, url)
	if err != nil && w.Fallback != nil {
		w.logger().Info("Extraction failed, fetching page directly", "url", url, "error", err)
		content, err = w.Fallback.Fetch(ctx, url)
	}
	if err != nil {
		w.logger().Warn(WebsiteContentError, "url", url, "error", err)
		return WebsiteContentError
	}
	return fmt.Sprintf("-----\n# URL: %s\n-----\n\n%s", url, w.capContent(content))
}

func (w *Web) extract(ctx context.Context, url string) (string, error) {
	res, err := w.API.Extract(ctx, url)
	if err != nil {
		return "", err
	}
	if len(res.Results) == 0 {
		if len(res.FailedResults) > 0 && res.FailedResults[0].Error != "" {
			return "", fmt.Errorf("extract %s: %s", url, res.FailedResults[0].Error)
		}
		return "", fmt.Errorf("extract %s: no content", url)
	}
	parts := make([]string, 0, len(res.Results))
	for _, r := range res.Results {
		parts = append(parts, r.RawContent)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (w *Web) capContent(content string) string {
	if w.Splitter == nil {
		return content
	}
	limit := w.MaxChunks
	if limit <= 0 {
		limit = DefaultMaxContentChunks
	}
	chunks, err := w.Splitter.SplitText(content)
	if err != nil || len(chunks) <= limit {
		return content
	}
	w.logger().Debug("Page content capped", "chunks", len(chunks), "kept", limit)
	return strings.Join(chunks[:limit], "\n\n") +
		fmt.Sprintf("\n\n[content truncated: showing %d of %d chunks]", limit, len(chunks))
}

type QueryArgs struct {
	Query string `json:"query" jsonschema:"the web search query"`
}

type URLArgs struct {
	URL string `json:"url" jsonschema:"the URL of the website"`
}

// AgentTools returns browse_web, get_website_map and get_website_content.
func (w *Web) AgentTools() ([]agent.Tool, error) {
	browse, err := agent.NewTool("browse_web", "Browse the web for information. Returns titles, URLs and snippets of the top results.",
		func(ctx context.Context, in QueryArgs) (string, error) {
			return w.BrowseWeb(ctx, in.Query), nil
		})
	if err != nil {
		return nil, err
	}
	siteMap, err := agent.NewTool("get_website_map", "Get the website map: the list of page URLs found on a site.",
		func(ctx context.Context, in URLArgs) (string, error) {
			return w.WebsiteMap(ctx, in.URL), nil
		})
	if err != nil {
		return nil, err
	}
	content, err := agent.NewTool("get_website_content", "Get the website content of a single page as markdown.",
		func(ctx context.Context, in URLArgs) (string, error) {
			return w.WebsiteContent(ctx, in.URL), nil
		})
	if err != nil {
		return nil, err
	}
	return []agent.Tool{browse, siteMap, content}, nil
}
