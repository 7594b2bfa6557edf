package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTavilyURL  = "https://api.tavily.com"
	maxSearchResults  = 20
	defaultAPITimeout = 60 * time.Second
)

// TavilyClient talks to the Tavily search, map and extract endpoints.
type TavilyClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewTavilyClient(apiKey string) *TavilyClient {
	return &TavilyClient{
		APIKey:     apiKey,
		BaseURL:    DefaultTavilyURL,
		HTTPClient: &http.Client{Timeout: defaultAPITimeout},
	}
}

// APIError is a non-200 answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tavily API error (status %d): %s", e.StatusCode, e.Message)
}

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type SearchResponse struct {
	Query        string         `json:"query"`
	Answer       string         `json:"answer,omitempty"`
	Results      []SearchResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

type MapResponse struct {
	BaseURL      string   `json:"base_url"`
	Results      []string `json:"results"`
	ResponseTime float64  `json:"response_time"`
}

type ExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

type FailedExtract struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

type ExtractResponse struct {
	Results       []ExtractResult `json:"results"`
	FailedResults []FailedExtract `json:"failed_results,omitempty"`
	ResponseTime  float64         `json:"response_time"`
}

type apiErrorBody struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

// Search runs a web search. maxResults is clamped to [1, 20].
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	var out SearchResponse
	err := c.post(ctx, "/search", map[string]any{
		"query":        query,
		"max_results":  maxResults,
		"search_depth": "basic",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Map crawls a site and returns the URLs it found.
func (c *TavilyClient) Map(ctx context.Context, url string) (*MapResponse, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	var out MapResponse
	if err := c.post(ctx, "/map", map[string]any{"url": url}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Extract returns the page content of the given URLs as markdown.
func (c *TavilyClient) Extract(ctx context.Context, urls ...string) (*ExtractResponse, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one url is required")
	}
	var out ExtractResponse
	if err := c.post(ctx, "/extract", map[string]any{"urls": urls}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *TavilyClient) post(ctx context.Context, path string, body map[string]any, out any) error {
	if c.APIKey == "" {
		return fmt.Errorf("TAVILY_API_KEY is not set")
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultTavilyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorBody
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Detail.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Detail.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

// String renders the results for the model.
func (r *SearchResponse) String() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("No results found for %q.", r.Query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results for %q:\n", len(r.Results), r.Query)
	for i, res := range r.Results {
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   %s\n", i+1, res.Title, res.URL, res.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *MapResponse) String() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("No pages found on %s.", r.BaseURL)
	}
	return fmt.Sprintf("Site map of %s (%d pages):\n%s", r.BaseURL, len(r.Results), strings.Join(r.Results, "\n"))
}
