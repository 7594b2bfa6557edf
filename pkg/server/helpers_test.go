package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-leads/pkg/research/tools"
)

type scriptedModel struct {
	mu      sync.Mutex
	replies []string
}

func (m *scriptedModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return nil, errors.New("scripted model: no replies left")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: r}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

type stubAPI struct {
	err error
}

func (s stubAPI) Search(ctx context.Context, query string, n int) (*tools.SearchResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tools.SearchResponse{Query: query, Results: []tools.SearchResult{
		{Title: "Faculty directory", URL: "https://faculty.example.edu", Content: "Jane Roe, Professor of Nutrition"},
	}}, nil
}

func (s stubAPI) Map(ctx context.Context, url string) (*tools.MapResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tools.MapResponse{BaseURL: url, Results: []string{url + "/people"}}, nil
}

func (s stubAPI) Extract(ctx context.Context, urls ...string) (*tools.ExtractResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tools.ExtractResponse{Results: []tools.ExtractResult{{URL: urls[0], RawContent: "Jane Roe"}}}, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testWeb(err error) *tools.Web {
	return &tools.Web{API: stubAPI{err: err}, Logger: discardLogger()}
}

// jsonArg matches a JSON-encoded query argument against want.
type jsonArg struct {
	want map[string]any
}

func (a jsonArg) Match(v any) bool {
	var raw []byte
	switch x := v.(type) {
	case []byte:
		raw = x
	case json.RawMessage:
		raw = x
	case string:
		raw = []byte(x)
	default:
		return false
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	return reflect.DeepEqual(got, a.want)
}
