package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mikeboe/deep-leads/pkg/database"
	"github.com/mikeboe/deep-leads/pkg/embeddings"
	"github.com/mikeboe/deep-leads/pkg/leads"
)

// LeadIndex stores found leads with an embedding of their text rendering so
// later searches can look them up by meaning.
type LeadIndex struct {
	Store    *PGVectorStore
	Embedder embeddings.Embedder
}

func NewLeadIndex(db database.Querier, tableName string, embedder embeddings.Embedder) (*LeadIndex, error) {
	store, err := NewPGVectorStore(db, tableName)
	if err != nil {
		return nil, err
	}
	return &LeadIndex{Store: store, Embedder: embedder}, nil
}

// LeadMatch is an indexed lead and where it came from.
type LeadMatch struct {
	Lead  leads.Lead `json:"lead"`
	Query string     `json:"query,omitempty"`
	JobID string     `json:"job_id,omitempty"`
	Score float64    `json:"score,omitempty"`
}

// Index embeds and stores ls. query and jobID are kept as metadata.
func (ix *LeadIndex) Index(ctx context.Context, query, jobID string, ls []leads.Lead) error {
	if len(ls) == 0 {
		return nil
	}
	texts := make([]string, len(ls))
	for i, l := range ls {
		texts[i] = l.String()
	}
	vecs, err := ix.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed leads: %w", err)
	}

	docs := make([]Document, len(ls))
	for i, l := range ls {
		docs[i] = Document{
			Content: texts[i],
			Metadata: map[string]any{
				"name":        l.Name,
				"institution": l.Institution,
				"source_url":  l.SourceURL,
				"query":       query,
				"job_id":      jobID,
				"lead":        l,
			},
			Embedding: vecs[i],
		}
	}
	return ix.Store.AddDocuments(ctx, docs)
}

// Similar returns the k leads closest in meaning to text.
func (ix *LeadIndex) Similar(ctx context.Context, text string, k int, filter map[string]any) ([]LeadMatch, error) {
	vec, err := ix.Embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := ix.Store.SimilaritySearch(ctx, vec, k, filter)
	if err != nil {
		return nil, err
	}
	matches := make([]LeadMatch, 0, len(results))
	for _, r := range results {
		m, err := matchFromMetadata(r.Document.Metadata)
		if err != nil {
			return nil, err
		}
		m.Score = r.Score
		matches = append(matches, m)
	}
	return matches, nil
}

// Find returns indexed leads matching a metadata filter, newest first.
func (ix *LeadIndex) Find(ctx context.Context, filter map[string]any, limit int) ([]LeadMatch, error) {
	docs, err := ix.Store.GetContentByMetadata(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	matches := make([]LeadMatch, 0, len(docs))
	for _, d := range docs {
		m, err := matchFromMetadata(d.Metadata)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func matchFromMetadata(meta map[string]any) (LeadMatch, error) {
	var m LeadMatch
	raw, err := json.Marshal(meta["lead"])
	if err != nil {
		return m, fmt.Errorf("failed to read lead metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &m.Lead); err != nil {
		return m, fmt.Errorf("failed to decode lead metadata: %w", err)
	}
	m.Query, _ = meta["query"].(string)
	m.JobID, _ = meta["job_id"].(string)
	return m, nil
}
