package embeddings

import (
	"context"
	"fmt"

	"github.com/mikeboe/deep-leads/pkg/config"
)

// Dimensions is the vector size stored in the lead index.
const Dimensions = 1536

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the embedder selected by cfg.EmbeddingProvider.
func New(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderGoogle:
		if cfg.GoogleApiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
		}
		return NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey)
	case config.ProviderOpenAI:
		if cfg.OpenAIApiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return NewOpenAIEmbedder(cfg.OpenAIApiKey, cfg.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.EmbeddingProvider)
	}
}
