package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mikeboe/deep-leads/pkg/config"
)

// ModelType names a chat model of the configured provider.
type ModelType string

const (
	GeminiFlash ModelType = "gemini-2.5-flash"
	GeminiPro   ModelType = "gemini-2.5-pro"
	GPT41Mini   ModelType = "gpt-4.1-mini"
	GPT41       ModelType = "gpt-4.1"
)

// NewLLM returns a chat model for provider. An empty model picks the
// provider's default.
func NewLLM(ctx context.Context, cfg *config.Config, provider string, model ModelType) (llms.Model, error) {
	switch provider {
	case config.ProviderGoogle:
		return GoogleAi(ctx, cfg.GoogleApiKey, model)
	case config.ProviderOpenAI:
		return OpenAI(cfg.OpenAIApiKey, model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", provider)
	}
}

func GoogleAi(ctx context.Context, apiKey string, model ModelType) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = GeminiFlash
	}
	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to create google ai client: %w", err)
	}
	return llm, nil
}

func OpenAI(apiKey string, model ModelType) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = GPT41Mini
	}
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(string(model)))
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return llm, nil
}
