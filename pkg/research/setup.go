package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-leads/pkg/clients"
	"github.com/mikeboe/deep-leads/pkg/config"
	"github.com/mikeboe/deep-leads/pkg/research/tools"
	"github.com/mikeboe/deep-leads/pkg/splitter"
)

// NewWeb builds the web tools from cfg: Tavily, with a direct page fetch
// when extraction fails.
func NewWeb(cfg *config.Config, logger *slog.Logger) (*tools.Web, error) {
	if cfg.TavilyApiKey == "" {
		return nil, errors.New("TAVILY_API_KEY is not set")
	}
	return &tools.Web{
		API:           tools.NewTavilyClient(cfg.TavilyApiKey),
		Fallback:      tools.NewPageFetcher(),
		Splitter:      splitter.NewRecursiveCharacterTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		MaxChunks:     cfg.MaxContentChunks,
		SearchResults: cfg.SearchResults,
		Logger:        logger,
	}, nil
}

// NewEngineFromConfig wires models and web tools as configured.
func NewEngineFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ResearchEngine, error) {
	researcher, err := clients.NewLLM(ctx, cfg, cfg.LLMProvider, clients.ModelType(cfg.ResearcherModel))
	if err != nil {
		return nil, fmt.Errorf("failed to create researcher model: %w", err)
	}
	orchestrator, err := clients.NewLLM(ctx, cfg, cfg.LLMProvider, clients.ModelType(cfg.OrchestratorModel))
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator model: %w", err)
	}
	web, err := NewWeb(cfg, logger)
	if err != nil {
		return nil, err
	}

	engine, err := NewEngine(Config{
		SearchResults:     cfg.SearchResults,
		MaxIters:          cfg.MaxIters,
		TraceFrames:       cfg.TraceFrames,
		ContextWindow:     cfg.ContextWindow,
		TokenizerModel:    cfg.ResearcherModel,
		MaxSteps:          cfg.MaxSteps,
		ResearcherModel:   cfg.ResearcherModel,
		OrchestratorModel: cfg.OrchestratorModel,
	}, researcher, orchestrator, web)
	if err != nil {
		return nil, err
	}
	engine.Logger = logger
	return engine, nil
}
