package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"

	DefaultConfigFile = "deep-leads.yaml"
)

type Config struct {
	GoogleApiKey string
	OpenAIApiKey string
	TavilyApiKey string
	DatabaseURL  string

	LLMProvider       string
	ResearcherModel   string
	OrchestratorModel string
	JudgeModel        string
	EmbeddingProvider string
	EmbeddingModel    string

	Port string

	MaxIters         int
	TraceFrames      int
	ContextWindow    int
	SearchResults    int
	MaxContentChunks int
	ChunkSize        int
	ChunkOverlap     int
	// MaxSteps bounds the steps kept in a trajectory, 0 keeps all.
	MaxSteps int

	MatchThreshold float64
	CollectionName string
	LogLevel       slog.Level
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LLMProvider:       ProviderGoogle,
		ResearcherModel:   "gemini-2.5-flash",
		OrchestratorModel: "gemini-2.5-pro",
		JudgeModel:        "gemini-2.5-flash",
		EmbeddingProvider: ProviderGoogle,
		EmbeddingModel:    "gemini-embedding-001",
		Port:              "3000",
		MaxIters:          10,
		TraceFrames:       5,
		SearchResults:     5,
		MaxContentChunks:  8,
		ChunkSize:         2000,
		ChunkOverlap:      100,
		MatchThreshold:    0.7,
		CollectionName:    "leads",
		LogLevel:          slog.LevelInfo,
	}
}

// Load reads .env, the optional YAML file and the environment, in that order
// of increasing precedence. The YAML path comes from DEEP_LEADS_CONFIG and
// defaults to ./deep-leads.yaml; a missing file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := getEnv("DEEP_LEADS_CONFIG", DefaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		file.ApplyTo(cfg)
	}

	cfg.GoogleApiKey = getEnv("GOOGLE_API_KEY", cfg.GoogleApiKey)
	cfg.OpenAIApiKey = getEnv("OPENAI_API_KEY", cfg.OpenAIApiKey)
	cfg.TavilyApiKey = getEnv("TAVILY_API_KEY", cfg.TavilyApiKey)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.ResearcherModel = getEnv("RESEARCHER_MODEL", cfg.ResearcherModel)
	cfg.OrchestratorModel = getEnv("ORCHESTRATOR_MODEL", cfg.OrchestratorModel)
	cfg.JudgeModel = getEnv("JUDGE_MODEL", cfg.JudgeModel)
	cfg.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MaxIters = getEnvAsInt("MAX_ITERS", cfg.MaxIters)
	cfg.TraceFrames = getEnvAsInt("TRACE_FRAMES", cfg.TraceFrames)
	cfg.ContextWindow = getEnvAsInt("CONTEXT_WINDOW", cfg.ContextWindow)
	cfg.SearchResults = getEnvAsInt("SEARCH_RESULTS", cfg.SearchResults)
	cfg.MaxContentChunks = getEnvAsInt("MAX_CONTENT_CHUNKS", cfg.MaxContentChunks)
	cfg.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.MaxSteps = getEnvAsInt("MAX_STEPS", cfg.MaxSteps)
	cfg.MatchThreshold = getEnvAsFloat("MATCH_THRESHOLD", cfg.MatchThreshold)
	cfg.CollectionName = getEnv("COLLECTION_NAME", cfg.CollectionName)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = ParseLogLevel(lvl)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks provider names and numeric ranges. API keys are checked
// where the clients are built.
func (c *Config) Validate() error {
	for name, p := range map[string]string{"LLM_PROVIDER": c.LLMProvider, "EMBEDDING_PROVIDER": c.EmbeddingProvider} {
		if p != ProviderGoogle && p != ProviderOpenAI {
			return fmt.Errorf("%s must be %q or %q, got %q", name, ProviderGoogle, ProviderOpenAI, p)
		}
	}
	if c.MaxIters <= 0 {
		return fmt.Errorf("MAX_ITERS must be positive, got %d", c.MaxIters)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("MAX_STEPS must not be negative, got %d", c.MaxSteps)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be within [0, 1], got %v", c.MatchThreshold)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
