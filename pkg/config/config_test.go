package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEEP_LEADS_CONFIG", "missing.yaml")
	t.Setenv("MAX_ITERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxIters)
	assert.Equal(t, 5, cfg.TraceFrames)
	assert.Equal(t, 0.7, cfg.MatchThreshold)
	assert.Equal(t, ProviderGoogle, cfg.LLMProvider)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
models:
  provider: openai
  researcher: gpt-4.1-mini
agent:
  max_iters: 20
  trace_frames: 3
  max_steps: 6
eval:
  match_threshold: 0.8
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("DEEP_LEADS_CONFIG", path)
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("MAX_ITERS", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4.1-mini", cfg.ResearcherModel)
	assert.Equal(t, 12, cfg.MaxIters, "env wins over file")
	assert.Equal(t, 3, cfg.TraceFrames)
	assert.Equal(t, 6, cfg.MaxSteps)
	assert.Equal(t, 0.8, cfg.MatchThreshold)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"Defaults", func(c *Config) {}, true},
		{"Bad provider", func(c *Config) { c.LLMProvider = "anthropic" }, false},
		{"Bad embedding provider", func(c *Config) { c.EmbeddingProvider = "" }, false},
		{"Zero iterations", func(c *Config) { c.MaxIters = 0 }, false},
		{"Threshold out of range", func(c *Config) { c.MatchThreshold = 1.5 }, false},
		{"Zero threshold", func(c *Config) { c.MatchThreshold = 0 }, true},
		{"Negative max steps", func(c *Config) { c.MaxSteps = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}
