package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the optional YAML overlay. Unset fields leave the defaults alone.
type File struct {
	Models struct {
		Provider          string `yaml:"provider"`
		Researcher        string `yaml:"researcher"`
		Orchestrator      string `yaml:"orchestrator"`
		Judge             string `yaml:"judge"`
		EmbeddingProvider string `yaml:"embedding_provider"`
		Embedding         string `yaml:"embedding"`
	} `yaml:"models"`

	Agent struct {
		MaxIters         int `yaml:"max_iters"`
		TraceFrames      int `yaml:"trace_frames"`
		ContextWindow    int `yaml:"context_window"`
		SearchResults    int `yaml:"search_results"`
		MaxContentChunks int `yaml:"max_content_chunks"`
		ChunkSize        int `yaml:"chunk_size"`
		ChunkOverlap     int `yaml:"chunk_overlap"`
		MaxSteps         int `yaml:"max_steps"`
	} `yaml:"agent"`

	Eval struct {
		MatchThreshold *float64 `yaml:"match_threshold"`
	} `yaml:"eval"`

	LogLevel string `yaml:"log_level"`
}

// LoadFile reads and parses a YAML config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &f, nil
}

// ApplyTo copies every set field onto cfg.
func (f *File) ApplyTo(cfg *Config) {
	setString(&cfg.LLMProvider, f.Models.Provider)
	setString(&cfg.ResearcherModel, f.Models.Researcher)
	setString(&cfg.OrchestratorModel, f.Models.Orchestrator)
	setString(&cfg.JudgeModel, f.Models.Judge)
	setString(&cfg.EmbeddingProvider, f.Models.EmbeddingProvider)
	setString(&cfg.EmbeddingModel, f.Models.Embedding)

	setInt(&cfg.MaxIters, f.Agent.MaxIters)
	setInt(&cfg.TraceFrames, f.Agent.TraceFrames)
	setInt(&cfg.ContextWindow, f.Agent.ContextWindow)
	setInt(&cfg.SearchResults, f.Agent.SearchResults)
	setInt(&cfg.MaxContentChunks, f.Agent.MaxContentChunks)
	setInt(&cfg.ChunkSize, f.Agent.ChunkSize)
	setInt(&cfg.ChunkOverlap, f.Agent.ChunkOverlap)
	setInt(&cfg.MaxSteps, f.Agent.MaxSteps)

	if f.Eval.MatchThreshold != nil {
		cfg.MatchThreshold = *f.Eval.MatchThreshold
	}
	if f.LogLevel != "" {
		cfg.LogLevel = ParseLogLevel(f.LogLevel)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
