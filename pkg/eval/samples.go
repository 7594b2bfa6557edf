package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mikeboe/deep-leads/pkg/leads"
)

// LoadSamples reads benchmark samples from path. The file holds either a
// JSON array of samples or a checkpoint object with a "results" array.
// Malformed records are skipped with a warning.
func LoadSamples(path string, logger *slog.Logger) ([]leads.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	return ParseSamples(data, logger)
}

func ParseSamples(data []byte, logger *slog.Logger) ([]leads.Sample, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var records []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode samples: %w", err)
		}
		records = wrapper.Results
	} else if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}

	samples := make([]leads.Sample, 0, len(records))
	for i, rec := range records {
		var s leads.Sample
		if err := json.Unmarshal(rec, &s); err != nil {
			logger.Warn("Skipping malformed sample", "index", i, "error", err)
			continue
		}
		if err := leads.Validate(s); err != nil {
			logger.Warn("Skipping malformed sample", "index", i, "error", err)
			continue
		}
		samples = append(samples, s)
	}
	logger.Info("Loaded samples", "count", len(samples), "skipped", len(records)-len(samples))
	return samples, nil
}
