package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tmc/langchaingo/llms"
)

const DefaultJudgeThreshold = 0.5

const correctnessCriteria = "Determine if the 'actual output' contains all the information from the 'expected output'."

var correctnessSteps = []string{
	"Check if all the leads on 'actual output' are present in 'expected output'",
	"Check the quality of the leads on 'actual output' compared to 'expected output'",
	"Heavily penalize leads on 'actual output' that are not present in 'expected output'",
}

// Verdict is the judge's grade, normalised to 0-1.
type Verdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
	Passed bool    `json:"passed"`
}

// Judge grades an agent answer against the expected answer with an LLM.
type Judge struct {
	Model     llms.Model
	Threshold float64
	Retries   int
	Backoff   time.Duration
	Logger    *slog.Logger
}

func NewJudge(model llms.Model) *Judge {
	return &Judge{
		Model:     model,
		Threshold: DefaultJudgeThreshold,
		Retries:   3,
		Backoff:   time.Second,
		Logger:    slog.Default(),
	}
}

type rawVerdict struct {
	Score  *float64 `json:"score"`
	Reason string   `json:"reason"`
}

// Correctness grades actual against expected for the given input on a
// 0-10 scale and normalises the result.
func (j *Judge) Correctness(ctx context.Context, input, actual, expected string) (Verdict, error) {
	if j.Model == nil {
		return Verdict{}, errors.New("eval: judge has no model")
	}
	prompts := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, judgeSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(
			"Input:\n%s\n\nActual output:\n%s\n\nExpected output:\n%s", input, actual, expected)),
	}

	var raw rawVerdict
	err := j.generateWithRetry(ctx, prompts, func(content string) error {
		raw = rawVerdict{}
		if err := unmarshalLenient(content, &raw); err != nil {
			return err
		}
		if raw.Score == nil {
			return errors.New("missing score")
		}
		if *raw.Score < 0 || *raw.Score > 10 {
			return fmt.Errorf("score %v out of range", *raw.Score)
		}
		return nil
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("judge failed: %w", err)
	}

	threshold := j.Threshold
	if threshold <= 0 {
		threshold = DefaultJudgeThreshold
	}
	score := *raw.Score / 10
	return Verdict{Score: score, Reason: raw.Reason, Passed: score >= threshold}, nil
}

func judgeSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an evaluator. Grade the actual output of a lead research agent against the expected output.\n\n")
	b.WriteString("Criteria: " + correctnessCriteria + "\n\nEvaluation steps:\n")
	for i, s := range correctnessSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nRespond with a single JSON object: {\"score\": <integer 0-10>, \"reason\": \"<one or two sentences>\"}. ")
	b.WriteString("10 means the actual output fully meets the criteria, 0 means it does not meet them at all.")
	return b.String()
}

// generateWithRetry calls the model until validate accepts the content.
func (j *Judge) generateWithRetry(ctx context.Context, prompts []llms.MessageContent, validate func(string) error) error {
	retries := j.Retries
	if retries <= 0 {
		retries = 1
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		if i > 0 {
			logger.Warn("Retrying judge generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(j.Backoff * time.Duration(i)):
			}
		}

		resp, err := j.Model.GenerateContent(ctx, prompts, llms.WithJSONMode())
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if resp == nil || len(resp.Choices) == 0 {
			lastErr = errors.New("llm returned no choices")
			continue
		}
		if err := validate(resp.Choices[0].Content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("operation failed after %d retries: %w", retries, lastErr)
}

func unmarshalLenient(content string, v any) error {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return json.Unmarshal([]byte(repaired), v)
}
