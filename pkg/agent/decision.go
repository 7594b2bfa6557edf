package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Decision is the model's choice for the next step.
type Decision struct {
	Thought string
	Calls   []ToolCall
}

// Finishes reports whether the decision selects FinishTool.
func (d Decision) Finishes() bool {
	for _, c := range d.Calls {
		if c.Name == FinishTool {
			return true
		}
	}
	return false
}

// rawDecision accepts both the multi-call form and the single-call form.
type rawDecision struct {
	NextThought   string          `json:"next_thought"`
	NextToolCalls []ToolCall      `json:"next_tool_calls"`
	NextToolName  string          `json:"next_tool_name"`
	NextToolArgs  json.RawMessage `json:"next_tool_args"`
}

func parseDecision(content string) (Decision, error) {
	var raw rawDecision
	if err := decodeJSON(content, &raw); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	}

	calls := raw.NextToolCalls
	if len(calls) == 0 && raw.NextToolName != "" {
		calls = []ToolCall{{Name: raw.NextToolName, Args: raw.NextToolArgs}}
	}
	if len(calls) == 0 {
		return Decision{}, fmt.Errorf("%w: no tool selected", ErrInvalidDecision)
	}
	for i := range calls {
		calls[i].Name = strings.TrimSpace(calls[i].Name)
	}
	return Decision{Thought: raw.NextThought, Calls: calls}, nil
}

// decodeJSON unmarshals model output into v. Code fences are stripped, and
// malformed JSON gets one repair attempt before giving up.
func decodeJSON(content string, v any) error {
	content = stripCodeFence(content)
	err := json.Unmarshal([]byte(content), v)
	if err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return fmt.Errorf("failed to unmarshal model output and failed to repair JSON: %w (repair error: %v)", err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to unmarshal repaired JSON: %w", err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
