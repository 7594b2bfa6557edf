package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntriesPerStep is the number of keyed entries one step contributes to the
// flattened trajectory: thought, tool name, tool args and observation.
const EntriesPerStep = 4

// ToolCall is one tool invocation chosen by the model.
type ToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Step is one complete iteration of the loop.
type Step struct {
	Index        int        `json:"index"`
	Thought      string     `json:"thought"`
	Calls        []ToolCall `json:"calls"`
	Observations []string   `json:"observations"`
}

// Entry is one key/value pair of the flattened trajectory.
type Entry struct {
	Key   string
	Value string
}

// Trajectory is the ordered record of completed steps. Eviction always drops
// the oldest complete step, so keys are never split across a step boundary.
type Trajectory struct {
	steps    []Step
	evicted  int
	maxSteps int
}

// NewTrajectory returns an empty trajectory. With maxSteps > 0, appending
// past the bound evicts the oldest step.
func NewTrajectory(maxSteps int) *Trajectory {
	return &Trajectory{maxSteps: maxSteps}
}

// Append records a completed step and returns it.
func (t *Trajectory) Append(thought string, calls []ToolCall, observations []string) Step {
	step := Step{
		Index:        t.evicted + len(t.steps),
		Thought:      thought,
		Calls:        calls,
		Observations: observations,
	}
	t.steps = append(t.steps, step)
	if t.maxSteps > 0 && len(t.steps) > t.maxSteps {
		t.steps = t.steps[1:]
		t.evicted++
	}
	return step
}

// Len returns the number of retained steps.
func (t *Trajectory) Len() int { return len(t.steps) }

// EntryCount returns the number of flattened entries.
func (t *Trajectory) EntryCount() int { return len(t.steps) * EntriesPerStep }

// Evicted returns how many steps were dropped so far.
func (t *Trajectory) Evicted() int { return t.evicted }

// Steps returns a copy of the retained steps, oldest first.
func (t *Trajectory) Steps() []Step {
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

// Entries flattens the trajectory into thought_i, tool_name_i, tool_args_i,
// observation_i keys.
func (t *Trajectory) Entries() []Entry {
	entries := make([]Entry, 0, len(t.steps)*EntriesPerStep)
	for _, s := range t.steps {
		names, args, obs := s.render()
		entries = append(entries,
			Entry{Key: fmt.Sprintf("thought_%d", s.Index), Value: s.Thought},
			Entry{Key: fmt.Sprintf("tool_name_%d", s.Index), Value: names},
			Entry{Key: fmt.Sprintf("tool_args_%d", s.Index), Value: args},
			Entry{Key: fmt.Sprintf("observation_%d", s.Index), Value: obs},
		)
	}
	return entries
}

// Truncate drops the oldest complete step.
func (t *Trajectory) Truncate() error {
	if t.EntryCount() < EntriesPerStep {
		return ErrCannotTruncate
	}
	t.steps = t.steps[1:]
	t.evicted++
	return nil
}

// Format serializes the trajectory for the model prompt.
func (t *Trajectory) Format() string {
	if len(t.steps) == 0 {
		return "(no steps taken yet)"
	}
	var b strings.Builder
	for _, e := range t.Entries() {
		fmt.Fprintf(&b, "[[ %s ]]\n%s\n\n", e.Key, e.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *Trajectory) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Steps   []Step `json:"steps"`
		Evicted int    `json:"evicted"`
	}{Steps: t.steps, Evicted: t.evicted})
}

func (s Step) render() (names, args, observations string) {
	if len(s.Calls) == 1 {
		obs := ""
		if len(s.Observations) > 0 {
			obs = s.Observations[0]
		}
		return s.Calls[0].Name, argString(s.Calls[0].Args), obs
	}

	nameList := make([]string, len(s.Calls))
	argList := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		nameList[i] = c.Name
		argList[i] = argString(c.Args)
	}
	var ob strings.Builder
	for i, o := range s.Observations {
		if i > 0 {
			ob.WriteString("\n")
		}
		fmt.Fprintf(&ob, "[%d] %s", i+1, o)
	}
	return "[" + strings.Join(nameList, ", ") + "]", "[" + strings.Join(argList, ", ") + "]", ob.String()
}

func argString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
