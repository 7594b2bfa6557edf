package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// FinishTool is the sentinel tool name that ends the reasoning phase.
const FinishTool = "finish"

// Tool is a capability the agent can invoke by name.
type Tool interface {
	Name() string
	Description() string
	Schema() *jsonschema.Schema
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// ToolReply is the result of an asynchronous tool call.
type ToolReply struct {
	Observation string
	Err         error
}

// FuncTool adapts a typed Go function into a Tool. The argument schema is
// derived from Args.
type FuncTool[Args any] struct {
	name        string
	description string
	schema      *jsonschema.Schema
	fn          func(context.Context, Args) (string, error)
}

// NewTool wraps fn as a tool. Field descriptions come from `jsonschema` struct tags.
func NewTool[Args any](name, description string, fn func(context.Context, Args) (string, error)) (*FuncTool[Args], error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("agent: tool name is required")
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("agent: tool %s needs a description", name)
	}
	if fn == nil {
		return nil, fmt.Errorf("agent: tool %s has no function", name)
	}
	schema, err := jsonschema.For[Args](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to derive schema for tool %s: %w", name, err)
	}
	return &FuncTool[Args]{name: name, description: description, schema: schema, fn: fn}, nil
}

func (t *FuncTool[Args]) Name() string { return t.name }

func (t *FuncTool[Args]) Description() string { return t.description }

func (t *FuncTool[Args]) Schema() *jsonschema.Schema { return t.schema }

// Call decodes args into Args and runs the wrapped function. Errors from the
// function are returned as is.
func (t *FuncTool[Args]) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in Args
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", t.name, err)
		}
	}
	return t.fn(ctx, in)
}

// CallAsync runs the tool on its own goroutine. The channel receives exactly
// one reply and is then closed.
func CallAsync(ctx context.Context, t Tool, args json.RawMessage) <-chan ToolReply {
	ch := make(chan ToolReply, 1)
	go func() {
		defer close(ch)
		out, err := t.Call(ctx, args)
		ch <- ToolReply{Observation: out, Err: err}
	}()
	return ch
}

// Toolset is the closed set of tools a loop may dispatch to.
type Toolset struct {
	tools  []Tool
	byName map[string]Tool
}

// NewToolset registers tools in order. Names must be unique, non-empty and
// must not collide with FinishTool.
func NewToolset(tools ...Tool) (*Toolset, error) {
	s := &Toolset{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("agent: nil tool")
		}
		name := t.Name()
		switch {
		case name == "":
			return nil, errors.New("agent: tool name is required")
		case name == FinishTool:
			return nil, fmt.Errorf("%w: %s", ErrReservedToolName, name)
		}
		if _, ok := s.byName[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		s.byName[name] = t
		s.tools = append(s.tools, t)
	}
	return s, nil
}

// Lookup resolves a tool by exact name.
func (s *Toolset) Lookup(name string) (Tool, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTool, name, strings.Join(s.Names(), ", "))
	}
	return t, nil
}

// Tools returns the registered tools in registration order.
func (s *Toolset) Tools() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Names returns every name the model may choose, including FinishTool.
func (s *Toolset) Names() []string {
	names := make([]string, 0, len(s.tools)+1)
	for _, t := range s.tools {
		names = append(names, t.Name())
	}
	return append(names, FinishTool)
}

// Validate checks that every call names a registered tool or FinishTool.
func (s *Toolset) Validate(calls []ToolCall) error {
	if len(calls) == 0 {
		return fmt.Errorf("%w: no tool selected", ErrInvalidDecision)
	}
	for _, c := range calls {
		if c.Name == FinishTool {
			continue
		}
		if _, err := s.Lookup(c.Name); err != nil {
			return err
		}
	}
	return nil
}

// Describe renders the tool catalog for the model prompt.
func (s *Toolset) Describe() string {
	var b strings.Builder
	for i, t := range s.tools {
		schema := "{}"
		if t.Schema() != nil {
			if raw, err := json.Marshal(t.Schema()); err == nil {
				schema = string(raw)
			}
		}
		fmt.Fprintf(&b, "(%d) %s: %s\n    args: %s\n", i+1, t.Name(), t.Description(), schema)
	}
	fmt.Fprintf(&b, "(%d) %s: Marks the task as complete. Call it once enough information has been gathered to produce the final answer.\n    args: {}\n",
		len(s.tools)+1, FinishTool)
	return b.String()
}

// sortedNames is used for stable log output.
func sortedNames(calls []ToolCall) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}
