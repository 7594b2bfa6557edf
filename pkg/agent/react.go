package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxIters       = 10
	DefaultTraceFrames    = 5
	DefaultMaxTruncations = 3
	DefaultExtractRetries = 3
)

// Config controls the reasoning loop.
type Config struct {
	MaxIters       int // decision steps before extraction is forced
	TraceFrames    int // error chain levels / stack frames kept in error observations
	MaxTruncations int // attempts per model call when the prompt overflows
	ExtractRetries int // attempts to get a decodable final answer
	MaxSteps       int // optional bound on retained steps, 0 = unbounded

	// ContextWindow is the model input capacity in tokens. When set, prompts
	// are measured before sending and oversized ones are treated like a
	// provider context-length error.
	ContextWindow  int
	TokenizerModel string
	CountTokens    func(text string) int
}

func (c Config) withDefaults() Config {
	if c.MaxIters <= 0 {
		c.MaxIters = DefaultMaxIters
	}
	if c.TraceFrames <= 0 {
		c.TraceFrames = DefaultTraceFrames
	}
	if c.MaxTruncations <= 0 {
		c.MaxTruncations = DefaultMaxTruncations
	}
	if c.ExtractRetries <= 0 {
		c.ExtractRetries = DefaultExtractRetries
	}
	if c.CountTokens == nil {
		model := c.TokenizerModel
		c.CountTokens = func(text string) int { return llms.CountTokens(model, text) }
	}
	return c
}

// Field is one named input of a task.
type Field struct {
	Name  string
	Value string
}

// Task is what a single run works on.
type Task struct {
	Instructions string
	Inputs       []Field
}

// StopReason says why the reasoning phase ended.
type StopReason string

const (
	StopFinish         StopReason = "finish"
	StopMaxIters       StopReason = "max_iters"
	StopSelectionError StopReason = "selection_error"
)

// Result is the outcome of a run.
type Result[T any] struct {
	Output     T
	Trajectory *Trajectory
	Iterations int
	StopReason StopReason
}

// ReAct drives a model through reason/act iterations over a closed toolset
// and extracts a structured T from the final trajectory.
type ReAct[T any] struct {
	Model  llms.Model
	Tools  *Toolset
	Config Config
	Logger *slog.Logger
	// OnStep is called after every completed step.
	OnStep func(step Step, traj *Trajectory)

	outputSchema string
}

// New builds a loop whose final answer decodes into T.
func New[T any](model llms.Model, tools *Toolset, cfg Config) (*ReAct[T], error) {
	if model == nil {
		return nil, errors.New("agent: model is required")
	}
	if tools == nil {
		tools = &Toolset{byName: map[string]Tool{}}
	}
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to derive output schema: %w", err)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output schema: %w", err)
	}
	return &ReAct[T]{
		Model:        model,
		Tools:        tools,
		Config:       cfg.withDefaults(),
		Logger:       slog.Default(),
		outputSchema: string(raw),
	}, nil
}

// runState is the per-run execution context. It lives for one Run call.
type runState struct {
	cfg    Config
	model  llms.Model
	logger *slog.Logger
	task   Task
	traj   *Trajectory
}

// Run executes the loop and the final extraction.
func (r *ReAct[T]) Run(ctx context.Context, task Task) (*Result[T], error) {
	cfg := r.Config.withDefaults()
	st := &runState{
		cfg:    cfg,
		model:  r.Model,
		logger: r.Logger,
		task:   task,
		traj:   NewTrajectory(cfg.MaxSteps),
	}
	if st.logger == nil {
		st.logger = slog.Default()
	}

	stop := StopMaxIters
	iterations := 0
	for i := 0; i < cfg.MaxIters; i++ {
		iterations++
		content, err := st.generate(ctx, "decide", func() []llms.MessageContent {
			return r.decidePrompt(st)
		})
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		decision, err := parseDecision(content)
		if err == nil {
			err = r.Tools.Validate(decision.Calls)
		}
		if err != nil {
			st.logger.Warn("Ending the trajectory: agent failed to select a valid tool", "iteration", i, "error", err)
			stop = StopSelectionError
			break
		}

		st.logger.Info("Agent step", "iteration", i, "thought", decision.Thought, "tools", sortedNames(decision.Calls))
		observations, err := r.act(ctx, st, decision.Calls)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		step := st.traj.Append(decision.Thought, decision.Calls, observations)
		if r.OnStep != nil {
			r.OnStep(step, st.traj)
		}

		if decision.Finishes() {
			stop = StopFinish
			break
		}
	}

	st.logger.Info("Reasoning finished, extracting answer", "reason", stop, "iterations", iterations, "steps", st.traj.Len())
	out, err := r.extract(ctx, st)
	if err != nil {
		return nil, err
	}
	return &Result[T]{
		Output:     out,
		Trajectory: st.traj,
		Iterations: iterations,
		StopReason: stop,
	}, nil
}

// act runs the calls of one step concurrently and returns their observations
// in call order. Only fatal tool errors are returned.
func (r *ReAct[T]) act(ctx context.Context, st *runState, calls []ToolCall) ([]string, error) {
	observations := make([]string, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		if call.Name == FinishTool {
			observations[i] = "Completed."
			continue
		}
		tool, err := r.Tools.Lookup(call.Name)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			res := invoke(ctx, tool, call.Args, st.cfg.TraceFrames)
			switch res.Outcome {
			case OutcomeFatal:
				return res.Err
			case OutcomeRecoverable:
				st.logger.Warn("Tool call failed", "tool", call.Name, "error", res.Err)
			}
			observations[i] = res.Observation
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return observations, nil
}

// Outcome classifies a tool call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeRecoverable: the failure is reported to the model as an observation.
	OutcomeRecoverable
	// OutcomeFatal: the failure aborts the run.
	OutcomeFatal
)

// CallResult is the classified result of one tool call.
type CallResult struct {
	Observation string
	Outcome     Outcome
	Err         error
}

// invoke calls a tool, converting errors and panics into observations.
// Errors wrapped with Fatal are reported as OutcomeFatal.
func invoke(ctx context.Context, tool Tool, args json.RawMessage, frames int) (res CallResult) {
	defer func() {
		if p := recover(); p != nil {
			res = CallResult{
				Observation: panicObservation(tool.Name(), p, frames),
				Outcome:     OutcomeRecoverable,
				Err:         fmt.Errorf("tool %s panicked: %v", tool.Name(), p),
			}
		}
	}()
	out, err := tool.Call(ctx, args)
	switch {
	case err == nil:
		return CallResult{Observation: out, Outcome: OutcomeOK}
	case IsFatal(err):
		return CallResult{Outcome: OutcomeFatal, Err: fmt.Errorf("tool %s: %w", tool.Name(), err)}
	default:
		return CallResult{Observation: toolErrorObservation(tool.Name(), err, frames), Outcome: OutcomeRecoverable, Err: err}
	}
}

// extract asks the model for the final structured answer.
func (r *ReAct[T]) extract(ctx context.Context, st *runState) (T, error) {
	var out T
	var lastErr error
	for attempt := 0; attempt < st.cfg.ExtractRetries; attempt++ {
		if attempt > 0 {
			st.logger.Warn("Retrying extraction", "attempt", attempt+1, "last_error", lastErr)
		}
		content, err := st.generate(ctx, "extract", func() []llms.MessageContent {
			return r.extractPrompt(st)
		})
		if err != nil {
			if errors.Is(err, ErrContextWindowExceeded) {
				return out, fmt.Errorf("extraction: %w", err)
			}
			lastErr = err
			continue
		}
		var candidate T
		if err := decodeJSON(content, &candidate); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return candidate, nil
	}
	return out, fmt.Errorf("extraction failed after %d attempts: %w", st.cfg.ExtractRetries, lastErr)
}

// generate calls the model, truncating the trajectory and retrying when the
// prompt does not fit. Any other error is returned unchanged.
func (st *runState) generate(ctx context.Context, phase string, build func() []llms.MessageContent) (string, error) {
	for attempt := 0; attempt < st.cfg.MaxTruncations; attempt++ {
		content, err := st.complete(ctx, build())
		if err == nil {
			return content, nil
		}
		if !IsContextWindowError(err) {
			return "", err
		}
		st.logger.Warn("Trajectory exceeded the context window, truncating",
			"phase", phase, "attempt", attempt+1, "steps", st.traj.Len())
		if terr := st.traj.Truncate(); terr != nil {
			return "", fmt.Errorf("%w: %w", ErrContextWindowExceeded, terr)
		}
	}
	return "", fmt.Errorf("%w: still too large after %d attempts", ErrContextWindowExceeded, st.cfg.MaxTruncations)
}

func (st *runState) complete(ctx context.Context, msgs []llms.MessageContent) (string, error) {
	if st.cfg.ContextWindow > 0 {
		if n := st.cfg.CountTokens(messageText(msgs)); n > st.cfg.ContextWindow {
			return "", fmt.Errorf("%w: prompt has %d tokens, window is %d", ErrContextWindowExceeded, n, st.cfg.ContextWindow)
		}
	}
	resp, err := st.model.GenerateContent(ctx, msgs, llms.WithJSONMode())
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func messageText(msgs []llms.MessageContent) string {
	var b strings.Builder
	for _, m := range msgs {
		for _, p := range m.Parts {
			if t, ok := p.(llms.TextContent); ok {
				b.WriteString(t.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
