package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-leads/pkg/agent"
	"github.com/mikeboe/deep-leads/pkg/leads"
	"github.com/mikeboe/deep-leads/pkg/research/tools"
	"github.com/mikeboe/deep-leads/pkg/vectorstore"
)

const DeployResearcherTool = "deploy_researcher"

type ResearchEngine struct {
	Config       Config
	Researcher   llms.Model
	Orchestrator llms.Model
	Web          *tools.Web
	// Index stores found leads for similarity search. Optional.
	Index  *vectorstore.LeadIndex
	Logger *slog.Logger
	// OnStateUpdate is called after every agent step, including the steps of
	// delegated researchers. Calls are serialized.
	OnStateUpdate func(state ResearchState)

	mu sync.Mutex
}

// NewEngine builds an engine. A nil orchestrator falls back to the researcher model.
func NewEngine(cfg Config, researcher, orchestrator llms.Model, web *tools.Web) (*ResearchEngine, error) {
	if researcher == nil {
		return nil, errors.New("research: researcher model is required")
	}
	if web == nil {
		return nil, errors.New("research: web tools are required")
	}
	if orchestrator == nil {
		orchestrator = researcher
	}
	if cfg.SearchResults > 0 && web.SearchResults == 0 {
		web.SearchResults = cfg.SearchResults
	}
	return &ResearchEngine{
		Config:       cfg,
		Researcher:   researcher,
		Orchestrator: orchestrator,
		Web:          web,
		Logger:       slog.Default(),
	}, nil
}

func (e *ResearchEngine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run dispatches to RunSingle or RunMulti.
func (e *ResearchEngine) Run(ctx context.Context, params leads.ResearchParams, mode Mode) (*Outcome, error) {
	switch mode {
	case ModeSingle, "":
		return e.RunSingle(ctx, params)
	case ModeMulti:
		return e.RunMulti(ctx, params)
	}
	return nil, fmt.Errorf("unknown research mode %q", mode)
}

// RunSingle runs one agent with the web tools.
func (e *ResearchEngine) RunSingle(ctx context.Context, params leads.ResearchParams) (*Outcome, error) {
	if err := leads.Validate(params); err != nil {
		return nil, err
	}
	query := params.Query()
	logger := e.logger().With("mode", ModeSingle)
	logger.Info("Starting lead research", "who", params.Who, "what", params.What, "where", params.Where, "model", e.Config.ResearcherModel)

	toolset, err := e.toolset()
	if err != nil {
		return nil, err
	}
	loop, err := agent.New[leads.LeadResults](e.Researcher, toolset, e.Config.agentConfig())
	if err != nil {
		return nil, err
	}
	loop.Logger = logger.With("role", RoleLeadResearcher)
	loop.OnStep = e.stepHook(query, ModeSingle, RoleLeadResearcher, "", loop.Config.MaxIters)

	res, err := loop.Run(ctx, agent.Task{
		Instructions: singleAgentPrompt,
		Inputs:       []agent.Field{{Name: "Query", Value: query}},
	})
	if err != nil {
		return nil, fmt.Errorf("lead research failed: %w", err)
	}

	logger.Info("Lead research finished", "leads", len(res.Output.Leads), "stop_reason", res.StopReason, "iterations", res.Iterations)
	return &Outcome{
		Query:      query,
		Mode:       ModeSingle,
		Leads:      res.Output,
		Trajectory: res.Trajectory,
		StopReason: res.StopReason,
		Iterations: res.Iterations,
	}, nil
}

type DeployArgs struct {
	Query string `json:"query" jsonschema:"a self-contained research task for the researcher"`
}

// RunMulti runs an orchestrator that can delegate tasks to researcher agents
// through deploy_researcher.
func (e *ResearchEngine) RunMulti(ctx context.Context, params leads.ResearchParams) (*Outcome, error) {
	if err := leads.Validate(params); err != nil {
		return nil, err
	}
	query := params.Query()
	logger := e.logger().With("mode", ModeMulti)
	logger.Info("Starting lead research", "who", params.Who, "what", params.What, "where", params.Where,
		"orchestrator", e.Config.OrchestratorModel, "researcher", e.Config.ResearcherModel)

	var (
		delegatedMu sync.Mutex
		delegated   []leads.ResearcherResults
	)
	deploy, err := agent.NewTool(DeployResearcherTool,
		"Deploy a researcher agent on a specific research task. Returns the researcher's report with the leads it found.",
		func(ctx context.Context, in DeployArgs) (string, error) {
			report, err := e.runResearcher(ctx, query, in.Query, logger)
			if err != nil {
				return "", err
			}
			delegatedMu.Lock()
			delegated = append(delegated, *report)
			delegatedMu.Unlock()
			return report.String(), nil
		})
	if err != nil {
		return nil, err
	}

	toolset, err := e.toolset(deploy)
	if err != nil {
		return nil, err
	}
	loop, err := agent.New[leads.LeadResults](e.Orchestrator, toolset, e.Config.agentConfig())
	if err != nil {
		return nil, err
	}
	loop.Logger = logger.With("role", RoleOrchestrator)
	loop.OnStep = e.stepHook(query, ModeMulti, RoleOrchestrator, "", loop.Config.MaxIters)

	res, err := loop.Run(ctx, agent.Task{
		Instructions: orchestratorPrompt,
		Inputs:       []agent.Field{{Name: "Query", Value: query}},
	})
	if err != nil {
		return nil, fmt.Errorf("lead research failed: %w", err)
	}

	logger.Info("Lead research finished", "leads", len(res.Output.Leads), "researchers", len(delegated),
		"stop_reason", res.StopReason, "iterations", res.Iterations)
	return &Outcome{
		Query:      query,
		Mode:       ModeMulti,
		Leads:      res.Output,
		Trajectory: res.Trajectory,
		StopReason: res.StopReason,
		Iterations: res.Iterations,
		Delegated:  delegated,
	}, nil
}

func (e *ResearchEngine) runResearcher(ctx context.Context, query, task string, parent *slog.Logger) (*leads.ResearcherResults, error) {
	toolset, err := e.toolset()
	if err != nil {
		return nil, err
	}
	loop, err := agent.New[leads.ResearcherResults](e.Researcher, toolset, e.Config.agentConfig())
	if err != nil {
		return nil, err
	}
	logger := parent.With("role", RoleResearcher, "task", shorten(task, 80))
	loop.Logger = logger
	loop.OnStep = e.stepHook(query, ModeMulti, RoleResearcher, task, loop.Config.MaxIters)

	logger.Info("Deploying researcher")
	res, err := loop.Run(ctx, agent.Task{
		Instructions: researcherPrompt,
		Inputs:       []agent.Field{{Name: "Task", Value: task}},
	})
	if err != nil {
		return nil, fmt.Errorf("researcher failed: %w", err)
	}
	if res.Output.Task == "" {
		res.Output.Task = task
	}
	logger.Info("Researcher finished", "leads", len(res.Output.Leads.Leads), "stop_reason", res.StopReason)
	return &res.Output, nil
}

func (e *ResearchEngine) toolset(extra ...agent.Tool) (*agent.Toolset, error) {
	web, err := e.Web.AgentTools()
	if err != nil {
		return nil, fmt.Errorf("failed to build web tools: %w", err)
	}
	return agent.NewToolset(append(web, extra...)...)
}

func (e *ResearchEngine) stepHook(query string, mode Mode, role Role, task string, maxIters int) func(agent.Step, *agent.Trajectory) {
	return func(step agent.Step, traj *agent.Trajectory) {
		if e.OnStateUpdate == nil {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		e.OnStateUpdate(ResearchState{
			Query:      query,
			Mode:       mode,
			Role:       role,
			Task:       task,
			Iteration:  step.Index + 1,
			MaxIters:   maxIters,
			Step:       step,
			Trajectory: traj,
		})
	}
}

// IndexOutcome embeds the leads of out into the lead index. It is a no-op
// without an index or leads.
func (e *ResearchEngine) IndexOutcome(ctx context.Context, out *Outcome, jobID string) error {
	if e.Index == nil || out == nil || len(out.Leads.Leads) == 0 {
		return nil
	}
	if err := e.Index.Index(ctx, out.Query, jobID, out.Leads.Leads); err != nil {
		return fmt.Errorf("failed to index leads: %w", err)
	}
	e.logger().Info("Indexed leads", "count", len(out.Leads.Leads), "job_id", jobID)
	return nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
