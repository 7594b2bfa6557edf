package research

import (
	"fmt"

	"github.com/mikeboe/deep-leads/pkg/agent"
	"github.com/mikeboe/deep-leads/pkg/leads"
)

// Mode selects the agent pattern of a run.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// ParseMode accepts "single", "multi" and the empty string (single).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeMulti:
		return ModeMulti, nil
	}
	return "", fmt.Errorf("unknown research mode %q", s)
}

// Config holds runtime configuration
type Config struct {
	SearchResults  int
	MaxIters       int
	TraceFrames    int
	ContextWindow  int
	TokenizerModel string
	MaxSteps       int
	// ResearcherModel and OrchestratorModel are only recorded in logs; the
	// models themselves are passed to NewEngine.
	ResearcherModel   string
	OrchestratorModel string
}

func (c Config) agentConfig() agent.Config {
	return agent.Config{
		MaxIters:       c.MaxIters,
		TraceFrames:    c.TraceFrames,
		ContextWindow:  c.ContextWindow,
		TokenizerModel: c.TokenizerModel,
		MaxSteps:       c.MaxSteps,
	}
}

// Role names the agent a state update comes from.
type Role string

const (
	RoleLeadResearcher Role = "lead_researcher"
	RoleOrchestrator   Role = "orchestrator"
	RoleResearcher     Role = "researcher"
)

// ResearchState tracks the progress of a run. It is reported after every
// agent step.
type ResearchState struct {
	Query      string            `json:"query"`
	Mode       Mode              `json:"mode"`
	Role       Role              `json:"role"`
	Task       string            `json:"task,omitempty"`
	Iteration  int               `json:"iteration"`
	MaxIters   int               `json:"max_iters"`
	Step       agent.Step        `json:"step"`
	Trajectory *agent.Trajectory `json:"trajectory"`
}

// Outcome is the result of a research run.
type Outcome struct {
	Query      string                    `json:"query"`
	Mode       Mode                      `json:"mode"`
	Leads      leads.LeadResults         `json:"leads"`
	Trajectory *agent.Trajectory         `json:"trajectory"`
	StopReason agent.StopReason          `json:"stop_reason"`
	Iterations int                       `json:"iterations"`
	Delegated  []leads.ResearcherResults `json:"delegated,omitempty"`
}
