package agent

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const decideFormat = `Respond with a single JSON object and nothing else:
{"next_thought": "<your reasoning about the current situation>", "next_tool_calls": [{"name": "<tool name>", "args": {<arguments matching the tool schema>}}]}

You may list several calls when they are independent of each other; they run concurrently.
Valid tool names: %s.
When you have gathered enough information, call %q with empty args.`

func (r *ReAct[T]) decidePrompt(st *runState) []llms.MessageContent {
	var sys strings.Builder
	sys.WriteString(st.task.Instructions)
	sys.WriteString("\n\nYou work in steps. In each step you think about what to do next and pick one or more tools. ")
	sys.WriteString("The result of every call is added to your trajectory as an observation.\n\n")
	sys.WriteString("Available tools:\n")
	sys.WriteString(r.Tools.Describe())
	sys.WriteString("\n")
	fmt.Fprintf(&sys, decideFormat, strings.Join(r.Tools.Names(), ", "), FinishTool)

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, sys.String()),
		llms.TextParts(llms.ChatMessageTypeHuman, renderInputs(st)),
	}
}

func (r *ReAct[T]) extractPrompt(st *runState) []llms.MessageContent {
	var sys strings.Builder
	sys.WriteString(st.task.Instructions)
	sys.WriteString("\n\nThe research phase is over. Use only the trajectory below to produce the final answer.\n")
	sys.WriteString("Respond with a single JSON object matching this JSON schema and nothing else:\n")
	sys.WriteString(r.outputSchema)

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, sys.String()),
		llms.TextParts(llms.ChatMessageTypeHuman, renderInputs(st)),
	}
}

func renderInputs(st *runState) string {
	var b strings.Builder
	for _, f := range st.task.Inputs {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	b.WriteString("\nTrajectory:\n")
	b.WriteString(st.traj.Format())
	return b.String()
}
