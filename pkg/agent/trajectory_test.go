package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrajectoryEntries(t *testing.T) {
	traj := NewTrajectory(0)
	traj.Append("search first", []ToolCall{{Name: "browse_web", Args: json.RawMessage(`{"query":"x"}`)}}, []string{"results"})

	want := []Entry{
		{Key: "thought_0", Value: "search first"},
		{Key: "tool_name_0", Value: "browse_web"},
		{Key: "tool_args_0", Value: `{"query":"x"}`},
		{Key: "observation_0", Value: "results"},
	}
	assert.Equal(t, want, traj.Entries())
	assert.Equal(t, 4, traj.EntryCount())
}

func TestTrajectoryMultiCallStep(t *testing.T) {
	traj := NewTrajectory(0)
	traj.Append("both", []ToolCall{{Name: "a"}, {Name: "b", Args: json.RawMessage(`{"k":1}`)}}, []string{"one", "two"})

	entries := traj.Entries()
	require.Len(t, entries, EntriesPerStep)
	assert.Equal(t, "[a, b]", entries[1].Value)
	assert.Equal(t, `[{}, {"k":1}]`, entries[2].Value)
	assert.Equal(t, "[1] one\n[2] two", entries[3].Value)
}

func TestTrajectoryTruncate(t *testing.T) {
	traj := NewTrajectory(0)
	assert.ErrorIs(t, traj.Truncate(), ErrCannotTruncate)

	for i := 0; i < 3; i++ {
		traj.Append("t", []ToolCall{{Name: "x"}}, []string{"o"})
	}
	require.NoError(t, traj.Truncate())

	assert.Equal(t, 2, traj.Len())
	assert.Equal(t, 8, traj.EntryCount())
	assert.Equal(t, 1, traj.Evicted())
	assert.Equal(t, "thought_1", traj.Entries()[0].Key)

	// New steps keep counting from the original index.
	step := traj.Append("t", []ToolCall{{Name: "x"}}, []string{"o"})
	assert.Equal(t, 3, step.Index)

	require.NoError(t, traj.Truncate())
	require.NoError(t, traj.Truncate())
	require.NoError(t, traj.Truncate())
	assert.ErrorIs(t, traj.Truncate(), ErrCannotTruncate)
	assert.Equal(t, 4, traj.Evicted())
}

func TestTrajectoryMaxSteps(t *testing.T) {
	traj := NewTrajectory(2)
	for i := 0; i < 5; i++ {
		traj.Append("t", []ToolCall{{Name: "x"}}, []string{"o"})
	}

	steps := traj.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, 3, steps[0].Index)
	assert.Equal(t, 4, steps[1].Index)
	assert.Equal(t, 3, traj.Evicted())
}

func TestTrajectoryFormat(t *testing.T) {
	traj := NewTrajectory(0)
	assert.Equal(t, "(no steps taken yet)", traj.Format())

	traj.Append("go", []ToolCall{{Name: "finish"}}, []string{"Completed."})
	assert.Equal(t, "[[ thought_0 ]]\ngo\n\n[[ tool_name_0 ]]\nfinish\n\n[[ tool_args_0 ]]\n{}\n\n[[ observation_0 ]]\nCompleted.", traj.Format())
}

func TestTrajectoryMarshalJSON(t *testing.T) {
	traj := NewTrajectory(0)
	traj.Append("go", []ToolCall{{Name: "finish"}}, []string{"Completed."})

	raw, err := json.Marshal(traj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"steps":[{"index":0,"thought":"go","calls":[{"name":"finish"}],"observations":["Completed."]}],"evicted":0}`, string(raw))
}
