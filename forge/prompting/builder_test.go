package prompting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/forge/convstate"
)

// TestInstructionBuilder_Template tests the full pipeline in template mode.
func TestInstructionBuilder_Template(t *testing.T) {
	state := convstate.NewConversationState()
	state.Summary = "sum"

	builder := NewInstructionBuilder()
	profile := Profile{RuntimeTemplate: "Summary: {summary}\nInput: {runtime_input}"}

	prompt := builder.Build(state, profile, "task")

	assert.Equal(t, "Summary: sum\nInput: task", prompt)
}

// TestInstructionBuilder_Fallback tests the section pipeline end to end:
// ordering by priority and the section headers.
func TestInstructionBuilder_Fallback(t *testing.T) {
	state := convstate.NewConversationState()
	state.SetQuery("triage the incident")
	state.RecordEvent(convstate.EventUserMessage, "it is down", nil)
	state.RecordEvent(convstate.EventToolResult, "uptime 0", map[string]any{"tool_name": "ping"})

	rec := state.BeginIteration()
	rec.Observation = "confirmed the outage"
	require.NoError(t, state.MarkIterationComplete())

	builder := NewInstructionBuilder()
	prompt := builder.Build(state, Profile{}, "check the database next")

	wantOrder := []string{
		"[ORIGINAL QUERY]",
		"[MESSAGE HISTORY]",
		"[PREVIOUS ITERATIONS]",
		"[TOOL RESULTS]",
		"[CURRENT INPUT]",
	}
	last := -1
	for _, header := range wantOrder {
		idx := strings.Index(prompt, header)
		require.NotEqual(t, -1, idx, "missing %s", header)
		assert.Greater(t, idx, last, "%s out of order", header)
		last = idx
	}

	assert.Contains(t, prompt, "[ORIGINAL QUERY]\ntriage the incident")
	assert.Contains(t, prompt, "[CURRENT INPUT]\ncheck the database next")
}

// TestInstructionBuilder_PolicyBudgetWins tests that the policy's total
// budget takes precedence over the profile-level fallback budget.
func TestInstructionBuilder_PolicyBudgetWins(t *testing.T) {
	state := convstate.NewConversationState()
	state.SetQuery(strings.Repeat("q", 30))

	profileBudget := 10
	profile := Profile{
		ContextPolicy: map[string]any{"total_budget": 1000},
		ContextBudget: &profileBudget,
	}

	builder := NewInstructionBuilder()
	prompt := builder.Build(state, profile, nil)

	// Under the policy budget nothing is trimmed.
	assert.Contains(t, prompt, strings.Repeat("q", 30))
}

func TestInstructionBuilder_ProfileBudgetFallback(t *testing.T) {
	state := convstate.NewConversationState()

	budget := 30
	profile := Profile{ContextBudget: &budget}

	builder := NewInstructionBuilder()
	prompt := builder.Build(state, profile, strings.Repeat("x", 100))

	// [CURRENT INPUT] header plus a tail slice of the input.
	assert.LessOrEqual(t, len([]rune(prompt)), 30)
	assert.True(t, strings.HasPrefix(prompt, "[CURRENT INPUT]"))
	assert.True(t, strings.HasSuffix(prompt, "xxx"))
}

func TestInstructionBuilder_EmptyState(t *testing.T) {
	builder := NewInstructionBuilder()
	assert.Equal(t, "", builder.Build(convstate.NewConversationState(), Profile{}, nil))
}

// TestInstructionBuilder_CustomAssembler tests the constructor seam used to
// change the history compaction window.
func TestInstructionBuilder_CustomAssembler(t *testing.T) {
	state := convstate.NewConversationState()
	for i := 1; i <= 3; i++ {
		rec := state.BeginIteration()
		rec.Observation = strings.Repeat("x", i)
		rec.SetDigest(convstate.IterationDigest{Summary: "digest " + strings.Repeat("i", i)})
		require.NoError(t, state.MarkIterationComplete())
	}

	assembler := NewContextAssembler()
	assembler.RawKeepLast = 1
	builder := NewInstructionBuilderWith(assembler, nil)

	prompt := builder.Build(state, Profile{}, nil)

	assert.Contains(t, prompt, "summary: digest i")
	assert.Contains(t, prompt, "summary: digest ii")
	assert.NotContains(t, prompt, "summary: digest iii")
	assert.Contains(t, prompt, "<thought>\nxxx\n</thought>")
}
