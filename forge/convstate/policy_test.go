package convstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePolicy_Nil(t *testing.T) {
	policy := NormalizePolicy(nil)
	assert.Nil(t, policy.TotalBudget)
	assert.True(t, policy.IsEnabled(BlockToolResults))
	assert.Nil(t, policy.MaxCharsFor(BlockToolResults))
}

// TestNormalizePolicy_Idempotent tests that an already-resolved policy is
// returned as-is.
func TestNormalizePolicy_Idempotent(t *testing.T) {
	budget := 500
	original := ContextPolicy{
		TotalBudget: &budget,
		Blocks:      map[string]BlockPolicy{BlockToolResults: {Enabled: false}},
	}

	assert.Equal(t, original, NormalizePolicy(original))
	assert.Equal(t, original, NormalizePolicy(&original))

	var nilPolicy *ContextPolicy
	assert.Equal(t, ContextPolicy{}, NormalizePolicy(nilPolicy))
}

func TestNormalizePolicy_Aliases(t *testing.T) {
	policy := NormalizePolicy(map[string]any{
		"blocks": map[string]any{
			"history":  false,
			"findings": false,
			"messages": false,
			"system":   false,
			"skills":   false,
			"input":    false,
		},
	})

	assert.False(t, policy.IsEnabled(BlockPreviousIterations))
	assert.False(t, policy.IsEnabled(BlockToolResults))
	assert.False(t, policy.IsEnabled(BlockMessageHistory))
	assert.False(t, policy.IsEnabled(BlockRuntimeTemplate))
	assert.False(t, policy.IsEnabled(BlockSkillIndex))
	assert.False(t, policy.IsEnabled(BlockCurrentInput))
	assert.True(t, policy.IsEnabled(BlockOriginalQuery))
}

// TestNormalizePolicy_BlockValues tests the loose per-block value forms.
func TestNormalizePolicy_BlockValues(t *testing.T) {
	policy := NormalizePolicy(map[string]any{
		"blocks": map[string]any{
			"tool_results":        false,
			"previous_iterations": 300,
			"message_history":     map[string]any{"enabled": true, "max_chars": 150},
			"current_input":       map[string]any{"max_tokens": 80},
			"original_query":      "unparseable",
		},
	})

	assert.False(t, policy.IsEnabled(BlockToolResults))

	require.NotNil(t, policy.MaxCharsFor(BlockPreviousIterations))
	assert.Equal(t, 300, *policy.MaxCharsFor(BlockPreviousIterations))

	require.NotNil(t, policy.MaxCharsFor(BlockMessageHistory))
	assert.Equal(t, 150, *policy.MaxCharsFor(BlockMessageHistory))

	// max_tokens is accepted as a max_chars synonym.
	require.NotNil(t, policy.MaxCharsFor(BlockCurrentInput))
	assert.Equal(t, 80, *policy.MaxCharsFor(BlockCurrentInput))

	// A non-numeric bare value degrades to the default policy.
	assert.True(t, policy.IsEnabled(BlockOriginalQuery))
	assert.Nil(t, policy.MaxCharsFor(BlockOriginalQuery))
}

// TestNormalizePolicy_TopLevelBlocks tests the shorthand form without a
// blocks sub-map.
func TestNormalizePolicy_TopLevelBlocks(t *testing.T) {
	policy := NormalizePolicy(map[string]any{
		"total_budget": 1000,
		"tool_results": false,
		"history":      200,
	})

	require.NotNil(t, policy.TotalBudget)
	assert.Equal(t, 1000, *policy.TotalBudget)
	assert.False(t, policy.IsEnabled(BlockToolResults))
	require.NotNil(t, policy.MaxCharsFor(BlockPreviousIterations))
	assert.Equal(t, 200, *policy.MaxCharsFor(BlockPreviousIterations))
}

func TestNormalizePolicy_BudgetCoercion(t *testing.T) {
	policy := NormalizePolicy(map[string]any{"total_budget": "2500"})
	require.NotNil(t, policy.TotalBudget)
	assert.Equal(t, 2500, *policy.TotalBudget)

	// The float form shows up after a JSON round trip.
	policy = NormalizePolicy(map[string]any{"total_budget": float64(900)})
	require.NotNil(t, policy.TotalBudget)
	assert.Equal(t, 900, *policy.TotalBudget)

	policy = NormalizePolicy(map[string]any{"total_budget_tokens": 400})
	require.NotNil(t, policy.TotalBudget)
	assert.Equal(t, 400, *policy.TotalBudget)

	policy = NormalizePolicy(map[string]any{"total_budget": "not a number"})
	assert.Nil(t, policy.TotalBudget)
}

// TestNormalizePolicy_UnknownBlock tests that unrecognized block names pass
// through upper-cased instead of being rejected.
func TestNormalizePolicy_UnknownBlock(t *testing.T) {
	policy := NormalizePolicy(map[string]any{
		"blocks": map[string]any{"scratchpad": false, "  ": true},
	})

	assert.False(t, policy.IsEnabled("SCRATCHPAD"))
	assert.Len(t, policy.Blocks, 1)
}

func TestNormalizePolicy_UnparseableInput(t *testing.T) {
	policy := NormalizePolicy(42)
	assert.Nil(t, policy.TotalBudget)
	assert.Empty(t, policy.Blocks)
}

func TestContextPolicy_BlockPolicyFor(t *testing.T) {
	limit := 100
	policy := ContextPolicy{Blocks: map[string]BlockPolicy{
		BlockToolResults:    {Enabled: false},
		BlockMessageHistory: {Enabled: true, MaxChars: &limit},
	}}

	_, enabled := policy.BlockPolicyFor(BlockToolResults)
	assert.False(t, enabled)

	got, enabled := policy.BlockPolicyFor(BlockMessageHistory)
	assert.True(t, enabled)
	assert.Equal(t, &limit, got.MaxChars)

	got, enabled = policy.BlockPolicyFor(BlockOriginalQuery)
	assert.True(t, enabled)
	assert.Nil(t, got.MaxChars)
}
