package prompting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/promptforge/promptforge/forge/convstate"
)

func TestPromptRenderer_Empty(t *testing.T) {
	var renderer PromptRenderer
	assert.Equal(t, "", renderer.Render(nil))
	assert.Equal(t, "", renderer.Render([]ContextBlock{}))
}

// TestPromptRenderer_TemplatePassthrough tests that a lone template block is
// returned byte for byte, whitespace included.
func TestPromptRenderer_TemplatePassthrough(t *testing.T) {
	var renderer PromptRenderer
	block := ContextBlock{
		Name:    convstate.BlockRuntimeTemplate,
		Content: "  leading and trailing kept  \n",
	}
	assert.Equal(t, block.Content, renderer.Render([]ContextBlock{block}))
}

// TestPromptRenderer_PriorityOrder tests descending-priority ordering with
// assembly order breaking ties.
func TestPromptRenderer_PriorityOrder(t *testing.T) {
	var renderer PromptRenderer
	blocks := []ContextBlock{
		{Name: "c", Content: "third", Priority: 10},
		{Name: "a", Content: "first", Priority: 90},
		{Name: "tie-1", Content: "tie one", Priority: 50},
		{Name: "tie-2", Content: "tie two", Priority: 50},
	}

	assert.Equal(t, "first\n\ntie one\n\ntie two\n\nthird", renderer.Render(blocks))
}

func TestPromptRenderer_SkipsWhitespaceOnly(t *testing.T) {
	var renderer PromptRenderer
	blocks := []ContextBlock{
		{Name: "a", Content: "kept", Priority: 90},
		{Name: "b", Content: "   \n\t", Priority: 80},
		{Name: "c", Content: "also kept", Priority: 70},
	}

	assert.Equal(t, "kept\n\nalso kept", renderer.Render(blocks))
}
