package prompting

import (
	"sort"
	"strings"

	"github.com/promptforge/promptforge/forge/convstate"
)

// PromptRenderer joins trimmed context blocks into the final prompt string.
type PromptRenderer struct{}

// Render orders blocks by descending priority (assembly order breaks ties),
// drops whitespace-only content, and joins with blank lines. A lone
// RUNTIME_TEMPLATE block passes through unmodified.
func (PromptRenderer) Render(blocks []ContextBlock) string {
	if len(blocks) == 0 {
		return ""
	}
	if len(blocks) == 1 && blocks[0].Name == convstate.BlockRuntimeTemplate {
		return blocks[0].Content
	}

	ordered := make([]ContextBlock, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	var contents []string
	for _, block := range ordered {
		if strings.TrimSpace(block.Content) == "" {
			continue
		}
		contents = append(contents, block.Content)
	}
	return strings.TrimSpace(strings.Join(contents, "\n\n"))
}
