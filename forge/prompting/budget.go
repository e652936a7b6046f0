package prompting

import (
	"strings"

	"github.com/promptforge/promptforge/forge/convstate"
)

// BudgetPolicy is the seam for alternative budgeting strategies (token
// based, for instance). The shipped implementation budgets by characters.
type BudgetPolicy interface {
	// Trim fits blocks into maxChars. A nil budget means unlimited: only
	// per-block caps apply.
	Trim(blocks []ContextBlock, maxChars *int) []ContextBlock
}

// trimOrder is the fixed priority order of globally squeezable blocks.
// Identity, system, and skill content is load-bearing and is never cut by
// the global budget; only history, evidence, and current input give way.
var trimOrder = []string{
	convstate.BlockPreviousIterations,
	convstate.BlockMessageHistory,
	convstate.BlockToolResults,
	convstate.BlockCurrentInput,
}

// tailKeepNames lists the blocks that keep their tail (the most recent
// content) when shrunk; all others keep the head. This is a literal
// name-based table: deriving it would change observable truncation.
var tailKeepNames = map[string]bool{
	convstate.BlockPreviousIterations: true,
	convstate.BlockMessageHistory:     true,
	convstate.BlockToolResults:        true,
	convstate.BlockCurrentInput:       true,
}

// CharBudgetPolicy trims context blocks against a character budget.
type CharBudgetPolicy struct{}

// Trim applies per-block caps, then squeezes the trimmable blocks in fixed
// order by exactly the current excess until the total fits. Blocks that end
// up empty or whitespace-only are dropped. When the untrimmable blocks alone
// exceed the budget the result legitimately exceeds it.
func (CharBudgetPolicy) Trim(blocks []ContextBlock, maxChars *int) []ContextBlock {
	if maxChars == nil {
		trimmed := make([]ContextBlock, 0, len(blocks))
		for _, block := range blocks {
			trimmed = append(trimmed, applyBlockLimit(block))
		}
		return dropEmpty(trimmed)
	}
	if *maxChars <= 0 {
		return []ContextBlock{}
	}

	trimmed := make([]ContextBlock, 0, len(blocks))
	total := 0
	for _, block := range blocks {
		capped := applyBlockLimit(block)
		trimmed = append(trimmed, capped)
		total += runeLen(capped.Content)
	}
	if total <= *maxChars {
		return dropEmpty(trimmed)
	}

	for _, name := range trimOrder {
		if total <= *maxChars {
			break
		}
		for i := range trimmed {
			if trimmed[i].Name != name {
				continue
			}
			total, trimmed[i] = trimBlockToFit(trimmed[i], total, *maxChars)
			break
		}
	}

	return dropEmpty(trimmed)
}

// applyBlockLimit enforces the block's own cap, if any.
func applyBlockLimit(block ContextBlock) ContextBlock {
	if block.MaxChars == nil || runeLen(block.Content) <= *block.MaxChars {
		return block
	}
	block.Content = sliceContent(block.Content, *block.MaxChars, tailKeepNames[block.Name])
	return block
}

// trimBlockToFit shrinks one block by the current excess and returns the
// updated running total.
func trimBlockToFit(block ContextBlock, total, maxChars int) (int, ContextBlock) {
	excess := total - maxChars
	if excess <= 0 {
		return total, block
	}

	currentLen := runeLen(block.Content)
	allowed := currentLen - excess
	if allowed <= 0 {
		block.Content = ""
		return total - currentLen, block
	}

	block.Content = sliceContent(block.Content, allowed, tailKeepNames[block.Name])
	return total - currentLen + runeLen(block.Content), block
}

// sliceContent truncates content to limit characters. When the content has a
// header line, the header survives intact if it fits and the head/tail slice
// applies to the body only; otherwise the header itself is cut.
func sliceContent(content string, limit int, keepTail bool) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}

	newline := strings.IndexByte(content, '\n')
	if newline < 0 {
		if keepTail {
			return string(runes[len(runes)-limit:])
		}
		return string(runes[:limit])
	}

	header := []rune(content[:newline])
	body := []rune(content[newline+1:])
	if len(header) >= limit {
		return string(header[:limit])
	}

	remaining := limit - len(header) - 1
	if remaining <= 0 {
		return string(header)
	}

	var bodySlice []rune
	if keepTail {
		bodySlice = body[len(body)-remaining:]
	} else {
		bodySlice = body[:remaining]
	}
	return string(header) + "\n" + string(bodySlice)
}

func dropEmpty(blocks []ContextBlock) []ContextBlock {
	kept := make([]ContextBlock, 0, len(blocks))
	for _, block := range blocks {
		if strings.TrimSpace(block.Content) == "" {
			continue
		}
		kept = append(kept, block)
	}
	return kept
}

func runeLen(s string) int { return len([]rune(s)) }

// Budgeter trims context blocks through a pluggable policy.
type Budgeter struct {
	policy BudgetPolicy
}

// NewBudgeter creates a budgeter; a nil policy selects CharBudgetPolicy.
func NewBudgeter(policy BudgetPolicy) *Budgeter {
	if policy == nil {
		policy = CharBudgetPolicy{}
	}
	return &Budgeter{policy: policy}
}

// Trim delegates to the configured policy.
func (b *Budgeter) Trim(blocks []ContextBlock, maxChars *int) []ContextBlock {
	return b.policy.Trim(blocks, maxChars)
}
