package convstate

import (
	"strconv"
	"strings"
)

// Canonical block names used for policy lookup, trim priority, and dedup.
const (
	BlockRuntimeTemplate    = "RUNTIME_TEMPLATE"
	BlockOriginalQuery      = "ORIGINAL_QUERY"
	BlockActiveSkill        = "ACTIVE_SKILL"
	BlockSkillIndex         = "SKILL_INDEX"
	BlockMessageHistory     = "MESSAGE_HISTORY"
	BlockPreviousIterations = "PREVIOUS_ITERATIONS"
	BlockToolResults        = "TOOL_RESULTS"
	BlockCurrentInput       = "CURRENT_INPUT"
)

// BlockPolicy controls one logical section: whether it appears at all, and a
// hard per-block character cap independent of the global budget.
type BlockPolicy struct {
	Enabled  bool
	MaxChars *int
}

// DefaultBlockPolicy is enabled with no cap.
func DefaultBlockPolicy() BlockPolicy { return BlockPolicy{Enabled: true} }

// ContextPolicy is the canonical, resolved per-section policy. Immutable
// after resolution.
type ContextPolicy struct {
	TotalBudget *int
	Blocks      map[string]BlockPolicy
}

// IsEnabled reports whether a block may appear. Blocks with no explicit
// policy default to enabled.
func (p ContextPolicy) IsEnabled(name string) bool {
	policy, ok := p.Blocks[name]
	if !ok {
		return true
	}
	return policy.Enabled
}

// MaxCharsFor returns the per-block cap, nil when uncapped.
func (p ContextPolicy) MaxCharsFor(name string) *int {
	policy, ok := p.Blocks[name]
	if !ok {
		return nil
	}
	return policy.MaxChars
}

// BlockPolicyFor returns the effective policy for an enabled block, or false
// when the block is disabled and must be omitted from assembly.
func (p ContextPolicy) BlockPolicyFor(name string) (BlockPolicy, bool) {
	if !p.IsEnabled(name) {
		return BlockPolicy{}, false
	}
	policy, ok := p.Blocks[name]
	if !ok {
		return DefaultBlockPolicy(), true
	}
	return policy, true
}

// blockAliases maps loose configuration keys onto canonical block names.
var blockAliases = map[string]string{
	"runtime_template":     BlockRuntimeTemplate,
	"system_runtime":       BlockRuntimeTemplate,
	"system":               BlockRuntimeTemplate,
	"instructions":         BlockRuntimeTemplate,
	"runtime":              BlockRuntimeTemplate,
	"original_query":       BlockOriginalQuery,
	"query":                BlockOriginalQuery,
	"prompt":               BlockOriginalQuery,
	"active_skill":         BlockActiveSkill,
	"skill":                BlockActiveSkill,
	"skill_index":          BlockSkillIndex,
	"skills":               BlockSkillIndex,
	"previous_iterations":  BlockPreviousIterations,
	"iteration_history":    BlockPreviousIterations,
	"history":              BlockPreviousIterations,
	"current_input":        BlockCurrentInput,
	"input":                BlockCurrentInput,
	"payload":              BlockCurrentInput,
	"runtime_input":        BlockCurrentInput,
	"message_history":      BlockMessageHistory,
	"conversation_history": BlockMessageHistory,
	"messages":             BlockMessageHistory,
	"tool_results":         BlockToolResults,
	"tool_output":          BlockToolResults,
	"tools":                BlockToolResults,
	"findings":             BlockToolResults,
}

// NormalizePolicy resolves a loosely-typed configuration value into a
// canonical ContextPolicy. Resolution is idempotent: a ContextPolicy input is
// returned as-is. Anything that cannot be interpreted degrades to the default
// policy rather than failing.
func NormalizePolicy(raw any) ContextPolicy {
	switch t := raw.(type) {
	case nil:
		return ContextPolicy{}
	case ContextPolicy:
		return t
	case *ContextPolicy:
		if t == nil {
			return ContextPolicy{}
		}
		return *t
	case map[string]any:
		return normalizePolicyMap(t)
	}
	return ContextPolicy{}
}

func normalizePolicyMap(raw map[string]any) ContextPolicy {
	totalBudget := coerceInt(raw["total_budget"])
	if totalBudget == nil {
		totalBudget = coerceInt(raw["total_budget_tokens"])
	}

	blocksData, ok := raw["blocks"].(map[string]any)
	if !ok {
		blocksData = make(map[string]any, len(raw))
		for key, value := range raw {
			switch key {
			case "total_budget", "total_budget_tokens", "blocks":
				continue
			}
			blocksData[key] = value
		}
	}

	blocks := make(map[string]BlockPolicy, len(blocksData))
	for name, value := range blocksData {
		canonical := normalizeBlockName(name)
		if canonical == "" {
			continue
		}
		blocks[canonical] = normalizeBlockPolicy(value)
	}

	return ContextPolicy{TotalBudget: totalBudget, Blocks: blocks}
}

// normalizeBlockName maps a loose key to its canonical name. Unrecognized
// keys are upper-cased and passed through so new sections keep working.
func normalizeBlockName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ""
	}
	if canonical, ok := blockAliases[key]; ok {
		return canonical
	}
	return strings.ToUpper(key)
}

func normalizeBlockPolicy(value any) BlockPolicy {
	switch t := value.(type) {
	case BlockPolicy:
		return t
	case bool:
		return BlockPolicy{Enabled: t}
	case map[string]any:
		enabled := true
		if flag, ok := t["enabled"].(bool); ok {
			enabled = flag
		}
		maxChars := coerceInt(t["max_chars"])
		if maxChars == nil {
			maxChars = coerceInt(t["max_tokens"])
		}
		return BlockPolicy{Enabled: enabled, MaxChars: maxChars}
	}
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return BlockPolicy{Enabled: true, MaxChars: coerceInt(value)}
	}
	return DefaultBlockPolicy()
}

// coerceInt interprets ints, floats, and numeric strings; anything else is
// treated as unset.
func coerceInt(value any) *int {
	switch t := value.(type) {
	case int:
		return &t
	case int32:
		n := int(t)
		return &n
	case int64:
		n := int(t)
		return &n
	case float32:
		n := int(t)
		return &n
	case float64:
		n := int(t)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}
