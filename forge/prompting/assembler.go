package prompting

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/promptforge/promptforge/forge/convstate"
)

// Profile is the slice of role configuration the assembler consumes: an
// optional runtime template, the raw (loosely-typed) context policy, and a
// fallback global budget from the role's run policies.
type Profile struct {
	RuntimeTemplate string
	ContextPolicy   any
	ContextBudget   *int
}

var placeholderPattern = regexp.MustCompile(`(?i)\{([a-z_]+)\}`)

// ContextAssembler turns (state, profile, input payload) into an ordered
// list of named, prioritized context blocks.
type ContextAssembler struct {
	// RawKeepLast is forwarded to the history compactor.
	RawKeepLast int
}

// NewContextAssembler returns an assembler with the default compaction
// window.
func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{RawKeepLast: DefaultRawKeepLast}
}

// Assemble produces the context blocks for one call. When the profile
// carries a non-empty runtime template the result is exactly one
// RUNTIME_TEMPLATE block; otherwise the canonical fallback sections are
// produced, each gated by policy and omitted when its source is empty.
func (a *ContextAssembler) Assemble(state *convstate.ConversationState, profile Profile, payload any, payloadStr string) []ContextBlock {
	policy := convstate.NormalizePolicy(profile.ContextPolicy)
	if profile.RuntimeTemplate != "" {
		if block, ok := a.buildTemplateBlock(state, profile, payload, payloadStr, policy); ok {
			return []ContextBlock{block}
		}
		return nil
	}
	return a.buildFallbackBlocks(state, payloadStr, policy)
}

func (a *ContextAssembler) buildTemplateBlock(state *convstate.ConversationState, profile Profile, payload any, payloadStr string, policy convstate.ContextPolicy) (ContextBlock, bool) {
	blockPolicy, enabled := policy.BlockPolicyFor(convstate.BlockRuntimeTemplate)
	if !enabled {
		return ContextBlock{}, false
	}

	template := profile.RuntimeTemplate
	placeholders := make(map[string]bool)
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		placeholders[strings.ToLower(match[1])] = true
	}

	payloadFields := payloadFieldValues(payload)

	values := make(map[string]string, len(placeholders))
	for name := range placeholders {
		values[name] = a.resolvePlaceholder(name, state, payload, payloadStr, payloadFields)
	}

	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.ToLower(token[1 : len(token)-1])
		return values[name]
	})

	return ContextBlock{
		Name:     convstate.BlockRuntimeTemplate,
		Content:  rendered,
		Priority: 100,
		MaxChars: blockPolicy.MaxChars,
	}, true
}

// resolvePlaceholder applies the lookup chain: the serialized input for
// runtime_input, then a state attribute, then a same-named payload field,
// then the serialized input for task/payload/input, else empty. Unresolvable
// placeholders never fail, they render empty.
func (a *ContextAssembler) resolvePlaceholder(name string, state *convstate.ConversationState, payload any, payloadStr string, payloadFields map[string]string) string {
	if name == "runtime_input" && payload != nil {
		return payloadStr
	}
	switch name {
	case "history":
		history := a.renderHistory(state, false)
		if history == "" {
			return "No previous iterations."
		}
		return history
	case "conversation_history":
		return a.renderHistory(state, true)
	}
	if value, ok := state.Attr(name); ok {
		return value
	}
	if value, ok := payloadFields[name]; ok {
		return value
	}
	switch name {
	case "task", "payload", "input":
		return payloadStr
	}
	return ""
}

// payloadFieldValues flattens a structured payload into lowercased
// field-name -> stringified-value pairs. Plain text and unserializable
// payloads contribute nothing.
func payloadFieldValues(payload any) map[string]string {
	switch payload.(type) {
	case nil, string, []byte:
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	values := make(map[string]string, len(fields))
	for name, value := range fields {
		if value == nil {
			values[strings.ToLower(name)] = ""
			continue
		}
		if text, ok := value.(string); ok {
			values[strings.ToLower(name)] = text
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		values[strings.ToLower(name)] = string(encoded)
	}
	return values
}

func (a *ContextAssembler) buildFallbackBlocks(state *convstate.ConversationState, payloadStr string, policy convstate.ContextPolicy) []ContextBlock {
	var blocks []ContextBlock

	appendBlock := func(name, header, content string, priority int) {
		if content == "" {
			return
		}
		blockPolicy, enabled := policy.BlockPolicyFor(name)
		if !enabled {
			return
		}
		blocks = append(blocks, ContextBlock{
			Name:     name,
			Content:  header + "\n" + content,
			Priority: priority,
			MaxChars: blockPolicy.MaxChars,
		})
	}

	if state.Query != nil {
		appendBlock(convstate.BlockOriginalQuery, "[ORIGINAL QUERY]", SerializePayload(state.Query), 100)
	}
	appendBlock(convstate.BlockSkillIndex, "[SKILL INDEX]", state.AvailableSkillsText(), 97)
	appendBlock(convstate.BlockActiveSkill, "[ACTIVE SKILL]", state.ActiveSkill(), 98)
	appendBlock(convstate.BlockMessageHistory, "[MESSAGE HISTORY]", renderMessageHistory(state.Events), 95)
	appendBlock(convstate.BlockPreviousIterations, "[PREVIOUS ITERATIONS]", a.renderHistory(state, false), 90)
	appendBlock(convstate.BlockToolResults, "[TOOL RESULTS]", renderToolResults(state.Events), 85)
	appendBlock(convstate.BlockCurrentInput, "[CURRENT INPUT]", payloadStr, 80)

	return blocks
}

func (a *ContextAssembler) renderHistory(state *convstate.ConversationState, includeCurrent bool) string {
	var current *convstate.IterationRecord
	if len(state.Iterations) > 0 {
		current = state.Iterations[len(state.Iterations)-1]
	}
	return RenderIterationHistory(state.Iterations, HistoryOptions{
		IncludeCurrent: includeCurrent,
		Current:        current,
		RawKeepLast:    a.RawKeepLast,
	})
}

// renderMessageHistory renders user and assistant message events in event
// order as alternating labelled sections.
func renderMessageHistory(events []convstate.Event) string {
	var sections []string
	for _, event := range events {
		var label string
		switch event.Type {
		case convstate.EventUserMessage:
			label = "USER"
		case convstate.EventAssistantMessage:
			label = "ASSISTANT"
		default:
			continue
		}
		if event.Content == "" {
			continue
		}
		sections = append(sections, "["+label+"]\n"+event.Content)
	}
	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// renderToolResults renders tool-result events deduplicated by tool name,
// keeping only the most recent event per tool, ordered by that most recent
// occurrence. A refs block is appended when meta carries sources or
// artifacts.
func renderToolResults(events []convstate.Event) string {
	latest := make(map[string]convstate.Event)
	var order []string
	for _, event := range events {
		if event.Type != convstate.EventToolResult {
			continue
		}
		name := toolNameFromMeta(event.Meta)
		if _, seen := latest[name]; seen {
			order = removeString(order, name)
		}
		order = append(order, name)
		latest[name] = event
	}

	var sections []string
	for _, name := range order {
		event := latest[name]
		if event.Content == "" {
			continue
		}
		sections = append(sections, "[TOOL "+name+"]\n"+event.Content)
		if refs := refsFromMeta(event.Meta); refs != "" {
			sections = append(sections, "<refs>\n"+refs+"\n</refs>")
		}
	}
	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

func toolNameFromMeta(meta map[string]any) string {
	for _, key := range []string{"tool_name", "name"} {
		if value, ok := meta[key].(string); ok && value != "" {
			return value
		}
	}
	return "tool"
}

func refsFromMeta(meta map[string]any) string {
	for _, key := range []string{"sources", "artifacts"} {
		value, ok := meta[key]
		if !ok || value == nil {
			continue
		}
		text := SerializePayload(value)
		if strings.TrimSpace(text) != "" && text != "[]" && text != "{}" {
			return text
		}
	}
	return ""
}

func removeString(items []string, target string) []string {
	for i, item := range items {
		if item == target {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
