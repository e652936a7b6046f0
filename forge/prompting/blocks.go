// Package prompting assembles a bounded instruction prompt from conversation
// state: sections are built from state and policy, trimmed to a character
// budget, and rendered into one deterministic string.
package prompting

// ContextBlock is a named, prioritized unit of rendered text produced fresh
// for one assembly call. Higher priority renders first. MaxChars is a hard
// per-block cap independent of the global budget; nil means uncapped.
type ContextBlock struct {
	Name     string
	Content  string
	Priority int
	MaxChars *int
}
