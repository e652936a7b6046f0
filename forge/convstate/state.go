// Package convstate holds the mutable conversation record shared across an
// agent run: iterations, events, and the execution context, plus the policy
// and snapshot codecs that operate on it.
package convstate

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// IterationStatus tracks the lifecycle of one loop turn. The only legal
// transition is pending -> complete.
type IterationStatus string

const (
	StatusPending  IterationStatus = "pending"
	StatusComplete IterationStatus = "complete"
)

// Event types recorded for message-history and tool-result rendering.
const (
	EventUserMessage      = "USER_MESSAGE"
	EventAssistantMessage = "ASSISTANT_MESSAGE"
	EventToolResult       = "TOOL_RESULT"
)

// IterationDigest is the compact summary of a completed iteration, normally
// produced by an external summarization step. An empty list is a valid,
// rendered value; it is distinct from an absent digest.
type IterationDigest struct {
	Summary       string   `json:"summary"`
	Facts         []string `json:"facts"`
	Decisions     []string `json:"decisions"`
	OpenQuestions []string `json:"open_questions"`
	ActionItems   []string `json:"action_items"`
}

// Validate checks the digest shape contract.
func (d IterationDigest) Validate() error {
	if d.Summary == "" {
		return ErrEmptyDigestSummary
	}
	return nil
}

// ToolOutput is one tool invocation result captured during an iteration.
type ToolOutput struct {
	ToolName string `json:"tool_name,omitempty"`
	Output   string `json:"output"`
}

// IterationRecord captures the state of a single iteration of the loop.
type IterationRecord struct {
	Index       int              `json:"index"`
	Observation string           `json:"observation,omitempty"`
	Tools       []ToolOutput     `json:"tools"`
	Payloads    []any            `json:"payloads"`
	Status      IterationStatus  `json:"status"`
	Digest      *IterationDigest `json:"digest,omitempty"`
	Summarized  bool             `json:"summarized"`
}

func (r *IterationRecord) MarkComplete() { r.Status = StatusComplete }

func (r *IterationRecord) IsComplete() bool { return r.Status == StatusComplete }

func (r *IterationRecord) MarkSummarized() { r.Summarized = true }

// SetDigest installs (or replaces) the digest and marks the record summarized.
func (r *IterationRecord) SetDigest(d IterationDigest) {
	r.Digest = &d
	r.Summarized = true
}

// AddPayload appends an arbitrary structured value recorded during the turn.
func (r *IterationRecord) AddPayload(value any) {
	r.Payloads = append(r.Payloads, value)
}

// Event is a timestamped conversational record: a user message, an assistant
// message, or a tool result. Meta carries free-form key/values such as
// tool_name and call_id.
type Event struct {
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ExecutionContext carries the per-run execution configuration.
type ExecutionContext struct {
	ActiveSkillID          string   `json:"active_skill_id,omitempty"`
	AllowedTools           []string `json:"allowed_tools,omitempty"`
	ModelOverride          string   `json:"model_override,omitempty"`
	DisableModelInvocation bool     `json:"disable_model_invocation"`
}

// SkillEntry describes one available skill for index rendering.
type SkillEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ConversationState is the root aggregate for one agent run. The iteration
// list is append-only with 1-based indices; the last record, if present, is
// always the current iteration. Mutating operations are mutex-guarded so
// concurrent steps within one iteration may append safely; callers must not
// begin a new iteration while steps from the previous one are in flight.
type ConversationState struct {
	mu sync.Mutex

	Iterations []*IterationRecord `json:"-"`
	Events     []Event            `json:"events"`

	Query          any    `json:"query,omitempty"`
	FormattedQuery string `json:"formatted_query,omitempty"`
	Summary        string `json:"summary,omitempty"`
	FinalReport    string `json:"final_report,omitempty"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	Complete  bool       `json:"complete"`

	MaxTimeMinutes float64          `json:"max_time_minutes,omitempty"`
	Execution      ExecutionContext `json:"execution"`

	AvailableAgents map[string]string `json:"available_agents,omitempty"`
	AvailableSkills []SkillEntry      `json:"available_skills,omitempty"`

	ActiveSkillMarkdown string `json:"active_skill_markdown,omitempty"`
	ActiveSkillText     string `json:"active_skill_text,omitempty"`
	SkillsIndexText     string `json:"skills_index_text,omitempty"`
}

// NewConversationState creates an empty conversation state.
func NewConversationState() *ConversationState {
	return &ConversationState{
		AvailableAgents: make(map[string]string),
	}
}

// StartTimer records the run start time. Idempotent.
func (s *ConversationState) StartTimer() {
	if s.StartedAt == nil {
		now := time.Now()
		s.StartedAt = &now
	}
}

// BeginIteration appends a new pending record and returns it. The first
// iteration also starts the run timer.
func (s *ConversationState) BeginIteration() *IterationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginIterationLocked()
}

func (s *ConversationState) beginIterationLocked() *IterationRecord {
	s.StartTimer()
	rec := &IterationRecord{
		Index:  len(s.Iterations) + 1,
		Status: StatusPending,
	}
	s.Iterations = append(s.Iterations, rec)
	return rec
}

// CurrentIteration returns the last iteration record. It is a precondition
// violation to call this before BeginIteration.
func (s *ConversationState) CurrentIteration() (*IterationRecord, error) {
	if len(s.Iterations) == 0 {
		return nil, ErrNoIteration
	}
	return s.Iterations[len(s.Iterations)-1], nil
}

// MarkIterationComplete flips the current iteration to complete.
func (s *ConversationState) MarkIterationComplete() error {
	rec, err := s.CurrentIteration()
	if err != nil {
		return err
	}
	rec.MarkComplete()
	return nil
}

// MarkRunComplete marks the whole run and the current iteration complete.
func (s *ConversationState) MarkRunComplete() error {
	if err := s.MarkIterationComplete(); err != nil {
		return err
	}
	s.Complete = true
	return nil
}

// RecordPayload appends a structured value to the current iteration,
// beginning one first if none exists. The check and append happen under one
// lock so concurrent calls on a fresh state open a single iteration.
func (s *ConversationState) RecordPayload(value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Iterations) == 0 {
		s.beginIterationLocked()
	}
	s.Iterations[len(s.Iterations)-1].AddPayload(value)
}

// RecordEvent appends an Event. Recording is best-effort observability: a
// content value that cannot be stringified is dropped silently.
func (s *ConversationState) RecordEvent(eventType string, content any, meta map[string]any) {
	text, ok := stringifyValue(content)
	if !ok {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{
		Type:      eventType,
		Content:   text,
		Meta:      meta,
		CreatedAt: time.Now(),
	})
}

// UpdateSummary installs a rolling summary produced by an external summarizer
// and marks every existing iteration as summarized.
func (s *ConversationState) UpdateSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summary = summary
	for _, rec := range s.Iterations {
		rec.MarkSummarized()
	}
}

// SetQuery sets the original query payload.
func (s *ConversationState) SetQuery(query any) { s.Query = query }

// AllFindings returns every tool output across all iterations, in order.
func (s *ConversationState) AllFindings() []string {
	var findings []string
	for _, rec := range s.Iterations {
		for _, tool := range rec.Tools {
			findings = append(findings, tool.Output)
		}
	}
	return findings
}

// FindingsText joins all tool outputs with blank lines.
func (s *ConversationState) FindingsText() string {
	findings := s.AllFindings()
	if len(findings) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(findings, "\n\n"))
}

// ElapsedMinutes reports minutes since the timer started, 0 if it has not.
func (s *ConversationState) ElapsedMinutes() float64 {
	if s.StartedAt == nil {
		return 0
	}
	return time.Since(*s.StartedAt).Minutes()
}

// AvailableAgentsText renders the registered agents as a bullet list.
func (s *ConversationState) AvailableAgentsText() string {
	if len(s.AvailableAgents) == 0 {
		return ""
	}
	names := make([]string, 0, len(s.AvailableAgents))
	for name := range s.AvailableAgents {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "- "+name+": "+s.AvailableAgents[name])
	}
	return strings.Join(lines, "\n")
}

// AvailableSkillsText returns the externally supplied skill index text, or
// synthesizes one from the structured skill entries.
func (s *ConversationState) AvailableSkillsText() string {
	if s.SkillsIndexText != "" {
		return s.SkillsIndexText
	}
	var lines []string
	for _, skill := range s.AvailableSkills {
		if skill.Name == "" && skill.Description == "" {
			continue
		}
		line := "- " + skill.Name
		if skill.Description != "" {
			line += ": " + skill.Description
		}
		if tags := joinNonEmpty(skill.Tags, ", "); tags != "" {
			line += " [tags: " + tags + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func joinNonEmpty(items []string, sep string) string {
	kept := items[:0:0]
	for _, item := range items {
		if item != "" {
			kept = append(kept, item)
		}
	}
	return strings.Join(kept, sep)
}

// ActiveSkill returns the active skill text, falling back to its markdown.
func (s *ConversationState) ActiveSkill() string {
	if s.ActiveSkillText != "" {
		return s.ActiveSkillText
	}
	return s.ActiveSkillMarkdown
}

// Attr resolves a snake_case attribute name to its stringified value, for
// template placeholder substitution. The second return reports whether the
// name is known; unknown names let later resolution steps take over.
func (s *ConversationState) Attr(name string) (string, bool) {
	switch name {
	case "summary", "last_summary":
		return s.Summary, true
	case "query":
		if s.Query == nil {
			return "", false
		}
		text, _ := stringifyValue(s.Query)
		return text, true
	case "formatted_query":
		return s.FormattedQuery, true
	case "final_report":
		return s.FinalReport, true
	case "iteration":
		rec, err := s.CurrentIteration()
		if err != nil {
			return "1", true
		}
		return strconv.Itoa(rec.Index), true
	case "observation":
		rec, err := s.CurrentIteration()
		if err != nil {
			return "", true
		}
		return rec.Observation, true
	case "findings":
		return s.FindingsText(), true
	case "elapsed_minutes":
		return strconv.FormatFloat(s.ElapsedMinutes(), 'f', -1, 64), true
	case "available_agents_text":
		return s.AvailableAgentsText(), true
	case "available_skills_text", "skills_index_text":
		return s.AvailableSkillsText(), true
	case "active_skill_text", "active_skill":
		return s.ActiveSkill(), true
	case "active_skill_markdown":
		return s.ActiveSkillMarkdown, true
	case "complete":
		return strconv.FormatBool(s.Complete), true
	}
	return "", false
}

// stringifyValue renders a value as text: strings pass through, everything
// else is marshalled to JSON. Unmarshallable values report false.
func stringifyValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(data), true
}
