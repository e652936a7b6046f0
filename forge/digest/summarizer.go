// Package digest wraps the external digest-generation model with the
// deterministic selection and fallback policy: model output is parsed and
// schema-checked, and any failure degrades to a locally derived digest so
// the agent loop never blocks on summarization.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/promptforge/promptforge/forge/convstate"
	"github.com/promptforge/promptforge/forge/prompting"
)

// Model generates a digest from a prompt. Implementations call out to an
// LLM provider; timeouts and retries belong to them, not here.
type Model interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = `You are an iteration summarizer. Produce a structured summary of the iteration data.

Hard rules:
1) Use only the provided data, never speculate
2) Output JSON only
3) The JSON must contain exactly the fields: summary, facts, decisions, open_questions, action_items
4) summary must be a non-empty string`

const digestSchema = `{
	"type": "object",
	"required": ["summary"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"facts": {"type": "array", "items": {"type": "string"}},
		"decisions": {"type": "array", "items": {"type": "string"}},
		"open_questions": {"type": "array", "items": {"type": "string"}},
		"action_items": {"type": "array", "items": {"type": "string"}}
	}
}`

const (
	defaultMaxToolChars    = 2000
	defaultMaxPayloadChars = 2000
	fallbackSummaryChars   = 240
)

// Summarizer produces an IterationDigest for a completed iteration. It
// never returns an error: when the model is absent, fails, or returns
// output that does not validate, the deterministic fallback digest is used.
type Summarizer struct {
	model        Model
	logger       zerolog.Logger
	schema       *gojsonschema.Schema
	cache        *resultCache
	maxToolChars int
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithMaxToolChars caps the tool output text included in the model prompt.
func WithMaxToolChars(n int) Option {
	return func(s *Summarizer) { s.maxToolChars = n }
}

// WithCacheCapacity sizes the digest result cache. Zero disables caching.
func WithCacheCapacity(n int) Option {
	return func(s *Summarizer) {
		if n <= 0 {
			s.cache = nil
			return
		}
		s.cache = newResultCache(n)
	}
}

// NewSummarizer creates a summarizer. A nil model means every call takes
// the fallback path.
func NewSummarizer(model Model, logger zerolog.Logger, opts ...Option) *Summarizer {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(digestSchema))
	if err != nil {
		// The schema is a compile-time constant; failing here is a bug.
		panic(fmt.Sprintf("digest: invalid schema: %v", err))
	}
	s := &Summarizer{
		model:        model,
		logger:       logger,
		schema:       schema,
		cache:        newResultCache(128),
		maxToolChars: defaultMaxToolChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize produces a digest for one iteration record. The query gives the
// model the run's framing; it may be nil.
func (s *Summarizer) Summarize(ctx context.Context, rec *convstate.IterationRecord, query any) convstate.IterationDigest {
	prompt := s.buildPrompt(rec, query)

	if s.cache != nil {
		if digest, ok := s.cache.get(prompt); ok {
			return digest
		}
	}

	if digest, ok := s.viaModel(ctx, prompt); ok {
		if s.cache != nil {
			s.cache.put(prompt, digest)
		}
		return digest
	}
	return s.fallbackDigest(rec)
}

func (s *Summarizer) viaModel(ctx context.Context, prompt string) (convstate.IterationDigest, bool) {
	if s.model == nil {
		return convstate.IterationDigest{}, false
	}
	output, err := s.model.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("digest model call failed, using fallback")
		return convstate.IterationDigest{}, false
	}
	digest, ok := s.parseDigest(output)
	if !ok {
		s.logger.Warn().Msg("digest output did not validate, using fallback")
		return convstate.IterationDigest{}, false
	}
	return digest, true
}

// parseDigest extracts and validates a digest from model output: a direct
// JSON parse first, then a brace-extraction salvage for output wrapped in
// prose or code fences.
func (s *Summarizer) parseDigest(output string) (convstate.IterationDigest, bool) {
	text := strings.TrimSpace(output)
	if text == "" {
		return convstate.IterationDigest{}, false
	}
	if digest, ok := s.validateDigestJSON([]byte(text)); ok {
		return digest, true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return convstate.IterationDigest{}, false
	}
	return s.validateDigestJSON([]byte(text[start : end+1]))
}

func (s *Summarizer) validateDigestJSON(data []byte) (convstate.IterationDigest, bool) {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil || !result.Valid() {
		return convstate.IterationDigest{}, false
	}
	var digest convstate.IterationDigest
	if err := json.Unmarshal(data, &digest); err != nil {
		return convstate.IterationDigest{}, false
	}
	if err := digest.Validate(); err != nil {
		return convstate.IterationDigest{}, false
	}
	return digest, true
}

// fallbackDigest derives a digest from the record alone.
func (s *Summarizer) fallbackDigest(rec *convstate.IterationRecord) convstate.IterationDigest {
	summary := "Iteration completed; output recorded."
	switch {
	case !rec.IsComplete():
		summary = "Iteration failed; output recorded."
	case len(rec.Tools) > 0:
		summary = "Iteration completed with tool calls; results recorded."
	}
	if rec.Observation != "" {
		summary = truncateText(rec.Observation, fallbackSummaryChars)
	}
	if summary == "" {
		summary = "Iteration completed; output recorded."
	}
	return convstate.IterationDigest{Summary: summary}
}

// buildPrompt lays out the iteration data for the model, with tool and
// payload text truncated to keep the call bounded.
func (s *Summarizer) buildPrompt(rec *convstate.IterationRecord, query any) string {
	var toolOutputs []string
	for _, tool := range rec.Tools {
		if tool.Output == "" {
			continue
		}
		toolOutputs = append(toolOutputs, tool.Output)
	}
	toolsText := truncateText(strings.Join(toolOutputs, "\n"), s.maxToolChars)

	var payloadTexts []string
	for _, payload := range rec.Payloads {
		payloadTexts = append(payloadTexts, prompting.SerializePayload(payload))
	}
	payloadText := truncateText(strings.Join(payloadTexts, "\n"), defaultMaxPayloadChars)

	queryText := ""
	if query != nil {
		queryText = prompting.SerializePayload(query)
	}

	return strings.TrimSpace(strings.Join([]string{
		"[ITERATION]",
		fmt.Sprintf("index: %d", rec.Index),
		fmt.Sprintf("status: %s", rec.Status),
		"",
		"[QUERY]",
		queryText,
		"",
		"[OBSERVATION]",
		rec.Observation,
		"",
		"[TOOL_OUTPUTS]",
		toolsText,
		"",
		"[PAYLOADS]",
		payloadText,
	}, "\n"))
}

const truncationMark = "\n...<truncated>...\n"

// truncateText bounds text to maxChars, keeping the head and tail around a
// truncation mark.
func truncateText(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	markLen := len(truncationMark)
	head := maxChars / 2
	tail := maxChars - head - markLen
	if tail < 0 {
		return string(runes[:maxChars])
	}
	return string(runes[:head]) + truncationMark + string(runes[len(runes)-tail:])
}
