package prompting

import (
	"fmt"
	"strings"

	"github.com/promptforge/promptforge/forge/convstate"
)

// DefaultRawKeepLast is how many recently completed iterations render
// verbatim before older ones fall back to their digests.
const DefaultRawKeepLast = 2

// HistoryOptions controls which iterations appear and how they compact.
type HistoryOptions struct {
	// IncludeCurrent also renders the in-progress current iteration.
	IncludeCurrent bool
	// OnlyUnsummarized skips iterations already covered by a summary.
	OnlyUnsummarized bool
	// Current identifies the in-progress iteration, if any.
	Current *convstate.IterationRecord
	// RawKeepLast is the number of most-recently-completed iterations kept
	// verbatim. Zero keeps none.
	RawKeepLast int
}

// RenderIterationBlock renders one iteration verbatim: the header, then the
// observation, payloads, and tool findings, omitting empty sections.
func RenderIterationBlock(rec *convstate.IterationRecord) string {
	sections := []string{fmt.Sprintf("[ITERATION %d]", rec.Index)}

	if rec.Observation != "" {
		sections = append(sections, "<thought>\n"+rec.Observation+"\n</thought>")
	}

	if len(rec.Payloads) > 0 {
		lines := make([]string, 0, len(rec.Payloads))
		for _, payload := range rec.Payloads {
			lines = append(lines, SerializePayload(payload))
		}
		sections = append(sections, "<payloads>\n"+strings.Join(lines, "\n")+"\n</payloads>")
	}

	if len(rec.Tools) > 0 {
		lines := make([]string, 0, len(rec.Tools))
		for _, tool := range rec.Tools {
			lines = append(lines, tool.Output)
		}
		sections = append(sections, "<findings>\n"+strings.Join(lines, "\n")+"\n</findings>")
	}

	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// RenderIterationDigestBlock renders the compact digest form, falling back
// to the verbatim block when no digest is available.
func RenderIterationDigestBlock(rec *convstate.IterationRecord) string {
	digest := rec.Digest
	if digest == nil {
		return RenderIterationBlock(rec)
	}

	lines := []string{
		fmt.Sprintf("[ITERATION %d]", rec.Index),
		"<digest>",
		"summary: " + digest.Summary,
	}
	lines = append(lines, renderDigestList("facts", digest.Facts)...)
	lines = append(lines, renderDigestList("decisions", digest.Decisions)...)
	lines = append(lines, renderDigestList("open_questions", digest.OpenQuestions)...)
	lines = append(lines, renderDigestList("action_items", digest.ActionItems)...)
	lines = append(lines, "</digest>")
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderDigestList(label string, items []string) []string {
	if len(items) == 0 {
		return []string{label + ": []"}
	}
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, label+":")
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return lines
}

// RenderIterationHistory renders the iteration list oldest first, choosing
// per iteration between the verbatim form and the digest form: the current
// in-progress iteration is always verbatim, the RawKeepLast most recently
// completed iterations stay verbatim, and older completed iterations use
// their digest when one exists.
func RenderIterationHistory(iterations []*convstate.IterationRecord, opts HistoryOptions) string {
	type candidate struct {
		rec       *convstate.IterationRecord
		isCurrent bool
	}

	var candidates []candidate
	for _, rec := range iterations {
		isCurrent := opts.Current != nil && rec == opts.Current
		if !rec.IsComplete() && !(opts.IncludeCurrent && isCurrent) {
			continue
		}
		if opts.OnlyUnsummarized && rec.Summarized {
			continue
		}
		candidates = append(candidates, candidate{rec: rec, isCurrent: isCurrent})
	}

	rawTail := make(map[*convstate.IterationRecord]bool)
	if opts.RawKeepLast > 0 {
		var completed []*convstate.IterationRecord
		for _, c := range candidates {
			if c.rec.IsComplete() {
				completed = append(completed, c.rec)
			}
		}
		start := len(completed) - opts.RawKeepLast
		if start < 0 {
			start = 0
		}
		for _, rec := range completed[start:] {
			rawTail[rec] = true
		}
	}

	var blocks []string
	for _, c := range candidates {
		var block string
		switch {
		case c.isCurrent && !c.rec.IsComplete():
			block = RenderIterationBlock(c.rec)
		case rawTail[c.rec]:
			block = RenderIterationBlock(c.rec)
		default:
			block = RenderIterationDigestBlock(c.rec)
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.TrimSpace(strings.Join(blocks, "\n\n"))
}
