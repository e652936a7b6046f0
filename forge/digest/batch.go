package digest

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/promptforge/promptforge/forge/convstate"
)

// SummarizeAll digests every completed iteration that does not yet carry a
// digest, fanning the model calls out over a bounded worker pool. Digests
// are assigned back to their records after all workers finish, so a state
// snapshot read concurrently never observes a half-written batch. Returns
// the number of digests installed.
func (s *Summarizer) SummarizeAll(ctx context.Context, state *convstate.ConversationState, workers int) int {
	if workers <= 0 {
		workers = 4
	}

	var pending []*convstate.IterationRecord
	for _, rec := range state.Iterations {
		if rec.IsComplete() && rec.Digest == nil {
			pending = append(pending, rec)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	digests := make([]convstate.IterationDigest, len(pending))
	p := pool.New().WithMaxGoroutines(workers)
	for i, rec := range pending {
		p.Go(func() {
			digests[i] = s.Summarize(ctx, rec, state.Query)
		})
	}
	p.Wait()

	for i, rec := range pending {
		rec.SetDigest(digests[i])
	}
	s.logger.Debug().Int("count", len(pending)).Msg("iterations digested")
	return len(pending)
}
