package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"leadpilot/internal/lead"
	"leadpilot/internal/logging"
)

// BatchResult pairs one lead with its run outcome.
type BatchResult struct {
	Lead  lead.Context
	State *RunState
	Err   error
}

// RunBatch runs every lead through the workflow, at most MaxConcurrentRuns
// at a time. Results keep the input order. A cancelled context stops new
// runs from starting; runs already in flight finish and are recorded.
func (e *Engine) RunBatch(ctx context.Context, leads []lead.Context) []BatchResult {
	results := make([]BatchResult, len(leads))
	sem := semaphore.NewWeighted(e.maxConcurrent)

	var wg sync.WaitGroup
	for i, lc := range leads {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = BatchResult{Lead: lc, Err: err}
			continue
		}

		wg.Add(1)
		go func(i int, lc lead.Context) {
			defer wg.Done()
			defer sem.Release(1)

			rs, err := e.Run(ctx, lc)
			results[i] = BatchResult{Lead: lc, State: rs, Err: err}
		}(i, lc)
	}
	wg.Wait()

	var approved, escalated, failed int
	for _, r := range results {
		if r.State == nil {
			failed++
			continue
		}
		switch r.State.Status {
		case StatusApproved:
			approved++
		case StatusEscalated:
			escalated++
		default:
			failed++
		}
	}
	logging.Engine("Batch finished leads=%d approved=%d escalated=%d failed=%d",
		len(leads), approved, escalated, failed)
	return results
}
