package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Generator runs a single pipeline. *Controller implements it.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Run, error)
}

// BatchResult pairs a request with its outcome.
type BatchResult struct {
	Index int
	Run   *Run
	Err   error
}

// BatchSummary tallies a finished batch.
type BatchSummary struct {
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// RunBatch executes independent runs with at most limit in flight. Each run
// gets its own session hash; a failed run never cancels its siblings. Results
// are returned in request order.
func RunBatch(ctx context.Context, gen Generator, requests []Request, limit int) []BatchResult {
	results := make([]BatchResult, len(requests))
	if len(requests) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range requests {
		g.Go(func() error {
			run, err := gen.Generate(ctx, req)
			results[i] = BatchResult{Index: i, Run: run, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Summarize counts successes and failures.
func Summarize(results []BatchResult, elapsed time.Duration) BatchSummary {
	summary := BatchSummary{Duration: elapsed}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
	}
	return summary
}
