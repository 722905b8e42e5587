// Package normalizer runs the Normalizer (C5) as a standing background
// loop, polling unprocessed RawJobs and turning each into a NormalizedJob
// via a normalize.Backend, per spec.md §4.5's "separate asynchronous loop"
// requirement. It follows the same ticker idiom as internal/scheduler.
package normalizer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/logbuf"
	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/normalize"
	"github.com/learnbot/autoscraper/internal/store"
)

const defaultBatchSize = 50

// Runner polls Store for unprocessed RawJobs at TickInterval, normalizes
// each via Backend, and persists the result.
type Runner struct {
	Store        store.Store
	Backend      normalize.Backend
	TickInterval time.Duration
	BatchSize    int
	Logs         *logbuf.Ring
}

// New builds a Runner; tickInterval defaults to one second.
func New(s store.Store, backend normalize.Backend, tickInterval time.Duration) *Runner {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Runner{
		Store:        s,
		Backend:      backend,
		TickInterval: tickInterval,
		BatchSize:    defaultBatchSize,
	}
}

// Run blocks, ticking until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick normalizes up to BatchSize unprocessed raws, clamping IsPublished
// against each raw's board's quality_threshold per normalize.go's own
// "caller clamps" contract.
func (r *Runner) tick(ctx context.Context) {
	raws, err := r.Store.ListUnprocessedRawJobs(ctx, r.BatchSize)
	if err != nil || len(raws) == 0 {
		return
	}

	boards := make(map[uuid.UUID]model.JobBoard, 1)
	for _, raw := range raws {
		board, ok := boards[raw.JobBoardID]
		if !ok {
			b, err := r.Store.GetJobBoard(ctx, raw.JobBoardID)
			if err != nil {
				continue // board gone or unreachable; retry next tick
			}
			board = *b
			boards[raw.JobBoardID] = board
		}

		n := r.Backend.Normalize(raw)
		n.IsPublished = n.QualityScore >= board.QualityThreshold

		if err := r.Store.CreateNormalizedJob(ctx, &n); err != nil {
			if r.Logs != nil {
				r.Logs.Errorf("normalizer: persist normalized job for raw %s: %v", raw.ID, err)
			}
			continue
		}
		if err := r.Store.MarkRawJobProcessed(ctx, raw.ID); err != nil && r.Logs != nil {
			r.Logs.Errorf("normalizer: mark raw %s processed: %v", raw.ID, err)
		}
	}
}
