package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/model"
)

func TestMemoryClaimPendingJobIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	board := &model.JobBoard{Name: "example-board", Type: model.BoardHTML, BaseURL: "https://example.com"}
	if err := m.CreateJobBoard(ctx, board); err != nil {
		t.Fatalf("create job board: %v", err)
	}

	job := &model.ScrapeJob{JobBoardID: board.ID, Mode: model.ModeManual, Priority: 5}
	if err := m.CreateScrapeJob(ctx, job); err != nil {
		t.Fatalf("create scrape job: %v", err)
	}

	claimed, err := m.ClaimPendingJob(ctx, job.ID, "worker-1")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if claimed.Status != model.JobRunning {
		t.Fatalf("expected status running, got %s", claimed.Status)
	}

	if _, err := m.ClaimPendingJob(ctx, job.ID, "worker-2"); err != ErrConflict {
		t.Fatalf("expected ErrConflict on second claim, got %v", err)
	}
}

func TestMemoryClaimPendingJobNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.ClaimPendingJob(context.Background(), uuid.New(), "worker-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryBulkUpsertRawJobsDedupesByChecksum(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boardID := uuid.New()
	runID := uuid.New()

	raws := []model.RawJob{
		{RunID: runID, JobBoardID: boardID, Title: "Engineer", Checksum: "abc123"},
	}
	if err := m.BulkUpsertRawJobs(ctx, raws); err != nil {
		t.Fatalf("first bulk upsert: %v", err)
	}
	exists, err := m.ChecksumExists(ctx, boardID, "abc123")
	if err != nil || !exists {
		t.Fatalf("expected checksum to exist, err=%v exists=%v", err, exists)
	}

	// Re-inserting the same checksum for the same board should not
	// duplicate the raw_jobs row (mirrors the ON CONFLICT DO NOTHING path).
	if err := m.BulkUpsertRawJobs(ctx, raws); err != nil {
		t.Fatalf("second bulk upsert: %v", err)
	}
	unprocessed, err := m.ListUnprocessedRawJobs(ctx, 10)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(unprocessed) != 1 {
		t.Fatalf("expected exactly one raw job after dedup, got %d", len(unprocessed))
	}
}

func TestMemoryUpdateEngineStateRejectsHeartbeatRegression(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.UpdateEngineState(ctx, func(s *model.EngineState) error {
		s.LastHeartbeat = s.LastHeartbeat.Add(10 * 60 * 1e9) // +10 minutes
		return nil
	})
	if err != nil {
		t.Fatalf("first heartbeat update: %v", err)
	}

	_, err = m.UpdateEngineState(ctx, func(s *model.EngineState) error {
		s.LastHeartbeat = first.LastHeartbeat.Add(-5 * 60 * 1e9) // -5 minutes
		return nil
	})
	if err == nil {
		t.Fatal("expected heartbeat regression to be rejected")
	}
}

func TestMemoryListScrapeJobsOrdersByPriorityThenAge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boardID := uuid.New()

	low := &model.ScrapeJob{JobBoardID: boardID, Mode: model.ModeManual, Priority: 1}
	high := &model.ScrapeJob{JobBoardID: boardID, Mode: model.ModeManual, Priority: 9}
	_ = m.CreateScrapeJob(ctx, low)
	_ = m.CreateScrapeJob(ctx, high)

	jobs, total, err := m.ListScrapeJobs(ctx, ScrapeJobFilter{JobBoardID: uuid.NullUUID{UUID: boardID, Valid: true}}, Page{})
	if err != nil {
		t.Fatalf("list scrape jobs: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 jobs total, got %d", total)
	}
	if jobs[0].ID != high.ID {
		t.Fatalf("expected higher priority job first")
	}
}
