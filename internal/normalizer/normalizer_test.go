package normalizer

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/normalize"
	"github.com/learnbot/autoscraper/internal/store"
)

func seedBoard(t *testing.T, s store.Store, threshold float64) model.JobBoard {
	t.Helper()
	board := &model.JobBoard{
		Name:             "acme",
		Type:             model.BoardHTML,
		BaseURL:          "https://acme.example/jobs",
		QualityThreshold: threshold,
		IsActive:         true,
	}
	if err := s.CreateJobBoard(context.Background(), board); err != nil {
		t.Fatalf("seed board: %v", err)
	}
	return *board
}

func TestTickNormalizesUnprocessedRawAndMarksItProcessed(t *testing.T) {
	s := store.NewMemory()
	board := seedBoard(t, s, 0.0)

	raw := model.RawJob{
		ID:         uuid.New(),
		RunID:      uuid.New(),
		JobBoardID: board.ID,
		Title:      "Senior Go Engineer",
		Company:    "Acme Co",
		Location:   "Remote",
		Checksum:   "chk-1",
	}
	if err := s.BulkUpsertRawJobs(context.Background(), []model.RawJob{raw}); err != nil {
		t.Fatalf("seed raw job: %v", err)
	}

	r := New(s, normalize.NewRuleBased(nil), 0)
	r.tick(context.Background())

	unprocessed, err := s.ListUnprocessedRawJobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(unprocessed) != 0 {
		t.Fatalf("expected raw job marked processed, %d still unprocessed", len(unprocessed))
	}
}

func TestTickGatesIsPublishedAgainstBoardQualityThreshold(t *testing.T) {
	s := store.NewMemory()
	board := seedBoard(t, s, 0.99) // unreachable by a bare-bones raw job

	raw := model.RawJob{
		ID:         uuid.New(),
		RunID:      uuid.New(),
		JobBoardID: board.ID,
		Title:      "Engineer",
		Checksum:   "chk-2",
	}
	if err := s.BulkUpsertRawJobs(context.Background(), []model.RawJob{raw}); err != nil {
		t.Fatalf("seed raw job: %v", err)
	}

	r := New(s, normalize.NewRuleBased(nil), 0)
	r.tick(context.Background())

	all, _, err := s.ListNormalizedJobs(context.Background(), store.Page{Limit: 10})
	if err != nil {
		t.Fatalf("list normalized: %v", err)
	}
	var found *model.NormalizedJob
	for i := range all {
		if all[i].RawJobID == raw.ID {
			found = &all[i]
		}
	}
	if found == nil {
		t.Fatalf("expected a normalized job for raw %s, found none among %d", raw.ID, len(all))
	}
	if found.IsPublished {
		t.Fatalf("expected is_published=false below the board's quality_threshold, got true (score=%v)", found.QualityScore)
	}
}

func TestTickSkipsRawJobWhenBoardLookupFails(t *testing.T) {
	s := store.NewMemory()

	raw := model.RawJob{
		ID:         uuid.New(),
		RunID:      uuid.New(),
		JobBoardID: uuid.New(), // no matching board
		Title:      "Orphaned",
		Checksum:   "chk-3",
	}
	if err := s.BulkUpsertRawJobs(context.Background(), []model.RawJob{raw}); err != nil {
		t.Fatalf("seed raw job: %v", err)
	}

	r := New(s, normalize.NewRuleBased(nil), 0)
	r.tick(context.Background())

	unprocessed, err := s.ListUnprocessedRawJobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(unprocessed) != 1 {
		t.Fatalf("expected raw job left unprocessed pending board recovery, got %d unprocessed", len(unprocessed))
	}
}
