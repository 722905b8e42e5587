package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/store"
)

func TestParseCronRejectsInvalidExpression(t *testing.T) {
	if _, err := ParseCron("not a cron expression"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if _, err := ParseCron("*/5 * * * *"); err != nil {
		t.Fatalf("expected standard 5-field expression to parse: %v", err)
	}
	if _, err := ParseCron("@hourly"); err != nil {
		t.Fatalf("expected @hourly alias to parse: %v", err)
	}
}

func newDueSchedule(t *testing.T, st store.Store, boardActive bool) model.ScheduleConfig {
	t.Helper()
	board := &model.JobBoard{Name: "acme", Type: model.BoardRSS, BaseURL: "https://acme.example.com", IsActive: boardActive}
	if err := st.CreateJobBoard(context.Background(), board); err != nil {
		t.Fatalf("create board: %v", err)
	}
	sc := model.ScheduleConfig{
		JobBoardID:     board.ID,
		CronExpression: "* * * * *",
		Timezone:       "UTC",
		Priority:       3,
		IsEnabled:      true,
	}
	if err := st.CreateSchedule(context.Background(), &sc); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	// Force it due now regardless of whatever NextRunAt CreateSchedule defaulted to.
	if _, err := st.UpdateSchedule(context.Background(), sc.ID, func(cfg *model.ScheduleConfig) error {
		cfg.NextRunAt.Time = time.Now().Add(-time.Minute)
		cfg.NextRunAt.Valid = true
		return nil
	}); err != nil {
		t.Fatalf("force due: %v", err)
	}
	return sc
}

func TestTickFiresDueScheduleAndAdvancesNextRun(t *testing.T) {
	st := store.NewMemory()
	sc := newDueSchedule(t, st, true)

	s := New(st, nil, time.Hour)
	s.tick(context.Background())

	jobs, total, err := st.ListScrapeJobs(context.Background(), store.ScrapeJobFilter{}, store.Page{Limit: 10})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one job created, got %d", total)
	}
	if jobs[0].ScheduleID.UUID != sc.ID || !jobs[0].ScheduleID.Valid {
		t.Fatalf("expected job to reference the firing schedule")
	}
	if jobs[0].Status != model.JobPending {
		t.Fatalf("expected newly fired job to be PENDING, got %s", jobs[0].Status)
	}

	updated, err := st.GetSchedule(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if !updated.NextRunAt.Time.After(time.Now()) {
		t.Fatalf("expected next_run_at advanced into the future, got %v", updated.NextRunAt.Time)
	}
	if !updated.LastRunAt.Valid {
		t.Fatalf("expected last_run_at to be stamped")
	}
}

func TestTickSkipsScheduleForInactiveBoardButStillAdvances(t *testing.T) {
	st := store.NewMemory()
	sc := newDueSchedule(t, st, false)

	s := New(st, nil, time.Hour)
	s.tick(context.Background())

	_, total, err := st.ListScrapeJobs(context.Background(), store.ScrapeJobFilter{}, store.Page{Limit: 10})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no job created for inactive board, got %d", total)
	}

	updated, err := st.GetSchedule(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if !updated.NextRunAt.Time.After(time.Now()) {
		t.Fatalf("expected next_run_at still advanced despite inactive board, got %v", updated.NextRunAt.Time)
	}
}

func TestTickDoesNotRefireASchedulePastItsNextRun(t *testing.T) {
	st := store.NewMemory()
	newDueSchedule(t, st, true)

	s := New(st, nil, time.Hour)
	s.tick(context.Background())
	s.tick(context.Background())

	_, total, err := st.ListScrapeJobs(context.Background(), store.ScrapeJobFilter{}, store.Page{Limit: 10})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly one job across two ticks, got %d", total)
	}
}

func TestLastTickReportsMostRecentTickTime(t *testing.T) {
	st := store.NewMemory()
	s := New(st, nil, time.Hour)
	if !s.LastTick().IsZero() {
		t.Fatal("expected zero LastTick before any tick")
	}
	s.tick(context.Background())
	if s.LastTick().IsZero() {
		t.Fatal("expected LastTick to be set after a tick")
	}
}
