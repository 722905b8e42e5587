package engine

import (
	"context"
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/store"
)

type stubSampler struct{ cpu, mem float64 }

func (s stubSampler) Sample() (float64, float64) { return s.cpu, s.mem }

func TestHeartbeatTransitionsStatusByActiveJobs(t *testing.T) {
	st := store.NewMemory()
	m := NewMetrics(prometheus.NewRegistry())
	e := New(st, nil, m, stubSampler{cpu: 12.5, mem: 256})

	e.Heartbeat(context.Background())

	s, err := st.GetEngineState(context.Background())
	if err != nil {
		t.Fatalf("get engine state: %v", err)
	}
	if s.Status != model.EngineIdle {
		t.Fatalf("expected idle with no active jobs, got %s", s.Status)
	}
	if s.CPUUsagePercent != 12.5 || s.MemoryUsageMB != 256 {
		t.Fatalf("expected sampled resource usage recorded, got cpu=%v mem=%v", s.CPUUsagePercent, s.MemoryUsageMB)
	}
}

func TestHeartbeatEntersErrorStatusAfterFiveConsecutiveErrors(t *testing.T) {
	st := store.NewMemory()
	e := New(st, nil, NewMetrics(prometheus.NewRegistry()), stubSampler{})

	for i := 0; i < 5; i++ {
		e.RecordJobCompletion(context.Background(), "acme", model.ScrapeJob{Status: model.JobFailed})
	}
	e.Heartbeat(context.Background())

	s, err := st.GetEngineState(context.Background())
	if err != nil {
		t.Fatalf("get engine state: %v", err)
	}
	if s.Status != model.EngineError {
		t.Fatalf("expected error status after 5 consecutive errors, got %s", s.Status)
	}
}

func TestRecordJobCompletionIncrementsCountersOnSuccess(t *testing.T) {
	st := store.NewMemory()
	e := New(st, nil, NewMetrics(prometheus.NewRegistry()), stubSampler{})

	e.RecordJobCompletion(context.Background(), "acme", model.ScrapeJob{Status: model.JobCompleted, SuccessRate: 1.0})

	s, err := st.GetEngineState(context.Background())
	if err != nil {
		t.Fatalf("get engine state: %v", err)
	}
	if s.TotalJobsProcessed != 1 {
		t.Fatalf("expected total_jobs_processed incremented by 1, got %d", s.TotalJobsProcessed)
	}
	if s.TotalJobsToday != 1 {
		t.Fatalf("expected total_jobs_today incremented by 1, got %d", s.TotalJobsToday)
	}
	if s.ConsecutiveErrors != 0 {
		t.Fatalf("expected consecutive_errors reset to 0 on success, got %d", s.ConsecutiveErrors)
	}
}

func TestRecordJobCompletionRecordsLastErrorOnFailure(t *testing.T) {
	st := store.NewMemory()
	e := New(st, nil, NewMetrics(prometheus.NewRegistry()), stubSampler{})

	failJob := model.ScrapeJob{
		Status:       model.JobFailed,
		ErrorMessage: sql.NullString{String: "boom", Valid: true},
	}
	e.RecordJobCompletion(context.Background(), "acme", failJob)

	s, err := st.GetEngineState(context.Background())
	if err != nil {
		t.Fatalf("get engine state: %v", err)
	}
	if s.ConsecutiveErrors != 1 {
		t.Fatalf("expected consecutive_errors = 1, got %d", s.ConsecutiveErrors)
	}
	if !s.LastError.Valid || s.LastError.String != "boom" {
		t.Fatalf("expected last_error recorded, got %+v", s.LastError)
	}
}
