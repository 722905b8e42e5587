// Package store defines the Document Store port used throughout the engine
// and the two implementations that back it: a Postgres-backed store for
// production (internal/store/postgres.go) and an in-memory store for tests
// (internal/store/memory.go). Unlike the teacher's single concrete
// JobRepository, every method here is part of an interface so components
// depend on the port, never on a connection-level concern.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/learnbot/autoscraper/internal/model"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a compare-and-set update loses a race, or a
// unique constraint (board name, (board_id, checksum)) is violated.
var ErrConflict = errors.New("store: conflict")

// JobBoardFilter narrows a ListJobBoards call.
type JobBoardFilter struct {
	ActiveOnly bool
}

// ScrapeJobFilter narrows a ListScrapeJobs call.
type ScrapeJobFilter struct {
	Status     model.JobStatus
	JobBoardID uuid.NullUUID
}

// ScrapeRunFilter narrows a ListScrapeRuns call.
type ScrapeRunFilter struct {
	JobID uuid.UUID
}

// Page bounds a list call; Limit <= 0 means "use the caller's default".
type Page struct {
	Skip  int
	Limit int
}

// Store is the sole persistence seam consumed by every other component.
// A Transaction sees a consistent snapshot and either commits or aborts
// atomically; across transactions, updates to a single document are
// linearizable via the ClaimPending / Update* compare-and-set methods.
type Store interface {
	// Job boards
	CreateJobBoard(ctx context.Context, b *model.JobBoard) error
	GetJobBoard(ctx context.Context, id uuid.UUID) (*model.JobBoard, error)
	GetJobBoardByName(ctx context.Context, name string) (*model.JobBoard, error)
	ListJobBoards(ctx context.Context, filter JobBoardFilter, page Page) ([]model.JobBoard, int, error)
	UpdateJobBoard(ctx context.Context, id uuid.UUID, mutate func(*model.JobBoard) error) (*model.JobBoard, error)
	DeactivateJobBoard(ctx context.Context, id uuid.UUID) error

	// Schedules
	CreateSchedule(ctx context.Context, s *model.ScheduleConfig) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*model.ScheduleConfig, error)
	ListSchedulesForBoard(ctx context.Context, boardID uuid.UUID) ([]model.ScheduleConfig, error)
	ListDueSchedules(ctx context.Context, now time.Time) ([]model.ScheduleConfig, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, mutate func(*model.ScheduleConfig) error) (*model.ScheduleConfig, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error

	// Scrape jobs
	CreateScrapeJob(ctx context.Context, j *model.ScrapeJob) error
	GetScrapeJob(ctx context.Context, id uuid.UUID) (*model.ScrapeJob, error)
	ListScrapeJobs(ctx context.Context, filter ScrapeJobFilter, page Page) ([]model.ScrapeJob, int, error)
	// ClaimPendingJob atomically reads status=PENDING and writes
	// status=RUNNING with the given worker identity, returning ErrConflict
	// if the job is no longer PENDING. This is the dispatch-exactly-once
	// claim transaction required by spec.md invariant 6.
	ClaimPendingJob(ctx context.Context, id uuid.UUID, workerID string) (*model.ScrapeJob, error)
	UpdateScrapeJob(ctx context.Context, id uuid.UUID, mutate func(*model.ScrapeJob) error) (*model.ScrapeJob, error)
	NextPendingJobs(ctx context.Context, limit int) ([]model.ScrapeJob, error)
	CountJobsByStatus(ctx context.Context, status model.JobStatus) (int, error)

	// Scrape runs
	CreateScrapeRun(ctx context.Context, r *model.ScrapeRun) error
	ListScrapeRuns(ctx context.Context, filter ScrapeRunFilter, page Page) ([]model.ScrapeRun, int, error)
	GetScrapeRun(ctx context.Context, id uuid.UUID) (*model.ScrapeRun, error)

	// Raw jobs
	// BulkUpsertRawJobs inserts raws in one transaction, enforcing the
	// (board_id, checksum) unique index for non-duplicate raws.
	BulkUpsertRawJobs(ctx context.Context, raws []model.RawJob) error
	ListUnprocessedRawJobs(ctx context.Context, limit int) ([]model.RawJob, error)
	MarkRawJobProcessed(ctx context.Context, id uuid.UUID) error
	ChecksumExists(ctx context.Context, boardID uuid.UUID, checksum string) (bool, error)

	// Normalized jobs
	CreateNormalizedJob(ctx context.Context, n *model.NormalizedJob) error
	ListNormalizedJobs(ctx context.Context, page Page) ([]model.NormalizedJob, int, error)

	// Engine state
	GetEngineState(ctx context.Context) (*model.EngineState, error)
	UpdateEngineState(ctx context.Context, mutate func(*model.EngineState) error) (*model.EngineState, error)

	// Dashboard aggregation
	DashboardSnapshot(ctx context.Context) (*Dashboard, error)

	// Transaction runs fn against a Store bound to a single DB transaction;
	// returning an error aborts it, nil commits it.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Ping reports whether the underlying dependency is reachable, backing
	// the /health/ready probe.
	Ping(ctx context.Context) error
}

// Dashboard is the aggregated counters the Control API's /dashboard
// endpoint returns.
type Dashboard struct {
	JobsToday      int
	SuccessRate    float64
	ActiveBoards   int
	RecentFailures []model.ScrapeJob
}
