package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/model"
)

var errHeartbeatRegressed = errors.New("store: heartbeat must never decrease")

func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func sqlNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// Memory is an in-process Store used by component tests in place of
// Postgres, following the same fixture-map style the teacher's
// dedup_test.go uses for its in-memory repository stub.
type Memory struct {
	mu sync.Mutex

	boards    map[uuid.UUID]model.JobBoard
	schedules map[uuid.UUID]model.ScheduleConfig
	jobs      map[uuid.UUID]model.ScrapeJob
	runs      map[uuid.UUID]model.ScrapeRun
	raws      map[uuid.UUID]model.RawJob
	checksums map[string]bool // boardID|checksum -> exists, for non-duplicate raws
	normed    map[uuid.UUID]model.NormalizedJob
	engine    model.EngineState
}

// NewMemory returns an empty Memory store with engine state seeded idle.
func NewMemory() *Memory {
	return &Memory{
		boards:    map[uuid.UUID]model.JobBoard{},
		schedules: map[uuid.UUID]model.ScheduleConfig{},
		jobs:      map[uuid.UUID]model.ScrapeJob{},
		runs:      map[uuid.UUID]model.ScrapeRun{},
		raws:      map[uuid.UUID]model.RawJob{},
		checksums: map[string]bool{},
		normed:    map[uuid.UUID]model.NormalizedJob{},
		engine: model.EngineState{
			ID:                1,
			Status:            model.EngineIdle,
			LastHeartbeat:     time.Time{},
			MaxConcurrentJobs: 5,
			Version:           "dev",
		},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// Job boards
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) CreateJobBoard(ctx context.Context, b *model.JobBoard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	for _, existing := range m.boards {
		if existing.Name == b.Name {
			return ErrConflict
		}
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	m.boards[b.ID] = *b
	return nil
}

func (m *Memory) GetJobBoard(ctx context.Context, id uuid.UUID) (*model.JobBoard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *Memory) GetJobBoardByName(ctx context.Context, name string) (*model.JobBoard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.boards {
		if b.Name == name {
			cp := b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListJobBoards(ctx context.Context, filter JobBoardFilter, page Page) ([]model.JobBoard, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.JobBoard
	for _, b := range m.boards {
		if filter.ActiveOnly && !b.IsActive {
			continue
		}
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginateBoards(all, page), len(all), nil
}

func paginateBoards(all []model.JobBoard, page Page) []model.JobBoard {
	limit, skip := normalizePage(page)
	if skip >= len(all) {
		return nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end]
}

func (m *Memory) UpdateJobBoard(ctx context.Context, id uuid.UUID, mutate func(*model.JobBoard) error) (*model.JobBoard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := mutate(&b); err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now()
	m.boards[id] = b
	return &b, nil
}

func (m *Memory) DeactivateJobBoard(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[id]
	if !ok {
		return ErrNotFound
	}
	b.IsActive = false
	b.UpdatedAt = time.Now()
	m.boards[id] = b
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Schedules
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) CreateSchedule(ctx context.Context, s *model.ScheduleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.schedules[s.ID] = *s
	return nil
}

func (m *Memory) GetSchedule(ctx context.Context, id uuid.UUID) (*model.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) ListSchedulesForBoard(ctx context.Context, boardID uuid.UUID) ([]model.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScheduleConfig
	for _, s := range m.schedules {
		if s.JobBoardID == boardID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListDueSchedules(ctx context.Context, now time.Time) ([]model.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScheduleConfig
	for _, s := range m.schedules {
		if s.IsEnabled && s.NextRunAt.Valid && !s.NextRunAt.Time.After(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Time.Before(out[j].NextRunAt.Time) })
	return out, nil
}

func (m *Memory) UpdateSchedule(ctx context.Context, id uuid.UUID, mutate func(*model.ScheduleConfig) error) (*model.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := mutate(&s); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	m.schedules[id] = s
	return &s, nil
}

func (m *Memory) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scrape jobs
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) CreateScrapeJob(ctx context.Context, j *model.ScrapeJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = model.JobPending
	}
	now := time.Now()
	j.CreatedAt, j.UpdatedAt = now, now
	m.jobs[j.ID] = *j
	return nil
}

func (m *Memory) GetScrapeJob(ctx context.Context, id uuid.UUID) (*model.ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (m *Memory) ListScrapeJobs(ctx context.Context, filter ScrapeJobFilter, page Page) ([]model.ScrapeJob, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.ScrapeJob
	for _, j := range m.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.JobBoardID.Valid && j.JobBoardID != filter.JobBoardID.UUID {
			continue
		}
		all = append(all, j)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	limit, skip := normalizePage(page)
	total := len(all)
	if skip >= total {
		return nil, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (m *Memory) ClaimPendingJob(ctx context.Context, id uuid.UUID, workerID string) (*model.ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if j.Status != model.JobPending {
		return nil, ErrConflict
	}
	j.Status = model.JobRunning
	j.WorkerID = sqlNullString(workerID)
	j.StartedAt = sqlNullTime(time.Now())
	j.UpdatedAt = time.Now()
	m.jobs[id] = j
	return &j, nil
}

func (m *Memory) UpdateScrapeJob(ctx context.Context, id uuid.UUID, mutate func(*model.ScrapeJob) error) (*model.ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := mutate(&j); err != nil {
		return nil, err
	}
	j.UpdatedAt = time.Now()
	m.jobs[id] = j
	return &j, nil
}

func (m *Memory) NextPendingJobs(ctx context.Context, limit int) ([]model.ScrapeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.ScrapeJob
	for _, j := range m.jobs {
		if j.Status == model.JobPending {
			all = append(all, j)
		}
	}
	sort.Slice(all, func(i, k int) bool {
		if all[i].Priority != all[k].Priority {
			return all[i].Priority > all[k].Priority
		}
		return all[i].CreatedAt.Before(all[k].CreatedAt)
	})
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) CountJobsByStatus(ctx context.Context, status model.JobStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == status {
			n++
		}
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scrape runs
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) CreateScrapeRun(ctx context.Context, r *model.ScrapeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	m.runs[r.ID] = *r
	return nil
}

func (m *Memory) ListScrapeRuns(ctx context.Context, filter ScrapeRunFilter, page Page) ([]model.ScrapeRun, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.ScrapeRun
	for _, r := range m.runs {
		if r.JobID == filter.JobID {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PageNumber < all[j].PageNumber })
	limit, skip := normalizePage(page)
	total := len(all)
	if skip >= total {
		return nil, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (m *Memory) GetScrapeRun(ctx context.Context, id uuid.UUID) (*model.ScrapeRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Raw jobs
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) BulkUpsertRawJobs(ctx context.Context, raws []model.RawJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range raws {
		r := raws[i]
		key := r.JobBoardID.String() + "|" + r.Checksum
		if !r.IsDuplicate && m.checksums[key] {
			continue // already present, matches ON CONFLICT DO NOTHING
		}
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = time.Now()
		m.raws[r.ID] = r
		if !r.IsDuplicate {
			m.checksums[key] = true
		}
	}
	return nil
}

func (m *Memory) ListUnprocessedRawJobs(ctx context.Context, limit int) ([]model.RawJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.RawJob
	for _, r := range m.raws {
		if !r.IsProcessed && !r.IsDuplicate {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) MarkRawJobProcessed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.raws[id]
	if !ok {
		return ErrNotFound
	}
	r.IsProcessed = true
	m.raws[id] = r
	return nil
}

func (m *Memory) ChecksumExists(ctx context.Context, boardID uuid.UUID, checksum string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checksums[boardID.String()+"|"+checksum], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Normalized jobs
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) CreateNormalizedJob(ctx context.Context, n *model.NormalizedJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now()
	n.CreatedAt, n.UpdatedAt = now, now
	m.normed[n.ID] = *n
	return nil
}

func (m *Memory) ListNormalizedJobs(ctx context.Context, page Page) ([]model.NormalizedJob, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.NormalizedJob
	for _, n := range m.normed {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	limit, skip := normalizePage(page)
	total := len(all)
	if skip >= total {
		return nil, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine state
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) GetEngineState(ctx context.Context) (*model.EngineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.engine
	return &s, nil
}

func (m *Memory) UpdateEngineState(ctx context.Context, mutate func(*model.EngineState) error) (*model.EngineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.engine
	if err := mutate(&s); err != nil {
		return nil, err
	}
	if s.LastHeartbeat.Before(m.engine.LastHeartbeat) {
		return nil, errHeartbeatRegressed
	}
	m.engine = s
	return &s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Dashboard, transactions
// ─────────────────────────────────────────────────────────────────────────────

func (m *Memory) DashboardSnapshot(ctx context.Context) (*Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &Dashboard{}
	today := time.Now().Truncate(24 * time.Hour)
	var rateSum float64
	var rateCount int
	for _, j := range m.jobs {
		if j.CreatedAt.After(today) {
			d.JobsToday++
			if j.Status == model.JobCompleted || j.Status == model.JobFailed {
				rateSum += j.SuccessRate
				rateCount++
			}
		}
		if j.Status == model.JobFailed {
			d.RecentFailures = append(d.RecentFailures, j)
		}
	}
	if rateCount > 0 {
		d.SuccessRate = rateSum / float64(rateCount)
	}
	for _, b := range m.boards {
		if b.IsActive {
			d.ActiveBoards++
		}
	}
	sort.Slice(d.RecentFailures, func(i, j int) bool {
		return d.RecentFailures[i].CreatedAt.After(d.RecentFailures[j].CreatedAt)
	})
	if len(d.RecentFailures) > 10 {
		d.RecentFailures = d.RecentFailures[:10]
	}
	return d, nil
}

// Transaction has no isolation to offer in-process, so it just runs fn
// against the same store; callers rely on Memory's internal mutex instead.
func (m *Memory) Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, m)
}
