package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnbot/autoscraper/internal/model"
)

// Postgres implements Store on top of database/sql + lib/pq, following the
// same raw-SQL, ON CONFLICT ... RETURNING idiom as the teacher's
// JobRepository.UpsertJob.
type Postgres struct {
	db execer
}

// execer is satisfied by both *sql.DB and *sql.Tx so Transaction can hand
// callers a Store bound to the same underlying transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewPostgres creates a Store backed by the given connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	db, ok := p.db.(*sql.DB)
	if !ok {
		return nil // already inside a transaction; the outer Ping covers readiness
	}
	return db.PingContext(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Job boards
// ─────────────────────────────────────────────────────────────────────────────

func (p *Postgres) CreateJobBoard(ctx context.Context, b *model.JobBoard) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	selectors, _ := json.Marshal(b.Selectors)
	headers, _ := json.Marshal(b.Headers)
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO job_boards (
			id, name, description, type, base_url, rss_url, selectors, headers,
			rate_limit_delay_s, max_pages, request_timeout_s, retry_attempts,
			quality_threshold, is_active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		b.ID, b.Name, b.Description, b.Type, b.BaseURL,
		b.RSSURL, selectors, headers,
		b.RateLimitDelayS, b.MaxPages, b.RequestTimeoutS, b.RetryAttempts,
		b.QualityThreshold, b.IsActive,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create job board: %w", err)
	}
	return nil
}

func (p *Postgres) GetJobBoard(ctx context.Context, id uuid.UUID) (*model.JobBoard, error) {
	return p.scanJobBoard(p.db.QueryRowContext(ctx, jobBoardSelect+" WHERE id = $1", id))
}

func (p *Postgres) GetJobBoardByName(ctx context.Context, name string) (*model.JobBoard, error) {
	return p.scanJobBoard(p.db.QueryRowContext(ctx, jobBoardSelect+" WHERE name = $1", name))
}

const jobBoardSelect = `
	SELECT id, name, description, type, base_url, rss_url, selectors, headers,
	       rate_limit_delay_s, max_pages, request_timeout_s, retry_attempts,
	       quality_threshold, is_active, total_scrapes, successful_scrapes,
	       failed_scrapes, last_scraped_at, success_rate, created_at, updated_at
	FROM job_boards`

func (p *Postgres) scanJobBoard(row *sql.Row) (*model.JobBoard, error) {
	var b model.JobBoard
	err := row.Scan(
		&b.ID, &b.Name, &b.Description, &b.Type, &b.BaseURL, &b.RSSURL,
		&b.SelectorsRaw, &b.HeadersRaw,
		&b.RateLimitDelayS, &b.MaxPages, &b.RequestTimeoutS, &b.RetryAttempts,
		&b.QualityThreshold, &b.IsActive, &b.TotalScrapes, &b.SuccessfulScrapes,
		&b.FailedScrapes, &b.LastScrapedAt, &b.SuccessRate, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job board: %w", err)
	}
	_ = json.Unmarshal(b.SelectorsRaw, &b.Selectors)
	_ = json.Unmarshal(b.HeadersRaw, &b.Headers)
	return &b, nil
}

func (p *Postgres) ListJobBoards(ctx context.Context, filter JobBoardFilter, page Page) ([]model.JobBoard, int, error) {
	where := "1=1"
	if filter.ActiveOnly {
		where = "is_active = TRUE"
	}
	limit, skip := normalizePage(page)

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_boards WHERE "+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count job boards: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, jobBoardSelect+" WHERE "+where+" ORDER BY name LIMIT $1 OFFSET $2", limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list job boards: %w", err)
	}
	defer rows.Close()

	var out []model.JobBoard
	for rows.Next() {
		var b model.JobBoard
		if err := rows.Scan(
			&b.ID, &b.Name, &b.Description, &b.Type, &b.BaseURL, &b.RSSURL,
			&b.SelectorsRaw, &b.HeadersRaw,
			&b.RateLimitDelayS, &b.MaxPages, &b.RequestTimeoutS, &b.RetryAttempts,
			&b.QualityThreshold, &b.IsActive, &b.TotalScrapes, &b.SuccessfulScrapes,
			&b.FailedScrapes, &b.LastScrapedAt, &b.SuccessRate, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan job board: %w", err)
		}
		_ = json.Unmarshal(b.SelectorsRaw, &b.Selectors)
		_ = json.Unmarshal(b.HeadersRaw, &b.Headers)
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (p *Postgres) UpdateJobBoard(ctx context.Context, id uuid.UUID, mutate func(*model.JobBoard) error) (*model.JobBoard, error) {
	b, err := p.GetJobBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(b); err != nil {
		return nil, err
	}
	selectors, _ := json.Marshal(b.Selectors)
	headers, _ := json.Marshal(b.Headers)
	_, err = p.db.ExecContext(ctx, `
		UPDATE job_boards SET
			name = $2, description = $3, type = $4, base_url = $5, rss_url = $6,
			selectors = $7, headers = $8, rate_limit_delay_s = $9, max_pages = $10,
			request_timeout_s = $11, retry_attempts = $12, quality_threshold = $13,
			is_active = $14, total_scrapes = $15, successful_scrapes = $16,
			failed_scrapes = $17, last_scraped_at = $18, success_rate = $19,
			updated_at = NOW()
		WHERE id = $1`,
		id, b.Name, b.Description, b.Type, b.BaseURL, b.RSSURL, selectors, headers,
		b.RateLimitDelayS, b.MaxPages, b.RequestTimeoutS, b.RetryAttempts,
		b.QualityThreshold, b.IsActive, b.TotalScrapes, b.SuccessfulScrapes,
		b.FailedScrapes, b.LastScrapedAt, b.SuccessRate,
	)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update job board: %w", err)
	}
	return b, nil
}

// DeactivateJobBoard soft-deactivates a board; boards with scrape history
// are never hard-deleted (spec.md §3).
func (p *Postgres) DeactivateJobBoard(ctx context.Context, id uuid.UUID) error {
	_, err := p.db.ExecContext(ctx, `UPDATE job_boards SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Schedules
// ─────────────────────────────────────────────────────────────────────────────

func (p *Postgres) CreateSchedule(ctx context.Context, s *model.ScheduleConfig) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO schedule_configs (
			id, job_board_id, name, description, cron_expression, timezone,
			is_enabled, max_concurrent_jobs, priority, max_retries,
			retry_delay_minutes, next_run_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		s.ID, s.JobBoardID, s.Name, s.Description, s.CronExpression, s.Timezone,
		s.IsEnabled, s.MaxConcurrentJobs, s.Priority, s.MaxRetries,
		s.RetryDelayMinutes, s.NextRunAt,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

const scheduleSelect = `
	SELECT id, job_board_id, name, description, cron_expression, timezone,
	       is_enabled, max_concurrent_jobs, priority, max_retries,
	       retry_delay_minutes, next_run_at, last_run_at, created_at, updated_at
	FROM schedule_configs`

func (p *Postgres) scanSchedule(row *sql.Row) (*model.ScheduleConfig, error) {
	var s model.ScheduleConfig
	err := row.Scan(
		&s.ID, &s.JobBoardID, &s.Name, &s.Description, &s.CronExpression, &s.Timezone,
		&s.IsEnabled, &s.MaxConcurrentJobs, &s.Priority, &s.MaxRetries,
		&s.RetryDelayMinutes, &s.NextRunAt, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &s, nil
}

func (p *Postgres) GetSchedule(ctx context.Context, id uuid.UUID) (*model.ScheduleConfig, error) {
	return p.scanSchedule(p.db.QueryRowContext(ctx, scheduleSelect+" WHERE id = $1", id))
}

func (p *Postgres) ListSchedulesForBoard(ctx context.Context, boardID uuid.UUID) ([]model.ScheduleConfig, error) {
	rows, err := p.db.QueryContext(ctx, scheduleSelect+" WHERE job_board_id = $1 ORDER BY name", boardID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// ListDueSchedules returns enabled schedules whose next_run_at has passed,
// backing the Scheduler's 1Hz tick query.
func (p *Postgres) ListDueSchedules(ctx context.Context, now time.Time) ([]model.ScheduleConfig, error) {
	rows, err := p.db.QueryContext(ctx, scheduleSelect+` WHERE is_enabled = TRUE AND next_run_at <= $1 ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func scanSchedules(rows *sql.Rows) ([]model.ScheduleConfig, error) {
	var out []model.ScheduleConfig
	for rows.Next() {
		var s model.ScheduleConfig
		if err := rows.Scan(
			&s.ID, &s.JobBoardID, &s.Name, &s.Description, &s.CronExpression, &s.Timezone,
			&s.IsEnabled, &s.MaxConcurrentJobs, &s.Priority, &s.MaxRetries,
			&s.RetryDelayMinutes, &s.NextRunAt, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateSchedule(ctx context.Context, id uuid.UUID, mutate func(*model.ScheduleConfig) error) (*model.ScheduleConfig, error) {
	s, err := p.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	_, err = p.db.ExecContext(ctx, `
		UPDATE schedule_configs SET
			name = $2, description = $3, cron_expression = $4, timezone = $5,
			is_enabled = $6, max_concurrent_jobs = $7, priority = $8,
			max_retries = $9, retry_delay_minutes = $10, next_run_at = $11,
			last_run_at = $12, updated_at = NOW()
		WHERE id = $1`,
		id, s.Name, s.Description, s.CronExpression, s.Timezone, s.IsEnabled,
		s.MaxConcurrentJobs, s.Priority, s.MaxRetries, s.RetryDelayMinutes,
		s.NextRunAt, s.LastRunAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return s, nil
}

func (p *Postgres) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM schedule_configs WHERE id = $1`, id)
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Scrape jobs
// ─────────────────────────────────────────────────────────────────────────────

func (p *Postgres) CreateScrapeJob(ctx context.Context, j *model.ScrapeJob) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = model.JobPending
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO scrape_jobs (
			id, job_board_id, schedule_id, mode, status, priority, max_pages,
			config_snapshot
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		j.ID, j.JobBoardID, j.ScheduleID, j.Mode, j.Status, j.Priority, j.MaxPages,
		j.ConfigSnapshot,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
}

const scrapeJobSelect = `
	SELECT id, job_board_id, schedule_id, mode, status, priority, max_pages,
	       page_cursor, consecutive_empty_pages, started_at, completed_at,
	       duration_s, items_found, items_created, items_updated, items_skipped,
	       success_rate, error_message, error_details, retry_count, worker_id,
	       config_snapshot, created_at, updated_at
	FROM scrape_jobs`

func scanScrapeJob(row *sql.Row) (*model.ScrapeJob, error) {
	var j model.ScrapeJob
	err := row.Scan(
		&j.ID, &j.JobBoardID, &j.ScheduleID, &j.Mode, &j.Status, &j.Priority, &j.MaxPages,
		&j.PageCursor, &j.ConsecutiveEmptyPages, &j.StartedAt, &j.CompletedAt,
		&j.DurationS, &j.ItemsFound, &j.ItemsCreated, &j.ItemsUpdated, &j.ItemsSkipped,
		&j.SuccessRate, &j.ErrorMessage, &j.ErrorDetails, &j.RetryCount, &j.WorkerID,
		&j.ConfigSnapshot, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scrape job: %w", err)
	}
	return &j, nil
}

func (p *Postgres) GetScrapeJob(ctx context.Context, id uuid.UUID) (*model.ScrapeJob, error) {
	return scanScrapeJob(p.db.QueryRowContext(ctx, scrapeJobSelect+" WHERE id = $1", id))
}

func (p *Postgres) ListScrapeJobs(ctx context.Context, filter ScrapeJobFilter, page Page) ([]model.ScrapeJob, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.JobBoardID.Valid {
		where = append(where, fmt.Sprintf("job_board_id = $%d", idx))
		args = append(args, filter.JobBoardID.UUID)
		idx++
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scrape_jobs WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scrape jobs: %w", err)
	}

	limit, skip := normalizePage(page)
	args = append(args, limit, skip)
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`%s WHERE %s
		ORDER BY priority DESC, created_at ASC LIMIT $%d OFFSET $%d`,
		scrapeJobSelect, whereClause, idx, idx+1), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scrape jobs: %w", err)
	}
	defer rows.Close()

	var out []model.ScrapeJob
	for rows.Next() {
		var j model.ScrapeJob
		if err := rows.Scan(
			&j.ID, &j.JobBoardID, &j.ScheduleID, &j.Mode, &j.Status, &j.Priority, &j.MaxPages,
			&j.PageCursor, &j.ConsecutiveEmptyPages, &j.StartedAt, &j.CompletedAt,
			&j.DurationS, &j.ItemsFound, &j.ItemsCreated, &j.ItemsUpdated, &j.ItemsSkipped,
			&j.SuccessRate, &j.ErrorMessage, &j.ErrorDetails, &j.RetryCount, &j.WorkerID,
			&j.ConfigSnapshot, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan scrape job: %w", err)
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}

// ClaimPendingJob is the dispatch-exactly-once claim transaction: it
// atomically flips status PENDING -> RUNNING with a worker identity and
// fails with ErrConflict if another worker already claimed it.
func (p *Postgres) ClaimPendingJob(ctx context.Context, id uuid.UUID, workerID string) (*model.ScrapeJob, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE scrape_jobs SET status = $2, worker_id = $3, started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, model.JobRunning, workerID, model.JobPending,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrConflict
	}
	return p.GetScrapeJob(ctx, id)
}

func (p *Postgres) UpdateScrapeJob(ctx context.Context, id uuid.UUID, mutate func(*model.ScrapeJob) error) (*model.ScrapeJob, error) {
	j, err := p.GetScrapeJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(j); err != nil {
		return nil, err
	}
	_, err = p.db.ExecContext(ctx, `
		UPDATE scrape_jobs SET
			status = $2, priority = $3, max_pages = $4, page_cursor = $5,
			consecutive_empty_pages = $6, started_at = $7, completed_at = $8,
			duration_s = $9, items_found = $10, items_created = $11,
			items_updated = $12, items_skipped = $13, success_rate = $14,
			error_message = $15, error_details = $16, retry_count = $17,
			worker_id = $18, updated_at = NOW()
		WHERE id = $1`,
		id, j.Status, j.Priority, j.MaxPages, j.PageCursor, j.ConsecutiveEmptyPages,
		j.StartedAt, j.CompletedAt, j.DurationS, j.ItemsFound, j.ItemsCreated,
		j.ItemsUpdated, j.ItemsSkipped, j.SuccessRate, j.ErrorMessage, j.ErrorDetails,
		j.RetryCount, j.WorkerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update scrape job: %w", err)
	}
	return j, nil
}

func (p *Postgres) NextPendingJobs(ctx context.Context, limit int) ([]model.ScrapeJob, error) {
	rows, err := p.db.QueryContext(ctx, scrapeJobSelect+`
		WHERE status = $1 ORDER BY priority DESC, created_at ASC LIMIT $2`,
		model.JobPending, limit)
	if err != nil {
		return nil, fmt.Errorf("next pending jobs: %w", err)
	}
	defer rows.Close()

	var out []model.ScrapeJob
	for rows.Next() {
		var j model.ScrapeJob
		if err := rows.Scan(
			&j.ID, &j.JobBoardID, &j.ScheduleID, &j.Mode, &j.Status, &j.Priority, &j.MaxPages,
			&j.PageCursor, &j.ConsecutiveEmptyPages, &j.StartedAt, &j.CompletedAt,
			&j.DurationS, &j.ItemsFound, &j.ItemsCreated, &j.ItemsUpdated, &j.ItemsSkipped,
			&j.SuccessRate, &j.ErrorMessage, &j.ErrorDetails, &j.RetryCount, &j.WorkerID,
			&j.ConfigSnapshot, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scrape job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) CountJobsByStatus(ctx context.Context, status model.JobStatus) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scrape_jobs WHERE status = $1`, status).Scan(&n)
	return n, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Scrape runs
// ─────────────────────────────────────────────────────────────────────────────

func (p *Postgres) CreateScrapeRun(ctx context.Context, r *model.ScrapeRun) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO scrape_runs (
			id, job_id, run_type, url, page_number, started_at, completed_at,
			duration_ms, http_status_code, response_size_bytes, items_found,
			items_processed, items_created, items_updated, items_skipped,
			error_message, error_details
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at`,
		r.ID, r.JobID, r.RunType, r.URL, r.PageNumber, r.StartedAt, r.CompletedAt,
		r.DurationMs, r.HTTPStatusCode, r.ResponseSizeBytes, r.ItemsFound,
		r.ItemsProcessed, r.ItemsCreated, r.ItemsUpdated, r.ItemsSkipped,
		r.ErrorMessage, r.ErrorDetails,
	).Scan(&r.CreatedAt)
}

func (p *Postgres) ListScrapeRuns(ctx context.Context, filter ScrapeRunFilter, page Page) ([]model.ScrapeRun, int, error) {
	limit, skip := normalizePage(page)
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scrape_runs WHERE job_id = $1`, filter.JobID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scrape runs: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, job_id, run_type, url, page_number, started_at, completed_at,
		       duration_ms, http_status_code, response_size_bytes, items_found,
		       items_processed, items_created, items_updated, items_skipped,
		       error_message, error_details, created_at
		FROM scrape_runs WHERE job_id = $1 ORDER BY page_number ASC LIMIT $2 OFFSET $3`,
		filter.JobID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list scrape runs: %w", err)
	}
	defer rows.Close()

	var out []model.ScrapeRun
	for rows.Next() {
		var r model.ScrapeRun
		if err := rows.Scan(
			&r.ID, &r.JobID, &r.RunType, &r.URL, &r.PageNumber, &r.StartedAt, &r.CompletedAt,
			&r.DurationMs, &r.HTTPStatusCode, &r.ResponseSizeBytes, &r.ItemsFound,
			&r.ItemsProcessed, &r.ItemsCreated, &r.ItemsUpdated, &r.ItemsSkipped,
			&r.ErrorMessage, &r.ErrorDetails, &r.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan scrape run: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (p *Postgres) GetScrapeRun(ctx context.Context, id uuid.UUID) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	err := p.db.QueryRowContext(ctx, `
		SELECT id, job_id, run_type, url, page_number, started_at, completed_at,
		       duration_ms, http_status_code, response_size_bytes, items_found,
		       items_processed, items_created, items_updated, items_skipped,
		       error_message, error_details, created_at
		FROM scrape_runs WHERE id = $1`, id,
	).Scan(
		&r.ID, &r.JobID, &r.RunType, &r.URL, &r.PageNumber, &r.StartedAt, &r.CompletedAt,
		&r.DurationMs, &r.HTTPStatusCode, &r.ResponseSizeBytes, &r.ItemsFound,
		&r.ItemsProcessed, &r.ItemsCreated, &r.ItemsUpdated, &r.ItemsSkipped,
		&r.ErrorMessage, &r.ErrorDetails, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scrape run: %w", err)
	}
	return &r, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Raw jobs
// ─────────────────────────────────────────────────────────────────────────────

// BulkUpsertRawJobs mirrors JobRepository.UpsertJob's ON CONFLICT idiom but
// against the (board_id, checksum) unique index scoped to non-duplicate raws.
func (p *Postgres) BulkUpsertRawJobs(ctx context.Context, raws []model.RawJob) error {
	for i := range raws {
		r := &raws[i]
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO raw_jobs (
				id, run_id, job_board_id, title, company, location, description, url,
				salary_text, job_type_text, posted_date_text, raw_data, html_snapshot,
				is_processed, is_duplicate, checksum
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (job_board_id, checksum) WHERE is_duplicate = FALSE DO NOTHING`,
			r.ID, r.RunID, r.JobBoardID, r.Title, r.Company, r.Location, r.Description, r.URL,
			r.SalaryText, r.JobTypeText, r.PostedDateText, r.RawData, r.HTMLSnapshot,
			r.IsProcessed, r.IsDuplicate, r.Checksum,
		)
		if err != nil {
			return fmt.Errorf("bulk upsert raw job: %w", err)
		}
	}
	return nil
}

func (p *Postgres) ListUnprocessedRawJobs(ctx context.Context, limit int) ([]model.RawJob, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, run_id, job_board_id, title, company, location, description, url,
		       salary_text, job_type_text, posted_date_text, raw_data, html_snapshot,
		       is_processed, is_duplicate, checksum, created_at
		FROM raw_jobs WHERE is_processed = FALSE AND is_duplicate = FALSE
		ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed raw jobs: %w", err)
	}
	defer rows.Close()

	var out []model.RawJob
	for rows.Next() {
		var r model.RawJob
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.JobBoardID, &r.Title, &r.Company, &r.Location, &r.Description, &r.URL,
			&r.SalaryText, &r.JobTypeText, &r.PostedDateText, &r.RawData, &r.HTMLSnapshot,
			&r.IsProcessed, &r.IsDuplicate, &r.Checksum, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan raw job: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkRawJobProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := p.db.ExecContext(ctx, `UPDATE raw_jobs SET is_processed = TRUE WHERE id = $1`, id)
	return err
}

func (p *Postgres) ChecksumExists(ctx context.Context, boardID uuid.UUID, checksum string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM raw_jobs WHERE job_board_id = $1 AND checksum = $2 AND is_duplicate = FALSE)`,
		boardID, checksum).Scan(&exists)
	return exists, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Normalized jobs
// ─────────────────────────────────────────────────────────────────────────────

func (p *Postgres) CreateNormalizedJob(ctx context.Context, n *model.NormalizedJob) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO normalized_jobs (
			id, raw_job_id, title, company, location, description, salary_min,
			salary_max, salary_currency, salary_period, job_type, experience_level,
			remote_allowed, city, state, country, posted_date, skills,
			normalization_confidence, normalization_method, quality_score, is_published
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING created_at, updated_at`,
		n.ID, n.RawJobID, n.Title, n.Company, n.Location, n.Description, n.SalaryMin,
		n.SalaryMax, n.SalaryCurrency, n.SalaryPeriod, n.JobType, n.ExperienceLevel,
		n.RemoteAllowed, n.City, n.State, n.Country, n.PostedDate, pq.Array(n.Skills),
		n.NormalizationConfidence, n.NormalizationMethod, n.QualityScore, n.IsPublished,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
}

func (p *Postgres) ListNormalizedJobs(ctx context.Context, page Page) ([]model.NormalizedJob, int, error) {
	limit, skip := normalizePage(page)
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM normalized_jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count normalized jobs: %w", err)
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, raw_job_id, title, company, location, description, salary_min,
		       salary_max, salary_currency, salary_period, job_type, experience_level,
		       remote_allowed, city, state, country, posted_date, skills,
		       normalization_confidence, normalization_method, quality_score,
		       is_published, created_at, updated_at
		FROM normalized_jobs ORDER BY posted_date DESC NULLS LAST LIMIT $1 OFFSET $2`, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list normalized jobs: %w", err)
	}
	defer rows.Close()

	var out []model.NormalizedJob
	for rows.Next() {
		var n model.NormalizedJob
		if err := rows.Scan(
			&n.ID, &n.RawJobID, &n.Title, &n.Company, &n.Location, &n.Description, &n.SalaryMin,
			&n.SalaryMax, &n.SalaryCurrency, &n.SalaryPeriod, &n.JobType, &n.ExperienceLevel,
			&n.RemoteAllowed, &n.City, &n.State, &n.Country, &n.PostedDate, &n.Skills,
			&n.NormalizationConfidence, &n.NormalizationMethod, &n.QualityScore,
			&n.IsPublished, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan normalized job: %w", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine state
// ─────────────────────────────────────────────────────────────────────────────

func (p *Postgres) GetEngineState(ctx context.Context) (*model.EngineState, error) {
	var s model.EngineState
	err := p.db.QueryRowContext(ctx, `
		SELECT id, status, last_heartbeat, active_jobs_count, queued_jobs_count,
		       total_jobs_processed, total_jobs_today, success_rate, cpu_usage_percent,
		       memory_usage_mb, max_concurrent_jobs, maintenance_mode, last_error,
		       last_error_at, consecutive_errors, uptime_s, version
		FROM engine_state WHERE id = 1`,
	).Scan(
		&s.ID, &s.Status, &s.LastHeartbeat, &s.ActiveJobsCount, &s.QueuedJobsCount,
		&s.TotalJobsProcessed, &s.TotalJobsToday, &s.SuccessRate, &s.CPUUsagePercent,
		&s.MemoryUsageMB, &s.MaxConcurrentJobs, &s.MaintenanceMode, &s.LastError,
		&s.LastErrorAt, &s.ConsecutiveErrors, &s.UptimeS, &s.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get engine state: %w", err)
	}
	return &s, nil
}

func (p *Postgres) UpdateEngineState(ctx context.Context, mutate func(*model.EngineState) error) (*model.EngineState, error) {
	s, err := p.GetEngineState(ctx)
	if err != nil {
		return nil, err
	}
	prevHeartbeat := s.LastHeartbeat
	if err := mutate(s); err != nil {
		return nil, err
	}
	if s.LastHeartbeat.Before(prevHeartbeat) {
		return nil, fmt.Errorf("engine state: heartbeat must never decrease")
	}
	_, err = p.db.ExecContext(ctx, `
		UPDATE engine_state SET
			status = $1, last_heartbeat = $2, active_jobs_count = $3,
			queued_jobs_count = $4, total_jobs_processed = $5, total_jobs_today = $6,
			success_rate = $7, cpu_usage_percent = $8, memory_usage_mb = $9,
			max_concurrent_jobs = $10, maintenance_mode = $11, last_error = $12,
			last_error_at = $13, consecutive_errors = $14, uptime_s = $15,
			updated_at = NOW()
		WHERE id = 1`,
		s.Status, s.LastHeartbeat, s.ActiveJobsCount, s.QueuedJobsCount,
		s.TotalJobsProcessed, s.TotalJobsToday, s.SuccessRate, s.CPUUsagePercent,
		s.MemoryUsageMB, s.MaxConcurrentJobs, s.MaintenanceMode, s.LastError,
		s.LastErrorAt, s.ConsecutiveErrors, s.UptimeS,
	)
	if err != nil {
		return nil, fmt.Errorf("update engine state: %w", err)
	}
	return s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Dashboard
// ─────────────────────────────────────────────────────────────────────────────

func (p *Postgres) DashboardSnapshot(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	_ = p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scrape_jobs WHERE created_at >= date_trunc('day', NOW())`,
	).Scan(&d.JobsToday)

	_ = p.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(success_rate), 0) FROM scrape_jobs
		WHERE created_at >= date_trunc('day', NOW()) AND status IN ('completed','failed')`,
	).Scan(&d.SuccessRate)

	_ = p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_boards WHERE is_active = TRUE`).Scan(&d.ActiveBoards)

	rows, err := p.db.QueryContext(ctx, scrapeJobSelect+`
		WHERE status = $1 ORDER BY created_at DESC LIMIT 10`, model.JobFailed)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var j model.ScrapeJob
			if rows.Scan(
				&j.ID, &j.JobBoardID, &j.ScheduleID, &j.Mode, &j.Status, &j.Priority, &j.MaxPages,
				&j.PageCursor, &j.ConsecutiveEmptyPages, &j.StartedAt, &j.CompletedAt,
				&j.DurationS, &j.ItemsFound, &j.ItemsCreated, &j.ItemsUpdated, &j.ItemsSkipped,
				&j.SuccessRate, &j.ErrorMessage, &j.ErrorDetails, &j.RetryCount, &j.WorkerID,
				&j.ConfigSnapshot, &j.CreatedAt, &j.UpdatedAt,
			) == nil {
				d.RecentFailures = append(d.RecentFailures, j)
			}
		}
	}
	return d, nil
}

// Transaction runs fn with a Store bound to a single *sql.Tx.
func (p *Postgres) Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	db, ok := p.db.(*sql.DB)
	if !ok {
		// already inside a transaction: run fn against the same Store
		// rather than nesting, matching database/sql's no-nested-tx rule.
		return fn(ctx, p)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &Postgres{db: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func normalizePage(p Page) (limit, skip int) {
	limit = p.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	skip = p.Skip
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
