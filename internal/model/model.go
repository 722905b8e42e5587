// Package model defines the core data types for the autoscraper engine.
package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// BoardType identifies how a job board is scraped.
type BoardType string

const (
	BoardRSS    BoardType = "rss"
	BoardHTML   BoardType = "html"
	BoardAPI    BoardType = "api"
	BoardHybrid BoardType = "hybrid"
)

// JobStatus is the lifecycle state of a ScrapeJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobMode describes what triggered a ScrapeJob.
type JobMode string

const (
	ModeManual    JobMode = "manual"
	ModeScheduled JobMode = "scheduled"
	ModeContinuous JobMode = "continuous"
)

// RunType identifies the extractor used for a ScrapeRun.
type RunType string

const (
	RunRSS  RunType = "rss"
	RunHTML RunType = "html"
	RunAPI  RunType = "api"
)

// EngineStatus is the overall health state of the engine.
type EngineStatus string

const (
	EngineIdle        EngineStatus = "idle"
	EngineRunning     EngineStatus = "running"
	EnginePaused      EngineStatus = "paused"
	EngineError       EngineStatus = "error"
	EngineMaintenance EngineStatus = "maintenance"
)

// EmploymentType canonicalizes the employment arrangement of a normalized job.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentTemporary  EmploymentType = "temporary"
	EmploymentInternship EmploymentType = "internship"
)

// ExperienceLevel is the seniority bucket inferred for a normalized job.
type ExperienceLevel string

const (
	LevelInternship ExperienceLevel = "internship"
	LevelEntry      ExperienceLevel = "entry"
	LevelMid        ExperienceLevel = "mid"
	LevelSenior     ExperienceLevel = "senior"
	LevelLead       ExperienceLevel = "lead"
	LevelExecutive  ExperienceLevel = "executive"
	LevelUnknown    ExperienceLevel = "unknown"
)

// NormalizationMethod records which backend produced a NormalizedJob.
type NormalizationMethod string

const (
	MethodRuleBased NormalizationMethod = "rule_based"
	MethodML        NormalizationMethod = "ml"
	MethodHybrid    NormalizationMethod = "hybrid"
)

// JobBoard is a configured, persistent source of job listings.
type JobBoard struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	Name             string            `db:"name" json:"name"`
	Description      sql.NullString    `db:"description" json:"description,omitempty"`
	Type             BoardType         `db:"type" json:"type"`
	BaseURL          string            `db:"base_url" json:"base_url"`
	RSSURL           sql.NullString    `db:"rss_url" json:"rss_url,omitempty"`
	Selectors        map[string]string `db:"-" json:"selectors,omitempty"`
	SelectorsRaw     []byte            `db:"selectors" json:"-"`
	Headers          map[string]string `db:"-" json:"headers,omitempty"`
	HeadersRaw       []byte            `db:"headers" json:"-"`
	RateLimitDelayS  int               `db:"rate_limit_delay_s" json:"rate_limit_delay_s"`
	MaxPages         int               `db:"max_pages" json:"max_pages"`
	RequestTimeoutS  int               `db:"request_timeout_s" json:"request_timeout_s"`
	RetryAttempts    int               `db:"retry_attempts" json:"retry_attempts"`
	QualityThreshold float64           `db:"quality_threshold" json:"quality_threshold"`
	IsActive         bool              `db:"is_active" json:"is_active"`
	TotalScrapes     int               `db:"total_scrapes" json:"total_scrapes"`
	SuccessfulScrapes int              `db:"successful_scrapes" json:"successful_scrapes"`
	FailedScrapes    int               `db:"failed_scrapes" json:"failed_scrapes"`
	LastScrapedAt    sql.NullTime      `db:"last_scraped_at" json:"last_scraped_at,omitempty"`
	SuccessRate      float64           `db:"success_rate" json:"success_rate"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// ScheduleConfig is a cron-driven firing rule attached to a JobBoard.
type ScheduleConfig struct {
	ID                      uuid.UUID      `db:"id" json:"id"`
	JobBoardID              uuid.UUID      `db:"job_board_id" json:"job_board_id"`
	Name                    string         `db:"name" json:"name"`
	Description             sql.NullString `db:"description" json:"description,omitempty"`
	CronExpression          string         `db:"cron_expression" json:"cron_expression"`
	Timezone                string         `db:"timezone" json:"timezone"`
	IsEnabled               bool           `db:"is_enabled" json:"is_enabled"`
	MaxConcurrentJobs       int            `db:"max_concurrent_jobs" json:"max_concurrent_jobs"`
	Priority                int            `db:"priority" json:"priority"`
	MaxRetries              int            `db:"max_retries" json:"max_retries"`
	RetryDelayMinutes       int            `db:"retry_delay_minutes" json:"retry_delay_minutes"`
	NextRunAt               sql.NullTime   `db:"next_run_at" json:"next_run_at,omitempty"`
	LastRunAt               sql.NullTime   `db:"last_run_at" json:"last_run_at,omitempty"`
	CreatedAt               time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at" json:"updated_at"`
}

// ScrapeJob is one execution attempt of a JobBoard.
type ScrapeJob struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	JobBoardID     uuid.UUID      `db:"job_board_id" json:"job_board_id"`
	ScheduleID     uuid.NullUUID  `db:"schedule_id" json:"schedule_id,omitempty"`
	Mode           JobMode        `db:"mode" json:"mode"`
	Status         JobStatus      `db:"status" json:"status"`
	Priority       int            `db:"priority" json:"priority"`
	MaxPages       sql.NullInt32  `db:"max_pages" json:"max_pages,omitempty"`
	PageCursor     int            `db:"page_cursor" json:"page_cursor"`
	ConsecutiveEmptyPages int     `db:"consecutive_empty_pages" json:"consecutive_empty_pages"`
	StartedAt      sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	DurationS      sql.NullInt32  `db:"duration_s" json:"duration_s,omitempty"`
	ItemsFound     int            `db:"items_found" json:"items_found"`
	ItemsCreated   int            `db:"items_created" json:"items_created"`
	ItemsUpdated   int            `db:"items_updated" json:"items_updated"`
	ItemsSkipped   int            `db:"items_skipped" json:"items_skipped"`
	SuccessRate    float64        `db:"success_rate" json:"success_rate"`
	ErrorMessage   sql.NullString `db:"error_message" json:"error_message,omitempty"`
	ErrorDetails   []byte         `db:"error_details" json:"error_details,omitempty"`
	RetryCount     int            `db:"retry_count" json:"retry_count"`
	WorkerID       sql.NullString `db:"worker_id" json:"worker_id,omitempty"`
	ConfigSnapshot []byte         `db:"config_snapshot" json:"config_snapshot,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the job's status admits no further transitions.
func (j *ScrapeJob) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// ScrapeRun is one page fetch inside a ScrapeJob.
type ScrapeRun struct {
	ID                 uuid.UUID      `db:"id" json:"id"`
	JobID              uuid.UUID      `db:"job_id" json:"job_id"`
	RunType            RunType        `db:"run_type" json:"run_type"`
	URL                string         `db:"url" json:"url"`
	PageNumber         int            `db:"page_number" json:"page_number"`
	StartedAt          sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs         sql.NullInt32  `db:"duration_ms" json:"duration_ms,omitempty"`
	HTTPStatusCode     sql.NullInt32  `db:"http_status_code" json:"http_status_code,omitempty"`
	ResponseSizeBytes  sql.NullInt32  `db:"response_size_bytes" json:"response_size_bytes,omitempty"`
	ItemsFound         int            `db:"items_found" json:"items_found"`
	ItemsProcessed     int            `db:"items_processed" json:"items_processed"`
	ItemsCreated       int            `db:"items_created" json:"items_created"`
	ItemsUpdated       int            `db:"items_updated" json:"items_updated"`
	ItemsSkipped       int            `db:"items_skipped" json:"items_skipped"`
	ErrorMessage       sql.NullString `db:"error_message" json:"error_message,omitempty"`
	ErrorDetails       []byte         `db:"error_details" json:"error_details,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// RawJob is an unnormalized extraction from one ScrapeRun.
type RawJob struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	RunID           uuid.UUID      `db:"run_id" json:"run_id"`
	JobBoardID      uuid.UUID      `db:"job_board_id" json:"job_board_id"`
	Title           string         `db:"title" json:"title"`
	Company         string         `db:"company" json:"company"`
	Location        string         `db:"location" json:"location"`
	Description     string         `db:"description" json:"description"`
	URL             string         `db:"url" json:"url"`
	SalaryText      string         `db:"salary_text" json:"salary_text,omitempty"`
	JobTypeText     string         `db:"job_type_text" json:"job_type_text,omitempty"`
	PostedDateText  string         `db:"posted_date_text" json:"posted_date_text,omitempty"`
	RawData         []byte         `db:"raw_data" json:"raw_data,omitempty"`
	HTMLSnapshot    sql.NullString `db:"html_snapshot" json:"html_snapshot,omitempty"`
	IsProcessed     bool           `db:"is_processed" json:"is_processed"`
	IsDuplicate     bool           `db:"is_duplicate" json:"is_duplicate"`
	Checksum        string         `db:"checksum" json:"checksum"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// NormalizedJob is the cleaned, scored record derived from a RawJob.
type NormalizedJob struct {
	ID                       uuid.UUID            `db:"id" json:"id"`
	RawJobID                 uuid.UUID            `db:"raw_job_id" json:"raw_job_id"`
	Title                    string               `db:"title" json:"title"`
	Company                  string               `db:"company" json:"company"`
	Location                 string                `db:"location" json:"location"`
	Description              string               `db:"description" json:"description"`
	SalaryMin                sql.NullInt32        `db:"salary_min" json:"salary_min,omitempty"`
	SalaryMax                sql.NullInt32        `db:"salary_max" json:"salary_max,omitempty"`
	SalaryCurrency           string               `db:"salary_currency" json:"salary_currency"`
	SalaryPeriod             string               `db:"salary_period" json:"salary_period,omitempty"`
	JobType                  EmploymentType       `db:"job_type" json:"job_type"`
	ExperienceLevel          ExperienceLevel      `db:"experience_level" json:"experience_level"`
	RemoteAllowed            bool                 `db:"remote_allowed" json:"remote_allowed"`
	City                     sql.NullString       `db:"city" json:"city,omitempty"`
	State                    sql.NullString       `db:"state" json:"state,omitempty"`
	Country                  sql.NullString       `db:"country" json:"country,omitempty"`
	PostedDate               sql.NullTime         `db:"posted_date" json:"posted_date,omitempty"`
	ApplicationDeadline      sql.NullTime         `db:"application_deadline" json:"application_deadline,omitempty"`
	Skills                   pq.StringArray       `db:"skills" json:"skills,omitempty"`
	EducationRequired        sql.NullString       `db:"education_required" json:"education_required,omitempty"`
	NormalizationConfidence  float64              `db:"normalization_confidence" json:"normalization_confidence"`
	NormalizationMethod      NormalizationMethod  `db:"normalization_method" json:"normalization_method"`
	QualityScore             float64              `db:"quality_score" json:"quality_score"`
	IsPublished              bool                 `db:"is_published" json:"is_published"`
	PublishedAt              sql.NullTime         `db:"published_at" json:"published_at,omitempty"`
	JobPostID                uuid.NullUUID        `db:"job_post_id" json:"job_post_id,omitempty"`
	CreatedAt                time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time            `db:"updated_at" json:"updated_at"`
}

// EngineState is the singleton liveness/metrics snapshot for the engine.
type EngineState struct {
	ID                 int          `db:"id" json:"id"`
	Status             EngineStatus `db:"status" json:"status"`
	LastHeartbeat       time.Time    `db:"last_heartbeat" json:"last_heartbeat"`
	ActiveJobsCount     int          `db:"active_jobs_count" json:"active_jobs_count"`
	QueuedJobsCount     int          `db:"queued_jobs_count" json:"queued_jobs_count"`
	TotalJobsProcessed  int          `db:"total_jobs_processed" json:"total_jobs_processed"`
	TotalJobsToday      int          `db:"total_jobs_today" json:"total_jobs_today"`
	SuccessRate         float64      `db:"success_rate" json:"success_rate"`
	CPUUsagePercent     float64      `db:"cpu_usage_percent" json:"cpu_usage_percent"`
	MemoryUsageMB       float64      `db:"memory_usage_mb" json:"memory_usage_mb"`
	MaxConcurrentJobs   int          `db:"max_concurrent_jobs" json:"max_concurrent_jobs"`
	MaintenanceMode     bool         `db:"maintenance_mode" json:"maintenance_mode"`
	LastError           sql.NullString `db:"last_error" json:"last_error,omitempty"`
	LastErrorAt         sql.NullTime `db:"last_error_at" json:"last_error_at,omitempty"`
	ConsecutiveErrors   int          `db:"consecutive_errors" json:"consecutive_errors"`
	UptimeS             int64        `db:"uptime_s" json:"uptime_s"`
	Version             string       `db:"version" json:"version"`
	DayBoundary         time.Time    `db:"day_boundary" json:"-"`
}

// ExtractedRecord is the intermediate representation an extractor produces
// before dedup and persistence, analogous to the teacher's ScrapedJob.
type ExtractedRecord struct {
	ExternalID     string
	Title          string
	Company        string
	Location       string
	Description    string
	URL            string
	SalaryText     string
	JobTypeText    string
	PostedDateText string
	RawData        map[string]interface{}
}

// ScrapeStats accumulates per-run counters while an extractor is running.
type ScrapeStats struct {
	Found, Created, Updated, Skipped int
}
