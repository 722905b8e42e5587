// Package scheduler implements the Scheduler (C9): a 1Hz tick loop that
// evaluates cron-driven ScheduleConfigs and materializes ScrapeJobs,
// generalizing the teacher's StartDailySchedule fixed-2am-UTC firing into
// full cron evaluation via github.com/robfig/cron/v3, per spec.md §4.9.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/pool"
	"github.com/learnbot/autoscraper/internal/store"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron validates a cron expression (standard 5-field, plus
// @hourly/@daily/@weekly/@monthly aliases), used by the Control API to
// validate writes per spec.md §4.11.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// Scheduler ticks at TickInterval, dispatching due schedules into the
// Pool as PENDING ScrapeJobs.
type Scheduler struct {
	Store        store.Store
	Pool         *pool.Pool
	TickInterval time.Duration

	lastTick time.Time
}

// New builds a Scheduler; TickInterval defaults to 1 second per spec.md §4.9.
func New(s store.Store, p *pool.Pool, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Scheduler{Store: s, Pool: p, TickInterval: tickInterval}
}

// Run blocks, ticking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// LastTick reports when the scheduler last completed a tick, backing the
// /health/ready probe's "scheduler ticked within 5s" check.
func (s *Scheduler) LastTick() time.Time { return s.lastTick }

func (s *Scheduler) tick(ctx context.Context) {
	s.lastTick = time.Now()

	due, err := s.Store.ListDueSchedules(ctx, s.lastTick)
	if err != nil {
		return // transient store error; next tick retries
	}

	for _, sc := range due {
		sc := sc
		var createdJobID uuid.UUID
		var priority int
		_ = s.Store.Transaction(ctx, func(ctx context.Context, tx store.Store) error {
			id, p, err := s.fireSchedule(ctx, tx, sc)
			createdJobID, priority = id, p
			return err
		})
		if createdJobID != uuid.Nil && s.Pool != nil {
			_ = s.Pool.Submit(ctx, createdJobID, priority)
		}
	}
}

// fireSchedule creates a PENDING ScrapeJob and advances next_run_at to the
// strictly-next firing, never replaying missed firings during downtime
// (the "fire once on recovery" policy spec.md §9 fixes). It returns the
// created job's id (uuid.Nil if the board is inactive and no job was
// created) so the caller can enqueue it into the pool only after the
// transaction commits.
func (s *Scheduler) fireSchedule(ctx context.Context, tx store.Store, sc model.ScheduleConfig) (uuid.UUID, int, error) {
	board, err := tx.GetJobBoard(ctx, sc.JobBoardID)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("scheduler: load board for schedule %s: %w", sc.ID, err)
	}
	if !board.IsActive {
		return uuid.Nil, 0, s.advance(ctx, tx, sc)
	}

	job := &model.ScrapeJob{
		JobBoardID: sc.JobBoardID,
		ScheduleID: uuid.NullUUID{UUID: sc.ID, Valid: true},
		Mode:       model.ModeScheduled,
		Status:     model.JobPending,
		Priority:   sc.Priority,
	}
	if err := tx.CreateScrapeJob(ctx, job); err != nil {
		return uuid.Nil, 0, fmt.Errorf("scheduler: create job: %w", err)
	}
	if err := s.advance(ctx, tx, sc); err != nil {
		return uuid.Nil, 0, err
	}
	return job.ID, sc.Priority, nil
}

// advance moves next_run_at to the cron expression's strictly-next firing
// after the schedule's current next_run_at, and stamps last_run_at.
func (s *Scheduler) advance(ctx context.Context, tx store.Store, sc model.ScheduleConfig) error {
	next, err := nextFiring(sc)
	if err != nil {
		return err
	}
	now := s.lastTick
	_, err = tx.UpdateSchedule(ctx, sc.ID, func(cfg *model.ScheduleConfig) error {
		cfg.NextRunAt = sql.NullTime{Time: next, Valid: true}
		cfg.LastRunAt = sql.NullTime{Time: now, Valid: true}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scheduler: advance schedule %s: %w", sc.ID, err)
	}
	return nil
}

// nextFiring steps forward from the schedule's current next_run_at (never
// from "now", spec.md §4.9's anti-drift rule, invariant 2 in §8) to the
// first firing strictly after the current time, evaluated in the
// schedule's IANA timezone, so firings missed during downtime are skipped.
func nextFiring(sc model.ScheduleConfig) (time.Time, error) {
	loc, err := time.LoadLocation(sc.Timezone)
	if err != nil {
		loc = time.UTC
	}
	sched, err := ParseCron(sc.CronExpression)
	if err != nil {
		return time.Time{}, err
	}
	from := time.Now().UTC()
	if sc.NextRunAt.Valid {
		from = sc.NextRunAt.Time
	}
	now := time.Now()
	next := sched.Next(from.In(loc))
	for !next.IsZero() && !next.After(now) {
		next = sched.Next(next)
	}
	return next.UTC(), nil
}
