// Package engine implements Engine State (C10): a CAS-updated heartbeat
// document plus the Prometheus counters/histograms/gauges the Control API
// exposes at /system/metrics, grounded on
// original_source/autoscraper-service/app/utils/metrics.py's
// AutoScraperMetrics singleton, reimplemented as an explicitly-wired
// Services-style component rather than a global (spec.md §9).
package engine

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/pool"
	"github.com/learnbot/autoscraper/internal/store"
)

// Metrics holds every Prometheus collector the engine registers, grounded
// on metrics.py's Counter/Histogram/Gauge set.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	ScrapeJobsTotal     *prometheus.CounterVec
	ScrapeJobDuration    *prometheus.HistogramVec
	ActiveJobsGauge     prometheus.Gauge
	QueuedJobsGauge     prometheus.Gauge
	CPUUsageGauge       prometheus.Gauge
	MemoryUsageGauge    prometheus.Gauge
}

// NewMetrics registers every collector against registry (use
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry across test runs).
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscraper_http_requests_total",
			Help: "Total HTTP requests served by the Control API.",
		}, []string{"method", "path", "status"}),
		ScrapeJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscraper_scrape_jobs_total",
			Help: "Total scrape jobs completed, by board and terminal status.",
		}, []string{"board", "status"}),
		ScrapeJobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoscraper_scrape_job_duration_seconds",
			Help:    "Scrape job duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"board"}),
		ActiveJobsGauge:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "autoscraper_active_jobs", Help: "Currently running scrape jobs."}),
		QueuedJobsGauge:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "autoscraper_queued_jobs", Help: "Scrape jobs waiting in the pool queue."}),
		CPUUsageGauge:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "autoscraper_cpu_usage_percent", Help: "Process CPU usage percent."}),
		MemoryUsageGauge: prometheus.NewGauge(prometheus.GaugeOpts{Name: "autoscraper_memory_usage_mb", Help: "Process resident memory in MB."}),
	}
	registry.MustRegister(
		m.HTTPRequestsTotal, m.ScrapeJobsTotal, m.ScrapeJobDuration,
		m.ActiveJobsGauge, m.QueuedJobsGauge, m.CPUUsageGauge, m.MemoryUsageGauge,
	)
	return m
}

// State owns the heartbeat loop that refreshes EngineState and its
// Prometheus gauges.
type State struct {
	Store             store.Store
	Pool              *pool.Pool
	Metrics           *Metrics
	HeartbeatInterval time.Duration
	Sampler           ResourceSampler
}

// ResourceSampler reports process resource usage; production wires
// runtime.MemStats-derived sampling, tests wire a fixed stub.
type ResourceSampler interface {
	Sample() (cpuPercent, memoryMB float64)
}

// New builds a State with the spec's 10-second default heartbeat interval.
func New(s store.Store, p *pool.Pool, m *Metrics, sampler ResourceSampler) *State {
	return &State{Store: s, Pool: p, Metrics: m, HeartbeatInterval: 10 * time.Second, Sampler: sampler}
}

// Run blocks, heartbeating until ctx is cancelled.
func (st *State) Run(ctx context.Context) {
	ticker := time.NewTicker(st.HeartbeatInterval)
	defer ticker.Stop()
	st.Heartbeat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Heartbeat(ctx)
		}
	}
}

// Heartbeat recomputes and CAS-updates the EngineState singleton, matching
// spec.md §4.10's status-transition rules.
func (st *State) Heartbeat(ctx context.Context) {
	active, _ := st.Store.CountJobsByStatus(ctx, model.JobRunning)
	queued := 0
	if st.Pool != nil {
		queued = st.Pool.QueueDepth()
	}

	var cpuPct, memMB float64
	if st.Sampler != nil {
		cpuPct, memMB = st.Sampler.Sample()
	}

	_, _ = st.Store.UpdateEngineState(ctx, func(s *model.EngineState) error {
		now := time.Now()
		dayBoundary := s.DayBoundary
		if dayBoundary.IsZero() || now.Sub(dayBoundary) >= 24*time.Hour {
			s.TotalJobsToday = 0
			s.DayBoundary = now.Truncate(24 * time.Hour)
		}

		s.LastHeartbeat = now
		s.ActiveJobsCount = active
		s.QueuedJobsCount = queued
		s.CPUUsagePercent = cpuPct
		s.MemoryUsageMB = memMB

		switch {
		case s.MaintenanceMode:
			s.Status = model.EnginePaused
		case s.ConsecutiveErrors >= 5:
			s.Status = model.EngineError
		case active > 0:
			s.Status = model.EngineRunning
		default:
			s.Status = model.EngineIdle
		}
		return nil
	})

	if st.Metrics != nil {
		st.Metrics.ActiveJobsGauge.Set(float64(active))
		st.Metrics.QueuedJobsGauge.Set(float64(queued))
		st.Metrics.CPUUsageGauge.Set(cpuPct)
		st.Metrics.MemoryUsageGauge.Set(memMB)
	}
}

// RecordJobCompletion updates EngineState counters and the success-rate
// EMA (α=0.1, per spec.md §4.10) when a job reaches a terminal state, and
// increments ScrapeJobsTotal/ScrapeJobDuration.
func (st *State) RecordJobCompletion(ctx context.Context, boardName string, job model.ScrapeJob) {
	const alpha = 0.1

	_, _ = st.Store.UpdateEngineState(ctx, func(s *model.EngineState) error {
		s.TotalJobsProcessed++
		s.TotalJobsToday++
		if job.Status == model.JobCompleted {
			s.ConsecutiveErrors = 0
			s.SuccessRate = alpha*job.SuccessRate + (1-alpha)*s.SuccessRate
		} else if job.Status == model.JobFailed {
			s.ConsecutiveErrors++
			s.SuccessRate = alpha*0 + (1-alpha)*s.SuccessRate
			s.LastError = job.ErrorMessage
			s.LastErrorAt = job.CompletedAt
		}
		return nil
	})

	if st.Metrics == nil {
		return
	}
	st.Metrics.ScrapeJobsTotal.WithLabelValues(boardName, string(job.Status)).Inc()
	if job.DurationS.Valid {
		st.Metrics.ScrapeJobDuration.WithLabelValues(boardName).Observe(float64(job.DurationS.Int32))
	}
}
