package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learnbot/autoscraper/internal/auth"
	"github.com/learnbot/autoscraper/internal/engine"
	"github.com/learnbot/autoscraper/internal/logbuf"
	"github.com/learnbot/autoscraper/internal/pool"
	"github.com/learnbot/autoscraper/internal/scheduler"
	"github.com/learnbot/autoscraper/internal/store"
)

// Services bundles every dependency the Control API's handlers call into,
// mirroring the teacher's admin.Handler constructor pattern but for the
// whole HTTP surface rather than a single admin resource.
type Services struct {
	Store     store.Store
	Pool      *pool.Pool
	Scheduler *scheduler.Scheduler
	Engine    *engine.State
	Metrics   *engine.Metrics
	Logs      *logbuf.Ring
	Auth      auth.Config
}

// NewRouter builds the full chi.Mux, with bearer-auth required on every
// route except the three health probes and /system/metrics.
func NewRouter(svc *Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLoggerWithMetrics(svc.Logs, svc.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/health", healthHandler)
	r.Get("/health/live", livenessHandler)
	r.Get("/health/ready", readinessHandler(svc))
	r.Handle("/system/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(svc.Auth))

		r.Route("/job-boards", func(r chi.Router) {
			r.Get("/", listJobBoards(svc))
			r.Post("/", createJobBoard(svc))
			r.Get("/{id}", getJobBoard(svc))
			r.Patch("/{id}", updateJobBoard(svc))
			r.Delete("/{id}", deactivateJobBoard(svc))
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", listSchedules(svc))
			r.Post("/", createSchedule(svc))
			r.Get("/{id}", getSchedule(svc))
			r.Patch("/{id}", updateSchedule(svc))
			r.Delete("/{id}", deleteSchedule(svc))
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", listJobs(svc))
			r.Post("/", startJob(svc))
			r.Get("/{id}", getJob(svc))
			r.Post("/{id}/pause", pauseJob(svc))
			r.Post("/{id}/resume", resumeJob(svc))
			r.Post("/{id}/cancel", cancelJob(svc))
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", listRuns(svc))
			r.Get("/{id}", getRun(svc))
		})

		r.Get("/dashboard", dashboard(svc))

		r.Route("/engine", func(r chi.Router) {
			r.Get("/state", engineState(svc))
			r.Post("/heartbeat", engineHeartbeat(svc))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", getSettings(svc))
			r.Put("/", updateSettings(svc))
			r.Post("/reset", resetSettings(svc))
			r.Post("/test", testSettings(svc))
		})

		r.Get("/logs", getLogs(svc))
	})

	return r
}
