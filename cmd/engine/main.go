// Command engine runs the AutoScraper engine: the Control API, the
// cron-driven Scheduler, and the worker pool that executes ScrapeJobs,
// replacing cmd/server/main.go's single-shot daily-scrape service.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	_ "github.com/lib/pq"

	"github.com/learnbot/autoscraper/internal/auth"
	"github.com/learnbot/autoscraper/internal/config"
	"github.com/learnbot/autoscraper/internal/dedup"
	"github.com/learnbot/autoscraper/internal/engine"
	"github.com/learnbot/autoscraper/internal/executor"
	"github.com/learnbot/autoscraper/internal/fetcher"
	"github.com/learnbot/autoscraper/internal/httpapi"
	"github.com/learnbot/autoscraper/internal/logbuf"
	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/normalize"
	"github.com/learnbot/autoscraper/internal/normalizer"
	"github.com/learnbot/autoscraper/internal/pool"
	"github.com/learnbot/autoscraper/internal/ratelimit"
	"github.com/learnbot/autoscraper/internal/robots"
	"github.com/learnbot/autoscraper/internal/scheduler"
	"github.com/learnbot/autoscraper/internal/store"
	"github.com/learnbot/autoscraper/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[autoscraper] ", log.LstdFlags|log.Lshortfile)

	db, err := sql.Open("postgres", cfg.StoreConnectionString)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Printf("warning: store not reachable at startup: %v (continuing; readiness probe will report it)", err)
	}

	st := store.NewPostgres(db)

	if cfg.BoardsSeedFile != "" {
		if err := seedBoards(context.Background(), st, cfg.BoardsSeedFile, logger); err != nil {
			logger.Printf("warning: board seeding failed: %v", err)
		}
	}

	httpFetcher := fetcher.New(fetcher.DefaultUserAgent)
	limiter := ratelimit.New(int64(cfg.MaxConcurrentJobs))
	deduper := dedup.New()
	exec := executor.New(httpFetcher, limiter, deduper, st)
	exec.Robots = robots.New(httpFetcher, fetcher.DefaultUserAgent)

	logs := logbuf.New(10_000)

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)
	// workerPool is wired into engineState below, after it's constructed.
	var workerPool *pool.Pool
	engineState := engine.New(st, nil, metrics, runtimeSampler{})
	engineState.HeartbeatInterval = cfg.HeartbeatInterval()

	handler := func(ctx context.Context, jobID uuid.UUID) error {
		w := worker.New("worker-"+uuid.New().String(), st, exec)
		w.Engine = engineState
		w.Logs = logs
		return w.Run(ctx, jobID)
	}
	poolCfg := pool.DefaultConfig()
	poolCfg.Workers = cfg.MaxConcurrentJobs
	workerPool = pool.New(poolCfg, handler)
	engineState.Pool = workerPool

	sched := scheduler.New(st, workerPool, cfg.SchedulerTick())

	normalizerRunner := normalizer.New(st, normalize.NewRuleBased(nil), time.Second)
	normalizerRunner.Logs = logs

	svc := &httpapi.Services{
		Store:     st,
		Pool:      workerPool,
		Scheduler: sched,
		Engine:    engineState,
		Metrics:   metrics,
		Logs:      logs,
		Auth:      auth.NewConfig(cfg.AuthSecret),
	}
	router := httpapi.NewRouter(svc)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerPool.Start(ctx)
	go sched.Run(ctx)
	go engineState.Run(ctx)
	go normalizerRunner.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("starting server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	logger.Println("shutting down...")
	cancel()
	workerPool.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("forced shutdown: %v", err)
	}
	logger.Println("stopped")
}

// runtimeSampler reports process memory via runtime.MemStats and always
// reports 0 for CPU percent, standing in for a proper process-level
// sampler (e.g. gopsutil) the corpus does not vendor.
type runtimeSampler struct{}

func (runtimeSampler) Sample() (cpuPercent, memoryMB float64) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return 0, float64(mem.Alloc) / (1024 * 1024)
}

// seedBoards creates any job board named in a YAML seed file that doesn't
// already exist, letting operators bootstrap an engine without hitting the
// Control API for bulk setup.
func seedBoards(ctx context.Context, st store.Store, path string, logger *log.Logger) error {
	file, err := config.LoadBoardsFile(path)
	if err != nil {
		return err
	}
	for _, b := range file.Boards {
		if _, err := st.GetJobBoardByName(ctx, b.Name); err == nil {
			continue
		}
		board := &model.JobBoard{
			Name:            b.Name,
			Type:            model.BoardType(b.Type),
			BaseURL:         b.BaseURL,
			RSSURL:          sql.NullString{String: b.RSSURL, Valid: b.RSSURL != ""},
			Selectors:       b.Selectors,
			RateLimitDelayS: b.RateLimitDelayS,
			MaxPages:        b.MaxPages,
			IsActive:        true,
		}
		if err := st.CreateJobBoard(ctx, board); err != nil {
			logger.Printf("warning: seed board %q: %v", b.Name, err)
			continue
		}
		if b.CronExpression != "" {
			tz := b.Timezone
			if tz == "" {
				tz = "UTC"
			}
			sc := &model.ScheduleConfig{
				JobBoardID:     board.ID,
				Name:           b.Name + "-default",
				CronExpression: b.CronExpression,
				Timezone:       tz,
				IsEnabled:      true,
			}
			if err := st.CreateSchedule(ctx, sc); err != nil {
				logger.Printf("warning: seed schedule for board %q: %v", b.Name, err)
			}
		}
		logger.Printf("seeded job board %q", b.Name)
	}
	return nil
}
