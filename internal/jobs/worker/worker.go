package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	types "github.com/yungbote/vocabdrill-backend/internal/domain"
	"github.com/yungbote/vocabdrill-backend/internal/jobs/runtime"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
	"github.com/yungbote/vocabdrill-backend/internal/services"
)

type Config struct {
	Concurrency   int
	RatePerMinute int
	PollInterval  time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	StaleRunning  time.Duration
	Heartbeat     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:   3,
		RatePerMinute: 10,
		PollInterval:  time.Second,
		MaxAttempts:   5,
		RetryDelay:    30 * time.Second,
		StaleRunning:  30 * time.Minute,
		Heartbeat:     30 * time.Second,
	}
}

func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Concurrency)
	cfg.RatePerMinute = envutil.Int("JOB_RATE_PER_MINUTE", cfg.RatePerMinute)
	cfg.PollInterval = envutil.Duration("WORKER_POLL_INTERVAL", cfg.PollInterval)
	cfg.MaxAttempts = envutil.Int("JOB_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.RetryDelay = envutil.Duration("JOB_RETRY_DELAY", cfg.RetryDelay)
	cfg.StaleRunning = envutil.Duration("JOB_STALE_RUNNING", cfg.StaleRunning)
	return cfg
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config
	limiter  *rate.Limiter
	wg       sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	// A non-positive rate disables throttling.
	limit := rate.Inf
	burst := 1
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
		burst = cfg.Concurrency
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool",
		"concurrency", w.cfg.Concurrency,
		"rate_per_minute", w.cfg.RatePerMinute,
		"job_types", w.registry.Types(),
	)
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx, i+1)
	}
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			for w.runOnce(ctx, workerID) {
				if ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// runOnce claims and executes at most one job. It reports whether a job was
// found, so the loop can drain a backlog without waiting for the next tick.
func (w *Worker) runOnce(ctx context.Context, workerID int) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type",
			"worker_id", workerID,
			"job_type", job.JobType,
			"job_id", job.ID,
		)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return true
	}

	// The claim already holds the row; a throttled job just keeps its
	// heartbeat fresh until the limiter lets it through.
	stopBeat := w.heartbeat(ctx, job)
	defer stopBeat()
	if err := w.limiter.Wait(ctx); err != nil {
		jc.Fail("throttle", err)
		return false
	}

	w.run(jc, h, workerID)
	return true
}

func (w *Worker) run(jc *runtime.Context, h runtime.Handler, workerID int) {
	job := jc.Job
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic",
				"worker_id", workerID,
				"job_id", job.ID,
				"job_type", job.JobType,
				"panic", r,
			)
			jc.Fail("panic", errFromRecover(r))
		}
	}()

	if runErr := h.Run(jc); runErr != nil {
		jc.Fail("run", runErr)
	}
	w.log.Debug("Job finished",
		"worker_id", workerID,
		"job_id", job.ID,
		"job_type", job.JobType,
		"status", job.Status,
		"elapsed", time.Since(start).String(),
	)
}

func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	if w.cfg.Heartbeat <= 0 {
		return func() {}
	}
	hctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: hctx}, job.ID); err != nil {
					w.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
