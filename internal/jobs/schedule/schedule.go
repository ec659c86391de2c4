package schedule

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	types "github.com/yungbote/vocabdrill-backend/internal/domain"
	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/ctxutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
	"github.com/yungbote/vocabdrill-backend/internal/services"
)

type Enqueuer interface {
	EnqueueDrillJob(dbc dbctx.Context, req services.DrillJobRequest) (*types.JobRun, bool, error)
}

type Inventory interface {
	IsFull(ctx context.Context, userID uuid.UUID, mode learning.Mode) (bool, error)
}

type Config struct {
	Interval     time.Duration
	ActiveWindow time.Duration
	MaxUsers     int
	Modes        []learning.Mode
}

func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Minute,
		ActiveWindow: 30 * 24 * time.Hour,
		MaxUsers:     1000,
		Modes:        learning.AllModes(),
	}
}

func ConfigFromEnv(log *logger.Logger) Config {
	cfg := DefaultConfig()
	cfg.Interval = envutil.Duration("SCHEDULE_INTERVAL", cfg.Interval)
	cfg.ActiveWindow = envutil.Duration("SCHEDULE_ACTIVE_WINDOW", cfg.ActiveWindow)
	cfg.MaxUsers = envutil.Int("SCHEDULE_MAX_USERS", cfg.MaxUsers)
	if names := envutil.List("SCHEDULE_MODES", nil); len(names) > 0 {
		modes := make([]learning.Mode, 0, len(names))
		for _, n := range names {
			m, err := learning.ParseMode(n)
			if err != nil {
				log.Warn("Ignoring unknown SCHEDULE_MODES entry", "mode", n)
				continue
			}
			modes = append(modes, m)
		}
		cfg.Modes = modes
	}
	return cfg
}

// Scheduler periodically queues a whole-mode fill for every recently active
// learner whose inventory has room.
type Scheduler struct {
	log      *logger.Logger
	progress repos.ProgressRepo
	jobs     Enqueuer
	inv      Inventory
	cfg      Config
	cron     *gocron.Scheduler
	now      func() time.Time
}

func New(baseLog *logger.Logger, progress repos.ProgressRepo, jobs Enqueuer, inv Inventory, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Scheduler{
		log:      baseLog.With("component", "DrillScheduler"),
		progress: progress,
		jobs:     jobs,
		inv:      inv,
		cfg:      cfg,
		cron:     gocron.NewScheduler(time.UTC),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs Tick immediately and then every Interval until ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.SingletonModeAll()
	if _, err := s.cron.Every(s.cfg.Interval).Do(func() {
		if _, err := s.Tick(ctx); err != nil {
			s.log.Warn("Scheduled drill tick failed", "error", err)
		}
	}); err != nil {
		return err
	}
	s.cron.StartAsync()
	s.log.Info("Drill scheduler started", "interval", s.cfg.Interval.String(), "modes", len(s.cfg.Modes))
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

// Tick queues one scheduled job per (active user, mode) and returns how many
// new jobs were created. Pending jobs are reused, not duplicated.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{TraceID: uuid.NewString()})
	users, err := s.progress.ListActiveUsers(dbctx.Context{Ctx: ctx}, s.now().Add(-s.cfg.ActiveWindow), s.cfg.MaxUsers)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, userID := range users {
		for _, mode := range s.cfg.Modes {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			if s.inv != nil {
				full, err := s.inv.IsFull(ctx, userID, mode)
				if err != nil {
					s.log.Warn("Inventory check failed", "user_id", userID.String(), "mode", mode.String(), "error", err)
					continue
				}
				if full {
					continue
				}
			}
			_, ok, err := s.jobs.EnqueueDrillJob(dbctx.Context{Ctx: ctx}, services.DrillJobRequest{UserID: userID, Mode: mode})
			if err != nil {
				s.log.Warn("Scheduled enqueue failed", "user_id", userID.String(), "mode", mode.String(), "error", err)
				continue
			}
			if ok {
				created++
			}
		}
	}
	s.log.Debug("Scheduled drill tick", "users", len(users), "created", created)
	return created, nil
}
