package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/jobs/pipeline/drill_generate"
	"github.com/yungbote/vocabdrill-backend/internal/jobs/runtime"
	"github.com/yungbote/vocabdrill-backend/internal/jobs/schedule"
	"github.com/yungbote/vocabdrill-backend/internal/jobs/worker"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/generation"
	"github.com/yungbote/vocabdrill-backend/internal/modules/drills/inventory"
	"github.com/yungbote/vocabdrill-backend/internal/modules/learning/progress"
	"github.com/yungbote/vocabdrill-backend/internal/modules/learning/selector"
	"github.com/yungbote/vocabdrill-backend/internal/modules/learning/srs"
	"github.com/yungbote/vocabdrill-backend/internal/platform/llm"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
	"github.com/yungbote/vocabdrill-backend/internal/realtime/bus"
	"github.com/yungbote/vocabdrill-backend/internal/services"
)

type Services struct {
	LLM        *llm.Client
	Inventory  *inventory.Cache
	Bus        bus.Bus
	Publisher  *bus.AsyncPublisher
	Selector   *selector.Selector
	Progress   *progress.Service
	Generation *generation.Pipeline
	Notifier   services.JobNotifier
	Jobs       services.JobService
	Drills     services.DrillService
	Registry   *runtime.Registry
	Worker     *worker.Worker
	Scheduler  *schedule.Scheduler
}

func newLLMClient(log *logger.Logger) (*llm.Client, error) {
	cfg, err := llm.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	providers, err := llm.BuildProviders(log, cfg.Providers)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(log, providers, cfg.CallTimeout)
}

func wireServices(db *gorm.DB, rdb goredis.UniversalClient, log *logger.Logger, cfg Config, r repos.Repos) (Services, error) {
	log.Info("Wiring services...")

	llmClient, err := newLLMClient(log)
	if err != nil {
		return Services{}, err
	}

	drillBus, err := bus.NewRedisBus(log, rdb, bus.RedisConfigFromEnv())
	if err != nil {
		return Services{}, fmt.Errorf("drill stream: %w", err)
	}
	publisher := bus.NewAsyncPublisher(log, drillBus, cfg.EventBuffer)

	inv := inventory.New(log, rdb, inventory.ConfigFromEnv())
	sel := selector.New(log, r.Progress, r.Vocab, selector.ConfigFromEnv())

	grader := srs.IdentityGrader
	if cfg.LatencyGrading {
		grader = srs.LatencyGrader(cfg.SlowAnswerMs, cfg.FastAnswerMs)
	}
	progressSvc := progress.NewService(progress.Deps{
		DB:       db,
		Log:      log,
		Progress: r.Progress,
		Vocab:    r.Vocab,
		Audit:    r.ReviewAudit,
		Params:   srs.DefaultParams(),
		Grader:   grader,
	})

	gen := generation.NewPipeline(log, sel, llmClient, inv, publisher, generation.ConfigFromEnv())

	notifier := services.NewJobNotifier(log)
	jobSvc := services.NewJobService(db, log, r.JobRun, notifier)
	drillSvc := services.NewDrillService(log, inv, r.Vocab, jobSvc)

	registry := runtime.NewRegistry()
	if err := registry.RegisterAll(
		drill_generate.New(log, gen),
		drill_generate.NewScheduled(log, gen),
	); err != nil {
		return Services{}, err
	}

	w := worker.NewWorker(db, log, r.JobRun, registry, notifier, worker.ConfigFromEnv())
	sched := schedule.New(log, r.Progress, jobSvc, inv, schedule.ConfigFromEnv(log))

	return Services{
		LLM:        llmClient,
		Inventory:  inv,
		Bus:        drillBus,
		Publisher:  publisher,
		Selector:   sel,
		Progress:   progressSvc,
		Generation: gen,
		Notifier:   notifier,
		Jobs:       jobSvc,
		Drills:     drillSvc,
		Registry:   registry,
		Worker:     w,
		Scheduler:  sched,
	}, nil
}
