package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/vocabdrill-backend/internal/data/db"
	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	apphttp "github.com/yungbote/vocabdrill-backend/internal/http"
	httpH "github.com/yungbote/vocabdrill-backend/internal/http/handlers"
	"github.com/yungbote/vocabdrill-backend/internal/observability"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
	"github.com/yungbote/vocabdrill-backend/internal/platform/redisx"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Redis    *goredis.Client
	Server   *apphttp.Server
	Cfg      Config
	Repos    repos.Repos
	Services Services

	dbService    *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New builds the full serving process: store, cache, providers, job
// runtime, scheduler, and HTTP surface. Nothing runs until Start.
func New(log *logger.Logger, cfg Config) (*App, error) {
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	dbService, err := openDB(log)
	if err != nil {
		return nil, err
	}
	theDB := dbService.DB()

	rdb, err := redisx.NewClient(log, redisx.ConfigFromEnv())
	if err != nil {
		_ = dbService.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	reposet := repos.New(theDB, log)
	serviceset, err := wireServices(theDB, rdb, log, cfg, reposet)
	if err != nil {
		_ = rdb.Close()
		_ = dbService.Close()
		return nil, err
	}

	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		HealthHandler:   httpH.NewHealthHandler(),
		ProgressHandler: httpH.NewProgressHandler(serviceset.Progress, serviceset.Selector),
		DrillHandler:    httpH.NewDrillHandler(serviceset.Drills, serviceset.Jobs),
		JobHandler:      httpH.NewJobHandler(serviceset.Jobs),
		InspectHandler:  httpH.NewInspectHandler(serviceset.Bus),
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Redis:        rdb,
		Server:       server,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		dbService:    dbService,
		otelShutdown: otelShutdown,
	}, nil
}

func openDB(log *logger.Logger) (*db.Service, error) {
	dbService, err := db.NewService(db.ConfigFromEnv(), log)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		_ = dbService.Close()
		return nil, fmt.Errorf("db automigrate: %w", err)
	}
	return dbService, nil
}

// Start launches the stream publisher, the worker pool and the scheduler.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Services.Publisher.Start(ctx)
	if a.Cfg.WorkerEnabled {
		a.Services.Worker.Start(ctx)
	}
	if a.Cfg.ScheduleEnabled {
		if err := a.Services.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.Addr)
	return a.Server.Run(a.Cfg.Addr)
}

// Close stops intake first, then background work, then the connections
// that background work depends on.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown failed", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
		if a.Cfg.WorkerEnabled {
			a.Services.Worker.Wait()
		}
	}
	a.Services.Publisher.Close()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}

// Migrate opens the configured store, applies the schema and closes it.
func Migrate(log *logger.Logger) error {
	dbService, err := openDB(log)
	if err != nil {
		return err
	}
	log.Info("Schema migrated")
	return dbService.Close()
}
