package di

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/basketfolio/folio_service/internal/adapters/navprovider"
	"github.com/basketfolio/folio_service/internal/domain/repositories"
	basketservice "github.com/basketfolio/folio_service/internal/domain/services/basket"
	"github.com/basketfolio/folio_service/internal/domain/services/performance"
	"github.com/basketfolio/folio_service/internal/domain/services/snapshot"
	"github.com/basketfolio/folio_service/internal/infrastructure/cache"
	"github.com/basketfolio/folio_service/internal/infrastructure/config"
	infrarepos "github.com/basketfolio/folio_service/internal/infrastructure/repositories"
	"github.com/basketfolio/folio_service/internal/workers/recalc_scheduler"
	"github.com/basketfolio/folio_service/pkg/logger"
)

// Container wires the application's dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *sqlx.DB

	BasketRepo    repositories.BasketRepository
	SnapshotRepo  repositories.SnapshotRepository
	SnapshotCache repositories.SnapshotCache

	PriceProvider   repositories.PriceProvider
	Engine          *performance.Engine
	SnapshotManager *snapshot.Manager
	BasketService   *basketservice.Service
	Scheduler       *recalc_scheduler.Scheduler
}

// NewContainer builds the dependency graph. Redis is optional: when
// disabled or unreachable the manager falls back to postgres only.
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	basketRepo := infrarepos.NewBasketRepository(db, zapLog)
	snapshotRepo := infrarepos.NewSnapshotRepository(db, zapLog)

	var snapshotCache repositories.SnapshotCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewSnapshotCache(cfg.Redis, zapLog)
		if err != nil {
			log.Warn("redis unavailable, serving snapshots from postgres only", "error", err)
		} else {
			snapshotCache = redisCache
		}
	}

	provider := navprovider.NewClient(cfg.Provider, zapLog)

	engineCfg := performance.DefaultConfig()
	engineCfg.FetchTimeout = cfg.Engine.FetchTimeout()
	engineCfg.MatchToleranceDays = cfg.Engine.MatchToleranceDays
	engineCfg.LumpsumAmount = cfg.Engine.LumpsumAmount
	engineCfg.SIPMonthlyAmount = cfg.Engine.SIPMonthlyAmount
	engineCfg.Analyzer.WindowDays = cfg.Engine.RollingWindowDays
	engineCfg.Analyzer.MatchToleranceDays = cfg.Engine.MatchToleranceDays
	engineCfg.Analyzer.CoverageThreshold = cfg.Engine.CoverageThreshold
	engine := performance.NewEngine(provider, engineCfg, zapLog)

	manager := snapshot.NewManager(engine, basketRepo, snapshotRepo, snapshotCache, zapLog)
	basketSvc := basketservice.NewService(basketRepo, zapLog)

	schedCfg := recalc_scheduler.DefaultConfig()
	schedCfg.Schedule = cfg.Scheduler.Schedule
	schedCfg.Timezone = cfg.Scheduler.Timezone
	schedCfg.InterBasketDelay = time.Duration(cfg.Scheduler.InterBasketDelayMs) * time.Millisecond
	schedCfg.StartupDelay = time.Duration(cfg.Scheduler.StartupDelaySeconds) * time.Second
	schedCfg.StartupPassEnabled = cfg.Scheduler.StartupPassEnabled
	schedCfg.RunTimeout = time.Duration(cfg.Scheduler.RunTimeoutMinutes) * time.Minute

	scheduler, err := recalc_scheduler.NewScheduler(manager, basketRepo, schedCfg, zapLog)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:          cfg,
		Logger:          log,
		DB:              db,
		BasketRepo:      basketRepo,
		SnapshotRepo:    snapshotRepo,
		SnapshotCache:   snapshotCache,
		PriceProvider:   provider,
		Engine:          engine,
		SnapshotManager: manager,
		BasketService:   basketSvc,
		Scheduler:       scheduler,
	}, nil
}
