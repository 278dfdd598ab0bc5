// Package app wires configuration into the services shared by the API
// server, the worker and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/foodplanner/backend/config"
	"github.com/foodplanner/backend/internal/archive"
	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/connectors/mealdb"
	"github.com/foodplanner/backend/internal/database"
	"github.com/foodplanner/backend/internal/ingest"
	"github.com/foodplanner/backend/internal/matching"
	"github.com/foodplanner/backend/internal/planner"
	"github.com/foodplanner/backend/internal/router"
	"github.com/foodplanner/backend/internal/scrapers"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const matcherCacheTTL = 10 * time.Minute

// App holds every long-lived dependency
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *database.DB
	Redis *redis.Client

	Archive  *archive.Archive
	Catalog  *catalog.Repository
	Matching *matching.Service
	Planner  *planner.Planner
	Ingest   *ingest.Service
	MealDB   *mealdb.Client
	Rema     *scrapers.Rema1000

	Queue   *tasks.Queue
	Tracker *tasks.Tracker
	Scrape  *tasks.ScrapeRunner

	Auth      *service.AuthService
	Stores    *service.StoreService
	MealPlans *service.MealPlanService
}

// New connects to PostgreSQL and Redis, migrates the schema and builds the services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	rdb, err := database.NewRedisClient(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := database.Migrate(ctx, db.DB, logger); err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s3cfg, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		// the archive still writes to the database without S3
		logger.Warn("raw archive S3 mirror disabled", zap.Error(err))
		s3cfg = nil
	}

	a := &App{Config: cfg, Logger: logger, DB: db, Redis: rdb}
	a.Archive = archive.New(db.DB, s3cfg, logger.Named("archive"))
	a.Catalog = catalog.NewRepository(db.DB, logger.Named("catalog"))
	// the worker computes matches in another process, so the cache must expire
	matcher := matching.NewMatcher(matching.NewDBSource(db.DB), logger.Named("matching"),
		matching.WithCacheTTL(matcherCacheTTL))
	a.Matching = matching.NewService(db.DB, matcher, logger.Named("matching"))
	a.Planner = planner.New(a.Catalog, logger.Named("planner"))
	a.Ingest = ingest.NewService(db.DB, rdb, scrapers.NewDefaultRegistry(cfg.Scraping, logger), a.Archive,
		a.Catalog, cfg.Ingestion, logger.Named("ingest"))
	a.MealDB = mealdb.NewClient(cfg.MealDBURL(), mealdb.WithLogger(logger.Named("mealdb")))
	a.Rema = scrapers.NewRema1000(cfg.Scraping, logger, nil)

	a.Queue = tasks.NewQueue(rdb)
	a.Tracker = tasks.NewTracker(rdb)
	a.Scrape = tasks.NewScrapeRunner(a.Tracker, a.Rema, a.Ingest, logger.Named("scrape"))

	a.Auth = service.NewAuthService(db.DB, cfg.JWTSecret)
	a.Stores = service.NewStoreService(db.DB, logger.Named("stores"))
	a.MealPlans = service.NewMealPlanService(db.DB, a.Planner, a.Catalog, logger.Named("meal_plans"))
	return a, nil
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	return router.SetupRouter(router.Deps{
		Auth:           a.Auth,
		Stores:         a.Stores,
		MealPlans:      a.MealPlans,
		Ingestion:      a.Ingest,
		Catalog:        a.Catalog,
		Matcher:        a.Matching.Matcher(),
		Queue:          a.Queue,
		ScrapeTracker:  a.Tracker,
		Scraper:        a.Rema,
		DB:             a.DB,
		Redis:          a.Redis,
		AllowedOrigins: a.Config.AllowedOrigins,
		Logger:         a.Logger.Named("http"),
	})
}

// TaskDeps are the dependencies task handlers run against.
func (a *App) TaskDeps() tasks.Deps {
	return tasks.Deps{
		Ingest:     a.Ingest,
		Archive:    a.Archive,
		MealDB:     a.MealDB,
		Recipes:    a.Catalog,
		Pricing:    a.Catalog,
		Matching:   a.Matching,
		Scrape:     a.Scrape,
		DaysToKeep: a.Config.Ingestion.DaysToKeep,
		Logger:     a.Logger.Named("tasks"),
	}
}

// Worker returns a queue consumer with every task handler registered.
func (a *App) Worker(opts ...tasks.WorkerOption) *tasks.Worker {
	w := tasks.NewWorker(a.Queue, a.Logger.Named("worker"), opts...)
	tasks.RegisterHandlers(w, a.TaskDeps())
	return w
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("failed to close database", zap.Error(err))
	}
}
