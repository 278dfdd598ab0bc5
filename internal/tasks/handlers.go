package tasks

import (
	"context"
	"time"

	"github.com/foodplanner/backend/internal/archive"
	"github.com/foodplanner/backend/internal/ingest"
	"go.uber.org/zap"
)

// Task types
const (
	TypeDailyIngestion = "ingestion.daily"
	TypeCleanup        = "ingestion.cleanup"
	TypeMealDBImport   = "catalog.mealdb_import"
	TypeProductSync    = "catalog.product_sync"
	TypeComputeMatches = "catalog.compute_matches"
	TypeFullRefresh    = "catalog.full_refresh"
	TypeFullScrape     = "scraping.rema1000_full"
)

// Retry policies per task type
var (
	ingestionRetry = RetryPolicy{MaxRetries: 3, InitialDelay: 5 * time.Minute, MaxDelay: time.Hour}
	mealDBRetry    = RetryPolicy{MaxRetries: 2, InitialDelay: 5 * time.Minute, MaxDelay: 30 * time.Minute}
	pricingRetry   = RetryPolicy{MaxRetries: 3, InitialDelay: 2 * time.Minute, MaxDelay: 10 * time.Minute}
	matchRetry     = RetryPolicy{MaxRetries: 2, InitialDelay: 2 * time.Minute, MaxDelay: 10 * time.Minute}
	refreshRetry   = RetryPolicy{MaxRetries: 1, InitialDelay: 5 * time.Minute, MaxDelay: 5 * time.Minute}
)

// CleanupPayload is the payload of TypeCleanup
type CleanupPayload struct {
	DaysToKeep int `json:"days_to_keep"`
}

// MatchPayload is the payload of TypeComputeMatches
type MatchPayload struct {
	MinConfidence float64 `json:"min_confidence"`
	TopK          int     `json:"top_k"`
}

// Deps are the services handlers run against. Handlers are only registered
// for the dependencies that are set.
type Deps struct {
	Ingest     *ingest.Service
	Archive    *archive.Archive
	MealDB     MealSource
	Recipes    RecipeImporter
	Pricing    PricingSyncer
	Matching   MatchComputer
	Scrape     *ScrapeRunner
	DaysToKeep int
	Now        func() time.Time
	Logger     *zap.Logger
}

// RegisterHandlers binds every available task type on w.
func RegisterHandlers(w *Worker, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	if d.Ingest != nil {
		w.HandleWithRetry(TypeDailyIngestion, func(ctx context.Context, t *Task) (any, error) {
			var opts ingest.Options
			if err := t.Decode(&opts); err != nil {
				return nil, err
			}
			opts.TaskID = t.ID
			opts.RetryCount = max(t.Attempt-1, 0)
			return d.Ingest.RunDailyIngestion(ctx, opts)
		}, ingestionRetry)
	}

	if d.Archive != nil {
		w.Handle(TypeCleanup, func(ctx context.Context, t *Task) (any, error) {
			p := CleanupPayload{DaysToKeep: d.DaysToKeep}
			if err := t.Decode(&p); err != nil {
				return nil, err
			}
			if p.DaysToKeep <= 0 {
				p.DaysToKeep = 30
			}
			return d.Archive.Cleanup(ctx, p.DaysToKeep)
		})
	}

	if d.MealDB != nil && d.Recipes != nil {
		w.HandleWithRetry(TypeMealDBImport, func(ctx context.Context, _ *Task) (any, error) {
			return ImportMealDB(ctx, d.MealDB, d.Recipes, d.Logger), nil
		}, mealDBRetry)
	}

	if d.Pricing != nil {
		w.HandleWithRetry(TypeProductSync, func(ctx context.Context, _ *Task) (any, error) {
			return d.Pricing.SyncProductPricing(ctx, d.Now())
		}, pricingRetry)
	}

	if d.Matching != nil {
		w.HandleWithRetry(TypeComputeMatches, func(ctx context.Context, t *Task) (any, error) {
			p := MatchPayload{MinConfidence: DefaultMatchConfidence, TopK: DefaultMatchTopK}
			if err := t.Decode(&p); err != nil {
				return nil, err
			}
			return d.Matching.ComputeAll(ctx, p.TopK, p.MinConfidence)
		}, matchRetry)
	}

	if d.MealDB != nil && d.Recipes != nil && d.Pricing != nil && d.Matching != nil {
		w.HandleWithRetry(TypeFullRefresh, func(ctx context.Context, _ *Task) (any, error) {
			return FullRefresh(ctx, d.MealDB, d.Recipes, d.Pricing, d.Matching, d.Now(), d.Logger), nil
		}, refreshRetry)
	}

	// a failed scrape resumes from its checkpoint through a new task instead
	if d.Scrape != nil {
		w.HandleWithRetry(TypeFullScrape, func(ctx context.Context, t *Task) (any, error) {
			var req ScrapeRequest
			if err := t.Decode(&req); err != nil {
				return nil, err
			}
			return d.Scrape.Run(ctx, t.ID, req)
		}, NoRetry)
	}
}
