package main

import (
	"context"
	"time"

	"github.com/foodplanner/backend/internal/app"
	"github.com/foodplanner/backend/internal/ingest"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// ingest flags
	ingestStores []string
	ingestForce  bool

	// matching flags
	matchConfidence float64
	matchTopK       int

	// cleanup flags
	daysToKeep int

	// scrape flags
	scrapeCategories []string
	scrapeResume     string
	scrapeDryRun     bool

	// enqueue instead of running inline
	async bool
)

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestStores, "store", nil, "Store IDs to ingest (default: every selected store)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "Ingest even if the store already completed today")

	matchCmd.Flags().Float64Var(&matchConfidence, "min-confidence", tasks.DefaultMatchConfidence, "Minimum match confidence")
	matchCmd.Flags().IntVar(&matchTopK, "top-k", tasks.DefaultMatchTopK, "Matches stored per ingredient")

	cleanupCmd.Flags().IntVar(&daysToKeep, "days", 30, "Days of raw data to keep")

	scrapeCmd.Flags().StringSliceVar(&scrapeCategories, "category", nil, "Category slugs to scrape (default: all)")
	scrapeCmd.Flags().StringVar(&scrapeResume, "resume-from", "", "Task ID whose checkpoint to resume from")
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "Scrape without writing products")

	for _, c := range []*cobra.Command{ingestCmd, importCmd, syncCmd, matchCmd, refreshCmd, cleanupCmd, scrapeCmd} {
		c.Flags().BoolVar(&async, "async", false, "Enqueue the job for the worker instead of running it here")
		rootCmd.AddCommand(c)
	}
}

// job runs fn inline, or with --async enqueues taskType with payload.
func job(taskType string, payload func() any, fn func(ctx context.Context, a *app.App) (any, error)) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if async {
				id, err := a.Queue.Enqueue(ctx, taskType, payload())
				if err != nil {
					return err
				}
				return printJSON(map[string]string{"task_id": id, "status": tasks.StateQueued})
			}
			res, err := fn(ctx, a)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	}
}

func noPayload() any { return nil }

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape products and discounts from the selected stores",
	RunE: job(tasks.TypeDailyIngestion,
		func() any {
			return ingest.Options{StoreIDs: ingestStores, Force: ingestForce, TriggerType: ingest.TriggerManual}
		},
		func(ctx context.Context, a *app.App) (any, error) {
			return a.Ingest.RunDailyIngestion(ctx, ingest.Options{
				StoreIDs:    ingestStores,
				Force:       ingestForce,
				TriggerType: ingest.TriggerManual,
			})
		}),
}

var importCmd = &cobra.Command{
	Use:   "import-recipes",
	Short: "Import categories, areas and recipes from TheMealDB",
	RunE: job(tasks.TypeMealDBImport, noPayload, func(ctx context.Context, a *app.App) (any, error) {
		return tasks.ImportMealDB(ctx, a.MealDB, a.Catalog, a.Logger.Named("mealdb")), nil
	}),
}

var syncCmd = &cobra.Command{
	Use:   "sync-products",
	Short: "Recompute current product prices from active discounts",
	RunE: job(tasks.TypeProductSync, noPayload, func(ctx context.Context, a *app.App) (any, error) {
		return a.Catalog.SyncProductPricing(ctx, time.Now())
	}),
}

var matchCmd = &cobra.Command{
	Use:   "compute-matches",
	Short: "Match every recipe ingredient to store products",
	RunE: job(tasks.TypeComputeMatches,
		func() any { return tasks.MatchPayload{MinConfidence: matchConfidence, TopK: matchTopK} },
		func(ctx context.Context, a *app.App) (any, error) {
			return a.Matching.ComputeAll(ctx, matchTopK, matchConfidence)
		}),
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Import recipes, sync pricing and compute matches in one pass",
	RunE: job(tasks.TypeFullRefresh, noPayload, func(ctx context.Context, a *app.App) (any, error) {
		return tasks.FullRefresh(ctx, a.MealDB, a.Catalog, a.Catalog, a.Matching, time.Now(), a.Logger.Named("refresh")), nil
	}),
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete archived raw ingestion data older than --days",
	RunE: job(tasks.TypeCleanup,
		func() any { return tasks.CleanupPayload{DaysToKeep: daysToKeep} },
		func(ctx context.Context, a *app.App) (any, error) {
			return a.Archive.Cleanup(ctx, daysToKeep)
		}),
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the full REMA 1000 catalogue",
	RunE: job(tasks.TypeFullScrape,
		func() any {
			return tasks.ScrapeRequest{Categories: scrapeCategories, ResumeFrom: scrapeResume, DryRun: scrapeDryRun}
		},
		func(ctx context.Context, a *app.App) (any, error) {
			return a.Scrape.Run(ctx, uuid.NewString(), tasks.ScrapeRequest{
				Categories: scrapeCategories,
				ResumeFrom: scrapeResume,
				DryRun:     scrapeDryRun,
			})
		}),
}
