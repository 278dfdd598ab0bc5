package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/connectors/mealdb"
	"github.com/foodplanner/backend/internal/matching"
	"go.uber.org/zap"
)

const (
	mealImportBatchSize  = 25
	maxFailedMealsListed = 10

	DefaultMatchConfidence = 0.6
	DefaultMatchTopK       = 3
)

// MealSource lists recipes from TheMealDB
type MealSource interface {
	Categories(ctx context.Context) ([]mealdb.Category, error)
	Areas(ctx context.Context) ([]string, error)
	AllMeals(ctx context.Context) ([]mealdb.Meal, error)
}

// RecipeImporter stores imported recipes
type RecipeImporter interface {
	ImportCategory(ctx context.Context, c mealdb.Category) error
	ImportArea(ctx context.Context, name string) error
	ImportMealsBatch(ctx context.Context, meals []mealdb.Meal, batchSize int) (*catalog.ImportResult, error)
	Stats(ctx context.Context) (*catalog.Stats, error)
}

// PricingSyncer refreshes the product discount projection
type PricingSyncer interface {
	SyncProductPricing(ctx context.Context, day time.Time) (*catalog.PricingResult, error)
}

// MatchComputer matches unmatched ingredients to products
type MatchComputer interface {
	ComputeAll(ctx context.Context, topK int, minConfidence float64) (*matching.ComputeResult, error)
}

// MealImportResult summarises a TheMealDB import
type MealImportResult struct {
	Status             string         `json:"status"`
	CategoriesImported int            `json:"categories_imported"`
	AreasImported      int            `json:"areas_imported"`
	RecipesImported    int            `json:"recipes_imported"`
	RecipesFailed      int            `json:"recipes_failed"`
	IngredientsCreated int64          `json:"ingredients_created"`
	Errors             []string       `json:"errors"`
	FinalStats         *catalog.Stats `json:"final_stats,omitempty"`
}

// ImportMealDB imports categories, areas and every A-Z recipe. Each step
// records its own error; the result is partial when any step failed and
// failed when nothing could be fetched.
func ImportMealDB(ctx context.Context, src MealSource, dst RecipeImporter, logger *zap.Logger) *MealImportResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &MealImportResult{Errors: []string{}}
	fetchFailures := 0

	logger.Info("importing categories from mealdb")
	if cats, err := src.Categories(ctx); err != nil {
		logger.Error("failed to import categories", zap.Error(err))
		res.Errors = append(res.Errors, "Categories: "+err.Error())
		fetchFailures++
	} else {
		for _, c := range cats {
			if err := dst.ImportCategory(ctx, c); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("Category %s: %v", c.Name, err))
				continue
			}
			res.CategoriesImported++
		}
	}

	logger.Info("importing areas from mealdb")
	if areas, err := src.Areas(ctx); err != nil {
		logger.Error("failed to import areas", zap.Error(err))
		res.Errors = append(res.Errors, "Areas: "+err.Error())
		fetchFailures++
	} else {
		for _, a := range areas {
			if err := dst.ImportArea(ctx, a); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("Area %s: %v", a, err))
				continue
			}
			res.AreasImported++
		}
	}

	logger.Info("fetching all recipes from mealdb")
	if meals, err := src.AllMeals(ctx); err != nil {
		logger.Error("failed to fetch recipes", zap.Error(err))
		res.Errors = append(res.Errors, "Recipes: "+err.Error())
		fetchFailures++
	} else {
		imported, err := dst.ImportMealsBatch(ctx, meals, mealImportBatchSize)
		if imported != nil {
			res.RecipesImported = imported.TotalImported
			res.RecipesFailed = imported.TotalFailed
			for _, name := range imported.FailedMeals[:min(len(imported.FailedMeals), maxFailedMealsListed)] {
				res.Errors = append(res.Errors, "Recipe: "+name)
			}
		}
		if err != nil {
			res.Errors = append(res.Errors, "Recipes: "+err.Error())
		}
		logger.Info("recipe import complete",
			zap.Int("imported", res.RecipesImported), zap.Int("failed", res.RecipesFailed))
	}

	if stats, err := dst.Stats(ctx); err != nil {
		logger.Warn("failed to get final stats", zap.Error(err))
	} else {
		res.FinalStats = stats
		res.IngredientsCreated = stats.Ingredients
	}

	switch {
	case fetchFailures == 3:
		res.Status = "failed"
	case len(res.Errors) > 0:
		res.Status = "partial"
	default:
		res.Status = "completed"
	}
	return res
}

// RefreshResult combines the steps of a full catalog refresh
type RefreshResult struct {
	Status      string                  `json:"status"`
	MealDB      *MealImportResult       `json:"mealdb_ingestion"`
	ProductSync *catalog.PricingResult  `json:"product_sync"`
	Matching    *matching.ComputeResult `json:"ingredient_matching"`
	Errors      []string                `json:"errors,omitempty"`
}

// FullRefresh imports recipes, syncs product pricing and computes matches.
func FullRefresh(ctx context.Context, src MealSource, dst RecipeImporter, pricing PricingSyncer,
	matcher MatchComputer, day time.Time, logger *zap.Logger) *RefreshResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &RefreshResult{}

	logger.Info("refresh step 1: importing mealdb recipes")
	res.MealDB = ImportMealDB(ctx, src, dst, logger)

	logger.Info("refresh step 2: syncing product pricing")
	sync, err := pricing.SyncProductPricing(ctx, day)
	if err != nil {
		res.Errors = append(res.Errors, "product sync: "+err.Error())
		sync = &catalog.PricingResult{Status: "failed", Errors: []string{err.Error()}}
	}
	res.ProductSync = sync

	logger.Info("refresh step 3: computing ingredient matches")
	matches, err := matcher.ComputeAll(ctx, DefaultMatchTopK, DefaultMatchConfidence)
	if err != nil {
		res.Errors = append(res.Errors, "matching: "+err.Error())
	}
	res.Matching = matches

	matchFailed := err != nil || (matches != nil && matches.Errors > 0)
	switch {
	case res.MealDB.Status == "completed" && sync.Status == "completed" && !matchFailed:
		res.Status = "completed"
	case res.MealDB.Status == "failed" && sync.Status == "failed":
		res.Status = "failed"
	default:
		res.Status = "partial"
	}
	logger.Info("full refresh finished", zap.String("status", res.Status))
	return res
}
