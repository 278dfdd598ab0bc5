package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/connectors/mealdb"
	"github.com/foodplanner/backend/internal/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMealSource struct {
	categories []mealdb.Category
	areas      []string
	meals      []mealdb.Meal
	err        error
	areaErr    error
}

func (f *fakeMealSource) Categories(context.Context) ([]mealdb.Category, error) {
	return f.categories, f.err
}

func (f *fakeMealSource) Areas(context.Context) ([]string, error) {
	if f.areaErr != nil {
		return nil, f.areaErr
	}
	return f.areas, f.err
}

func (f *fakeMealSource) AllMeals(context.Context) ([]mealdb.Meal, error) {
	return f.meals, f.err
}

type fakeImporter struct {
	categories []string
	areas      []string
	batchSize  int
	failed     []string
}

func (f *fakeImporter) ImportCategory(_ context.Context, c mealdb.Category) error {
	f.categories = append(f.categories, c.Name)
	return nil
}

func (f *fakeImporter) ImportArea(_ context.Context, name string) error {
	f.areas = append(f.areas, name)
	return nil
}

func (f *fakeImporter) ImportMealsBatch(_ context.Context, meals []mealdb.Meal, batchSize int) (*catalog.ImportResult, error) {
	f.batchSize = batchSize
	return &catalog.ImportResult{
		TotalImported: len(meals) - len(f.failed),
		TotalFailed:   len(f.failed),
		FailedMeals:   f.failed,
	}, nil
}

func (f *fakeImporter) Stats(context.Context) (*catalog.Stats, error) {
	return &catalog.Stats{Recipes: 2, Ingredients: 7}, nil
}

type fakePricing struct {
	result *catalog.PricingResult
	err    error
	day    time.Time
}

func (f *fakePricing) SyncProductPricing(_ context.Context, day time.Time) (*catalog.PricingResult, error) {
	f.day = day
	return f.result, f.err
}

type fakeMatcher struct {
	result *matching.ComputeResult
	err    error
	topK   int
	conf   float64
}

func (f *fakeMatcher) ComputeAll(_ context.Context, topK int, minConfidence float64) (*matching.ComputeResult, error) {
	f.topK, f.conf = topK, minConfidence
	return f.result, f.err
}

func sampleSource() *fakeMealSource {
	return &fakeMealSource{
		categories: []mealdb.Category{{Name: "Beef"}, {Name: "Dessert"}},
		areas:      []string{"Danish", "Italian", "Thai"},
		meals:      []mealdb.Meal{{ID: "1", Name: "Frikadeller"}, {ID: "2", Name: "Tiramisu"}},
	}
}

func TestImportMealDB(t *testing.T) {
	dst := &fakeImporter{}
	res := ImportMealDB(context.Background(), sampleSource(), dst, nil)

	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, 2, res.CategoriesImported)
	assert.Equal(t, 3, res.AreasImported)
	assert.Equal(t, 2, res.RecipesImported)
	assert.Equal(t, int64(7), res.IngredientsCreated)
	assert.Empty(t, res.Errors)
	assert.Equal(t, mealImportBatchSize, dst.batchSize)
	assert.Equal(t, []string{"Beef", "Dessert"}, dst.categories)
}

func TestImportMealDBPartial(t *testing.T) {
	src := sampleSource()
	src.areaErr = errors.New("timeout")
	dst := &fakeImporter{failed: []string{"Tiramisu"}}

	res := ImportMealDB(context.Background(), src, dst, nil)
	assert.Equal(t, "partial", res.Status)
	assert.Equal(t, []string{"Areas: timeout", "Recipe: Tiramisu"}, res.Errors)
	assert.Equal(t, 1, res.RecipesImported)
	assert.Equal(t, 1, res.RecipesFailed)
}

func TestImportMealDBFailed(t *testing.T) {
	res := ImportMealDB(context.Background(), &fakeMealSource{err: errors.New("down")}, &fakeImporter{}, nil)
	assert.Equal(t, "failed", res.Status)
	assert.Len(t, res.Errors, 3)
}

func TestFullRefresh(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		src     *fakeMealSource
		pricing *fakePricing
		matcher *fakeMatcher
		want    string
	}{
		{
			name:    "all steps succeed",
			src:     sampleSource(),
			pricing: &fakePricing{result: &catalog.PricingResult{Status: "completed"}},
			matcher: &fakeMatcher{result: &matching.ComputeResult{}},
			want:    "completed",
		},
		{
			name:    "matching errors",
			src:     sampleSource(),
			pricing: &fakePricing{result: &catalog.PricingResult{Status: "completed"}},
			matcher: &fakeMatcher{result: &matching.ComputeResult{Errors: 2}},
			want:    "partial",
		},
		{
			name:    "import and sync fail",
			src:     &fakeMealSource{err: errors.New("down")},
			pricing: &fakePricing{err: errors.New("db gone")},
			matcher: &fakeMatcher{result: &matching.ComputeResult{}},
			want:    "failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FullRefresh(context.Background(), tt.src, &fakeImporter{}, tt.pricing, tt.matcher, day, nil)
			assert.Equal(t, tt.want, res.Status)
			require.NotNil(t, res.ProductSync)
			assert.Equal(t, day, tt.pricing.day)
			assert.Equal(t, DefaultMatchTopK, tt.matcher.topK)
			assert.Equal(t, DefaultMatchConfidence, tt.matcher.conf)
		})
	}
}
