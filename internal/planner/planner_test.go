package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	recipes     []models.Recipe
	discounted  []catalog.DiscountedRecipe
	costs       map[string]*catalog.CostEstimate
	products    map[string][]catalog.ProductMatch
	discountErr error
	productErr  map[string]error
}

func (f *fakeCatalog) FindRecipesByDiscountedIngredients(_ context.Context, _, limit int) ([]catalog.DiscountedRecipe, error) {
	if f.discountErr != nil {
		return nil, f.discountErr
	}
	if len(f.discounted) > limit {
		return f.discounted[:limit], nil
	}
	return f.discounted, nil
}

func (f *fakeCatalog) EstimateRecipeCost(_ context.Context, id string, _ bool) (*catalog.CostEstimate, error) {
	if est, ok := f.costs[id]; ok {
		return est, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) SearchRecipes(_ context.Context, filter catalog.RecipeFilter) ([]models.Recipe, error) {
	var out []models.Recipe
	for _, r := range f.recipes {
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetRecipe(_ context.Context, id string) (*models.Recipe, error) {
	for i := range f.recipes {
		if f.recipes[i].ID == id {
			return &f.recipes[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) ProductsForIngredient(_ context.Context, name string, _ float64, _ int) ([]catalog.ProductMatch, error) {
	key := models.IngredientKey(name)
	if err := f.productErr[key]; err != nil {
		return nil, err
	}
	return f.products[key], nil
}

func recipe(id, name, category string, ingredients ...string) models.Recipe {
	r := models.Recipe{ID: id, Name: name, Category: category}
	for i, ing := range ingredients {
		r.Ingredients = append(r.Ingredients, models.RecipeIngredient{
			RecipeID: id, IngredientName: models.IngredientKey(ing), Name: ing, Position: i + 1,
		})
	}
	return r
}

func estimate(id string, cost, savings float64, discounted ...string) *catalog.CostEstimate {
	est := &catalog.CostEstimate{RecipeID: id, TotalCost: cost, TotalSavings: savings}
	for _, name := range discounted {
		est.Items = append(est.Items, catalog.CostItem{Ingredient: name, HasDiscount: true})
	}
	return est
}

func sampleCatalog() *fakeCatalog {
	recipes := []models.Recipe{
		recipe("r1", "Beef Stew", "Beef", "Beef", "Carrot"),
		recipe("r2", "Beef Tacos", "Beef", "Beef mince", "Tortilla"),
		recipe("r3", "Beef Pie", "Beef", "Beef"),
		recipe("r4", "Veg Soup", "Vegetarian", "Carrot", "Onion"),
		recipe("r5", "Pancakes", "", "Flour", "Milk", "Egg"),
	}
	return &fakeCatalog{
		recipes: recipes,
		discounted: []catalog.DiscountedRecipe{
			{Recipe: recipes[0], DiscountedCount: 2},
			{Recipe: recipes[1], DiscountedCount: 1},
			{Recipe: recipes[2], DiscountedCount: 1},
		},
		costs: map[string]*catalog.CostEstimate{
			"r1": estimate("r1", 40, 10, "Beef", "Carrot"),
			"r2": estimate("r2", 30, 5, "Beef mince"),
			"r3": estimate("r3", 60, 0),
			"r4": estimate("r4", 20, 0),
			"r5": estimate("r5", 10, 0),
		},
	}
}

func ids(plan []PlannedRecipe) []string {
	out := make([]string, len(plan))
	for i, r := range plan {
		out[i] = r.RecipeID
	}
	return out
}

func TestOptimizeRanksAndCapsCategories(t *testing.T) {
	p := New(sampleCatalog(), nil)

	plan, err := p.Optimize(context.Background(), Request{Days: 4, PeopleCount: 2})
	require.NoError(t, err)

	// r3 is skipped: two Beef recipes are already selected.
	assert.Equal(t, []string{"r1", "r2", "r5", "r4"}, ids(plan))

	first := plan[0]
	assert.Equal(t, 80.0, first.EstimatedCost)
	assert.Equal(t, 20.0, first.EstimatedSavings)
	assert.Equal(t, "Uses 2 discounted ingredient(s) · Save 10 kr · Budget-friendly", first.SuggestionReason)
	assert.Equal(t, []string{"Beef", "Carrot"}, first.DiscountedIngredients)
	assert.Len(t, first.Ingredients, 2)

	assert.Equal(t, "Budget-friendly", plan[2].SuggestionReason)
	assert.Empty(t, plan[3].DiscountedIngredients)
	assert.Equal(t, 0.0, plan[3].EstimatedSavings)
}

func TestOptimizeRespectsBudget(t *testing.T) {
	p := New(sampleCatalog(), nil)
	budget := 100.0

	plan, err := p.Optimize(context.Background(), Request{Days: 4, PeopleCount: 2, BudgetMax: &budget})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r5"}, ids(plan))
}

func TestOptimizeDietaryFilters(t *testing.T) {
	p := New(sampleCatalog(), nil)
	ctx := context.Background()

	plan, err := p.Optimize(ctx, Request{Days: 5, PeopleCount: 2,
		Dietary: []DietaryPreference{{Name: "vegetarian", Type: "diet"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"r5", "r4"}, ids(plan))

	plan, err = p.Optimize(ctx, Request{Days: 5, PeopleCount: 2,
		Dietary: []DietaryPreference{{Name: "Vegan", Type: "diet"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"r4"}, ids(plan))

	plan, err = p.Optimize(ctx, Request{Days: 5, PeopleCount: 2,
		Dietary: []DietaryPreference{{Name: "carrot", Type: PreferenceAllergy}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3", "r5"}, ids(plan))
}

func TestOptimizePreselectedAndExcluded(t *testing.T) {
	p := New(sampleCatalog(), nil)

	plan, err := p.Optimize(context.Background(), Request{
		Days:                 2,
		PeopleCount:          2,
		ExcludedRecipeIDs:    []string{"r1"},
		PreselectedRecipeIDs: []string{"r3", "missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2"}, ids(plan))
	assert.Equal(t, "Chosen by you", plan[0].SuggestionReason)
}

func TestOptimizePropagatesCatalogErrors(t *testing.T) {
	c := sampleCatalog()
	c.discountErr = errors.New("db down")

	_, err := New(c, nil).Optimize(context.Background(), Request{Days: 3, PeopleCount: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestOptimizeEmptyCatalog(t *testing.T) {
	plan, err := New(&fakeCatalog{}, nil).Optimize(context.Background(), Request{Days: 3, PeopleCount: 2})
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestMatchesDietary(t *testing.T) {
	tests := []struct {
		name        string
		ingredients []string
		prefs       []DietaryPreference
		want        bool
	}{
		{"no prefs", []string{"Beef"}, nil, true},
		{"vegetarian rejects bacon", []string{"Smoked Bacon"}, []DietaryPreference{{"vegetarian", "diet"}}, false},
		{"vegetarian allows cheese", []string{"Cheddar Cheese"}, []DietaryPreference{{"vegetarian", "diet"}}, true},
		{"vegan rejects cheese", []string{"Cheddar Cheese"}, []DietaryPreference{{"vegan", "diet"}}, false},
		{"gluten-free rejects pasta", []string{"Penne Pasta"}, []DietaryPreference{{"gluten-free", "diet"}}, false},
		{"allergy by substring", []string{"Peanut Butter"}, []DietaryPreference{{"Peanut", "allergy"}}, false},
		{"unknown preference ignored", []string{"Beef"}, []DietaryPreference{{"keto", "diet"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesDietary(tt.ingredients, tt.prefs))
		})
	}
}

func TestFindReplacement(t *testing.T) {
	p := New(sampleCatalog(), nil)
	ctx := context.Background()

	cheaper, err := p.FindReplacement(ctx, "r1", CriteriaCheaper, nil, 5)
	require.NoError(t, err)
	require.Len(t, cheaper, 1)
	assert.Equal(t, "r2", cheaper[0].RecipeID)
	assert.Equal(t, "Alternative to Beef Stew · 10 kr cheaper", cheaper[0].SuggestionReason)

	similar, err := p.FindReplacement(ctx, "r1", CriteriaSimilar, []string{"r2"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3"}, ids(similar))
	assert.Equal(t, "Alternative to Beef Stew", similar[0].SuggestionReason)

	different, err := p.FindReplacement(ctx, "r1", CriteriaDifferent, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r4"}, ids(different))

	_, err = p.FindReplacement(ctx, "nope", CriteriaCheaper, nil, 5)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
