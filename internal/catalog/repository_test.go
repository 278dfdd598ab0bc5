package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/foodplanner/backend/internal/connectors/mealdb"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	return NewRepository(db, nil), db
}

func sampleMeal() mealdb.Meal {
	return mealdb.Meal{
		ID:       "52772",
		Name:     "Teriyaki Chicken Casserole",
		Category: "Chicken",
		Area:     "Japanese",
		Tags:     []string{"Meat", "Casserole"},
		Ingredients: []mealdb.Ingredient{
			{Name: "Soy Sauce", Measure: "3/4 cup"},
			{Name: "Chicken Breasts", Measure: "2"},
			{Name: "soy sauce", Measure: "1 tbsp"},
		},
	}
}

func TestImportMealCreatesRowsAndIsIdempotent(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ImportMeal(ctx, sampleMeal()))
	meal := sampleMeal()
	meal.Name = "Teriyaki Chicken"
	require.NoError(t, repo.ImportMeal(ctx, meal))

	recipe, err := repo.GetRecipe(ctx, "52772")
	require.NoError(t, err)
	assert.Equal(t, "Teriyaki Chicken", recipe.Name)
	assert.Equal(t, models.StringList{"Meat", "Casserole"}, recipe.Tags)
	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, "Soy Sauce", recipe.Ingredients[0].Name)
	assert.Equal(t, "soy sauce", recipe.Ingredients[0].IngredientName)
	assert.Equal(t, "3/4 cup", recipe.Ingredients[0].Measure)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Recipes)
	assert.Equal(t, int64(2), stats.Ingredients)
	assert.Equal(t, int64(1), stats.Categories)
	assert.Equal(t, int64(1), stats.Areas)

	var lines int64
	db.Model(&models.RecipeIngredient{}).Count(&lines)
	assert.Equal(t, int64(2), lines)
}

func TestImportMealsBatchCountsFailures(t *testing.T) {
	repo, _ := setupRepo(t)
	res, err := repo.ImportMealsBatch(context.Background(), []mealdb.Meal{
		sampleMeal(),
		{Name: "No Id"},
	}, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalImported)
	assert.Equal(t, 1, res.TotalFailed)
	assert.Equal(t, []string{"No Id"}, res.FailedMeals)
}

func TestSearchRecipes(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	testhelpers.CreateRecipe(t, db, "1", "Beef Stew", "Beef", [2]string{"Beef", "500g"}, [2]string{"Carrot", "2"})
	testhelpers.CreateRecipe(t, db, "2", "Apple Pie", "Dessert", [2]string{"Apple", "4"})
	testhelpers.CreateRecipe(t, db, "3", "Carrot Cake", "Dessert", [2]string{"Carrot", "3"})

	all, err := repo.SearchRecipes(ctx, RecipeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Apple Pie", all[0].Name)

	byIngredient, err := repo.SearchRecipes(ctx, RecipeFilter{Ingredient: "CARROT"})
	require.NoError(t, err)
	require.Len(t, byIngredient, 2)
	assert.Equal(t, "Beef Stew", byIngredient[0].Name)
	assert.Len(t, byIngredient[0].Ingredients, 2)

	byName, err := repo.SearchRecipes(ctx, RecipeFilter{Name: "cake", Category: "Dessert"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "3", byName[0].ID)

	paged, err := repo.SearchRecipes(ctx, RecipeFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "Beef Stew", paged[0].Name)
}

func TestGetAndDeleteRecipe(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	testhelpers.CreateRecipe(t, db, "1", "Beef Stew", "Beef", [2]string{"Beef", "500g"})

	_, err := repo.GetRecipe(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := repo.DeleteRecipe(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DeleteRecipe(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngredientsAndUnmatched(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	testhelpers.CreateStore(t, db, "s1", "REMA 1000", "rema1000")
	testhelpers.CreateProduct(t, db, "p1", "s1", "Hakket oksekød", 40, nil)
	testhelpers.CreateRecipe(t, db, "1", "Beef Stew", "Beef", [2]string{"Beef", "500g"}, [2]string{"Carrot", "2"})
	testhelpers.CreateMatch(t, db, "Beef", "p1", 0.9)

	ing, err := repo.GetIngredient(ctx, "BEEF")
	require.NoError(t, err)
	assert.Equal(t, "Beef", ing.Name)

	_, err = repo.GetIngredient(ctx, "tofu")
	assert.ErrorIs(t, err, ErrNotFound)

	unmatched, err := repo.UnmatchedIngredients(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carrot"}, unmatched)

	products, err := repo.ProductsForIngredient(ctx, "beef", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ProductID)
	assert.Equal(t, "REMA 1000", products[0].StoreName)
	assert.Equal(t, 0.9, products[0].Confidence)

	products, err = repo.ProductsForIngredient(ctx, "beef", 0.95, 10)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestFindRecipesByDiscountedIngredients(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	testhelpers.CreateStore(t, db, "s1", "REMA 1000", "rema1000")
	testhelpers.CreateProduct(t, db, "beef", "s1", "Oksekød", 50, testhelpers.Ptr(35.0))
	testhelpers.CreateProduct(t, db, "carrot", "s1", "Gulerødder", 10, testhelpers.Ptr(6.0))
	testhelpers.CreateProduct(t, db, "apple", "s1", "Æbler", 20, nil)
	testhelpers.CreateRecipe(t, db, "stew", "Beef Stew", "Beef", [2]string{"Beef", "500g"}, [2]string{"Carrot", "2"})
	testhelpers.CreateRecipe(t, db, "cake", "Carrot Cake", "Dessert", [2]string{"Carrot", "3"}, [2]string{"Apple", "1"})
	testhelpers.CreateRecipe(t, db, "pie", "Apple Pie", "Dessert", [2]string{"Apple", "4"})
	testhelpers.CreateMatch(t, db, "beef", "beef", 0.9)
	testhelpers.CreateMatch(t, db, "carrot", "carrot", 0.8)
	testhelpers.CreateMatch(t, db, "apple", "apple", 0.9)

	found, err := repo.FindRecipesByDiscountedIngredients(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "stew", found[0].Recipe.ID)
	assert.Equal(t, 2, found[0].DiscountedCount)
	assert.Len(t, found[0].DiscountedItems, 2)
	assert.Equal(t, "cake", found[1].Recipe.ID)
	assert.Equal(t, 1, found[1].DiscountedCount)

	found, err = repo.FindRecipesByDiscountedIngredients(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "stew", found[0].Recipe.ID)
}

func TestEstimateRecipeCost(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	testhelpers.CreateStore(t, db, "s1", "REMA 1000", "rema1000")
	testhelpers.CreateProduct(t, db, "beef-a", "s1", "Oksekød", 50, testhelpers.Ptr(35.0))
	testhelpers.CreateProduct(t, db, "beef-b", "s1", "Oksekød økologisk", 45, nil)
	testhelpers.CreateProduct(t, db, "carrot", "s1", "Gulerødder", 10, nil)
	testhelpers.CreateRecipe(t, db, "stew", "Beef Stew", "Beef",
		[2]string{"Beef", "500g"}, [2]string{"Carrot", "2"}, [2]string{"Saffron", "pinch"})
	testhelpers.CreateMatch(t, db, "beef", "beef-a", 0.8)
	testhelpers.CreateMatch(t, db, "beef", "beef-b", 0.9)
	testhelpers.CreateMatch(t, db, "carrot", "carrot", 0.65)

	est, err := repo.EstimateRecipeCost(ctx, "stew", true)
	require.NoError(t, err)
	require.Len(t, est.Items, 3)
	assert.Equal(t, "beef-a", est.Items[0].ProductID)
	assert.True(t, est.Items[0].HasDiscount)
	assert.Empty(t, est.Items[2].ProductID)
	assert.InDelta(t, 45.0, est.TotalCost, 1e-9)
	assert.InDelta(t, 15.0, est.TotalSavings, 1e-9)

	est, err = repo.EstimateRecipeCost(ctx, "stew", false)
	require.NoError(t, err)
	assert.Equal(t, "beef-b", est.Items[0].ProductID)
	assert.InDelta(t, 55.0, est.TotalCost, 1e-9)
	assert.Zero(t, est.TotalSavings)

	_, err = repo.EstimateRecipeCost(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncProductPricing(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	testhelpers.CreateStore(t, db, "s1", "REMA 1000", "rema1000")
	testhelpers.CreateProduct(t, db, "milk", "s1", "Letmælk", 12, nil)
	testhelpers.CreateProduct(t, db, "bread", "s1", "Rugbrød", 20, testhelpers.Ptr(15.0))
	testhelpers.CreateProduct(t, db, "eggs", "s1", "Æg", 30, nil)

	discounts := []models.Discount{
		{ProductID: "milk", StoreID: "s1", DiscountPrice: 10, ValidFrom: models.Day(day.AddDate(0, 0, -1)), ValidTo: models.Day(day.AddDate(0, 0, 2))},
		{ProductID: "milk", StoreID: "s1", DiscountPrice: 9, ValidFrom: models.Day(day), ValidTo: models.Day(day)},
		{ProductID: "eggs", StoreID: "s1", DiscountPrice: 35, ValidFrom: models.Day(day), ValidTo: models.Day(day)},
		{ProductID: "bread", StoreID: "s1", DiscountPrice: 5, ValidFrom: models.Day(day.AddDate(0, 0, -10)), ValidTo: models.Day(day.AddDate(0, 0, -1))},
	}
	require.NoError(t, db.Create(&discounts).Error)

	res, err := repo.SyncProductPricing(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, 3, res.ProductsSynced)
	assert.Equal(t, 2, res.ProductsWithDiscounts)

	var milk, bread, eggs models.Product
	require.NoError(t, db.First(&milk, "id = ?", "milk").Error)
	require.NoError(t, db.First(&bread, "id = ?", "bread").Error)
	require.NoError(t, db.First(&eggs, "id = ?", "eggs").Error)

	require.NotNil(t, milk.DiscountPrice)
	assert.Equal(t, 9.0, *milk.DiscountPrice)
	assert.InDelta(t, 25.0, *milk.DiscountPercentage, 1e-9)
	assert.True(t, milk.HasActiveDiscount)
	require.NotNil(t, milk.NameVector)

	assert.Nil(t, bread.DiscountPrice)
	assert.False(t, bread.HasActiveDiscount)

	require.NotNil(t, eggs.DiscountPrice)
	assert.False(t, eggs.HasActiveDiscount)
}
