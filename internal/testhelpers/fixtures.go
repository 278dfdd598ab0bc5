package testhelpers

import (
	"testing"
	"time"

	"github.com/foodplanner/backend/internal/models"
	"gorm.io/gorm"
)

// CreateStore inserts an active store.
func CreateStore(t *testing.T, db *gorm.DB, id, name, brand string) *models.Store {
	t.Helper()
	store := &models.Store{ID: id, Name: name, Brand: brand, IsActive: true}
	if err := db.Create(store).Error; err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

// CreateProduct inserts a product. A non-nil discount marks it as actively discounted.
func CreateProduct(t *testing.T, db *gorm.DB, id, storeID, name string, price float64, discount *float64) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:          id,
		StoreID:     storeID,
		Name:        name,
		Price:       price,
		Unit:        "unit",
		LastUpdated: time.Now(),
	}
	if discount != nil {
		p.DiscountPrice = discount
		p.HasActiveDiscount = *discount < price
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return p
}

// CreateRecipe inserts a recipe with its ingredients (name, measure pairs).
func CreateRecipe(t *testing.T, db *gorm.DB, id, name, category string, ingredients ...[2]string) *models.Recipe {
	t.Helper()
	r := &models.Recipe{ID: id, Name: name, Category: category, Servings: 4}
	for i, ing := range ingredients {
		key := models.IngredientKey(ing[0])
		if err := db.Where(models.Ingredient{NormalizedName: key}).
			FirstOrCreate(&models.Ingredient{NormalizedName: key, Name: ing[0]}).Error; err != nil {
			t.Fatalf("failed to create ingredient: %v", err)
		}
		r.Ingredients = append(r.Ingredients, models.RecipeIngredient{
			IngredientName: key,
			Name:           ing[0],
			Measure:        ing[1],
			Position:       i + 1,
		})
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("failed to create recipe: %v", err)
	}
	return r
}

// CreateMatch links an ingredient to a product.
func CreateMatch(t *testing.T, db *gorm.DB, ingredient, productID string, confidence float64) {
	t.Helper()
	m := &models.IngredientMatch{
		IngredientName:  models.IngredientKey(ingredient),
		ProductID:       productID,
		ConfidenceScore: confidence,
		MatchType:       "fuzzy",
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("failed to create match: %v", err)
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
