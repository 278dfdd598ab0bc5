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

func ptr(v float64) *float64 { return &v }

func shoppingCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[string][]catalog.ProductMatch{
			"milk": {
				{ProductID: "m1", Name: "Arla Mælk", Category: "Dairy", Price: 12, StoreID: "s1", StoreName: "Rema", Confidence: 0.95},
				{ProductID: "m2", Name: "Netto Mælk", Category: "Dairy", Price: 14, DiscountPrice: ptr(10), HasActiveDiscount: true, StoreID: "s2", StoreName: "Netto", Confidence: 0.8},
				{ProductID: "m3", Name: "Mælk 1L", Category: "Dairy", Price: 9, StoreID: "s1", StoreName: "Rema", Confidence: 0.6},
			},
			"onion": {
				{ProductID: "o1", Name: "Løg", Category: "Vegetables", Price: 5, StoreID: "s1", StoreName: "Rema", Confidence: 1},
			},
		},
	}
}

func shoppingRecipes() []models.Recipe {
	a := models.Recipe{ID: "rA", Ingredients: []models.RecipeIngredient{
		{IngredientName: "milk", Name: "Milk", Measure: "1 cup"},
		{IngredientName: "onion", Name: "Onion", Measure: "1"},
	}}
	b := models.Recipe{ID: "rB", Ingredients: []models.RecipeIngredient{
		{IngredientName: "milk", Name: "milk", Measure: "500 ml"},
		{IngredientName: "saffron", Name: "Saffron", Measure: "pinch"},
	}}
	return []models.Recipe{a, b}
}

func itemByName(t *testing.T, list *ShoppingList, name string) ShoppingItem {
	t.Helper()
	for _, item := range list.Items {
		if item.NormalizedName == name {
			return item
		}
	}
	t.Fatalf("item %q not in list", name)
	return ShoppingItem{}
}

func TestBuildShoppingListAggregatesAndPrices(t *testing.T) {
	p := New(shoppingCatalog(), nil)

	list := p.BuildShoppingList(context.Background(), "plan-1", shoppingRecipes(), 4, nil)

	assert.Equal(t, "plan-1", list.MealPlanID)
	require.Len(t, list.Items, 3)

	milk := itemByName(t, list, "milk")
	assert.Equal(t, "1.5", milk.Quantity)
	assert.Equal(t, "L", milk.Unit)
	assert.Equal(t, []string{"rA", "rB"}, milk.RecipeSources)
	assert.Equal(t, "m2", milk.ProductID, "discounted product wins without store preference")
	assert.Equal(t, []string{"m3", "m1"}, milk.AlternativeProducts)
	assert.True(t, milk.HasDiscount())
	assert.Equal(t, 4.0, milk.Savings())

	onion := itemByName(t, list, "onion")
	assert.Equal(t, "2", onion.Quantity)
	assert.Equal(t, "o1", onion.ProductID)
	assert.Empty(t, onion.AlternativeProducts)

	saffron := itemByName(t, list, "saffron")
	assert.Empty(t, saffron.ProductID)

	assert.InDelta(t, 15.0, list.TotalCost, 1e-9)
	assert.InDelta(t, 4.0, list.TotalSavings, 1e-9)
	assert.Equal(t, 2, list.MatchedItemsCount)
	assert.Equal(t, 1, list.UnmatchedItemsCount)

	assert.Len(t, list.ItemsByCategory["Dairy"], 1)
	assert.Len(t, list.ItemsByCategory["Vegetables"], 1)
	assert.Len(t, list.ItemsByCategory["Other"], 1)
	assert.Len(t, list.ItemsByStore["Netto"], 1)
	assert.Len(t, list.ItemsByStore["Rema"], 1)
	assert.Len(t, list.ItemsByStore["Unknown Store"], 1)
}

func TestBuildShoppingListPrefersStores(t *testing.T) {
	p := New(shoppingCatalog(), nil)

	list := p.BuildShoppingList(context.Background(), "plan-2", shoppingRecipes(), 2, []string{"s1"})

	milk := itemByName(t, list, "milk")
	assert.Equal(t, "m3", milk.ProductID)
	assert.Equal(t, []string{"m1", "m2"}, milk.AlternativeProducts)
	assert.False(t, milk.HasDiscount())
	assert.Equal(t, "7.4", milk.Quantity)
	assert.Equal(t, "dl", milk.Unit)
}

func TestBuildShoppingListSurvivesLookupErrors(t *testing.T) {
	c := shoppingCatalog()
	c.productErr = map[string]error{"milk": errors.New("timeout")}

	list := New(c, nil).BuildShoppingList(context.Background(), "plan-3", shoppingRecipes(), 1, nil)

	milk := itemByName(t, list, "milk")
	assert.Empty(t, milk.ProductID)
	assert.Equal(t, 2, list.UnmatchedItemsCount)
}

func TestRankProductsUnknownPriceLast(t *testing.T) {
	ranked := rankProducts([]catalog.ProductMatch{
		{ProductID: "free", Price: 0, Confidence: 1},
		{ProductID: "cheap", Price: 3, Confidence: 0.5},
	}, nil)
	assert.Equal(t, "cheap", ranked[0].ProductID)
}
