// Package planner selects recipes for meal plans and turns them into shopping lists.
package planner

import (
	"context"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/models"
	"go.uber.org/zap"
)

// Catalog is the slice of the recipe catalog the planner reads from.
// *catalog.Repository satisfies it.
type Catalog interface {
	FindRecipesByDiscountedIngredients(ctx context.Context, minDiscounted, limit int) ([]catalog.DiscountedRecipe, error)
	EstimateRecipeCost(ctx context.Context, recipeID string, preferDiscounts bool) (*catalog.CostEstimate, error)
	SearchRecipes(ctx context.Context, f catalog.RecipeFilter) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)
	ProductsForIngredient(ctx context.Context, ingredient string, minConfidence float64, limit int) ([]catalog.ProductMatch, error)
}

// Planner builds meal plans and shopping lists from the catalog
type Planner struct {
	catalog Catalog
	logger  *zap.Logger
}

func New(c Catalog, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{catalog: c, logger: logger}
}

// PlannedRecipe is a recipe chosen for a plan, with its estimated cost for the party.
type PlannedRecipe struct {
	RecipeID              string                    `json:"recipe_id"`
	RecipeName            string                    `json:"recipe_name"`
	Thumbnail             string                    `json:"thumbnail,omitempty"`
	Category              string                    `json:"category,omitempty"`
	Area                  string                    `json:"area,omitempty"`
	EstimatedCost         float64                   `json:"estimated_cost"`
	EstimatedSavings      float64                   `json:"estimated_savings"`
	SuggestionReason      string                    `json:"suggestion_reason"`
	DiscountedIngredients []string                  `json:"discounted_ingredients"`
	Ingredients           []models.RecipeIngredient `json:"ingredients"`
}

func ingredientNames(r *models.Recipe) []string {
	names := make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		name := ing.Name
		if name == "" {
			name = ing.IngredientName
		}
		names = append(names, name)
	}
	return names
}
