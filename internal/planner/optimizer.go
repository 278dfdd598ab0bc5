package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/models"
	"go.uber.org/zap"
)

// Scoring weights. Overlap and variety are tracked during selection but do not
// feed the score.
const (
	DiscountWeight = 3.0
	CostWeight     = -0.1
	OverlapWeight  = 1.5
	VarietyPenalty = -2.0

	discountCandidateLimit = 100
	regularCandidateLimit  = 50
	maxPerCategory         = 2
	budgetFriendlyCost     = 50.0
	defaultReplacements    = 5
)

// Request describes the plan to optimize
type Request struct {
	Days                 int
	PeopleCount          int
	StoreIDs             []string
	Dietary              []DietaryPreference
	BudgetMax            *float64
	ExcludedRecipeIDs    []string
	PreselectedRecipeIDs []string
}

type candidate struct {
	recipe        models.Recipe
	discountCount int
	discounted    []string
	cost          float64
	savings       float64
	score         float64
	reason        string
	preselected   bool
}

// Optimize picks up to req.Days recipes favouring discounted ingredients and low
// cost, respecting dietary preferences, the budget and a per-category cap.
func (p *Planner) Optimize(ctx context.Context, req Request) ([]PlannedRecipe, error) {
	p.logger.Info("optimizing meal plan",
		zap.Int("days", req.Days), zap.Int("people", req.PeopleCount))

	candidates, err := p.fetchCandidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		p.logger.Warn("no candidate recipes found")
		return []PlannedRecipe{}, nil
	}

	score(candidates, req.PeopleCount)
	selected := p.greedySelect(candidates, req)

	p.logger.Info("selected recipes for meal plan", zap.Int("count", len(selected)))
	return selected, nil
}

func (p *Planner) fetchCandidates(ctx context.Context, req Request) ([]*candidate, error) {
	excluded := make(map[string]bool, len(req.ExcludedRecipeIDs))
	for _, id := range req.ExcludedRecipeIDs {
		excluded[id] = true
	}
	seen := make(map[string]bool)
	var out []*candidate

	accept := func(r *models.Recipe) bool {
		if excluded[r.ID] || seen[r.ID] {
			return false
		}
		return len(req.Dietary) == 0 || MatchesDietary(ingredientNames(r), req.Dietary)
	}

	for _, id := range req.PreselectedRecipeIDs {
		recipe, err := p.catalog.GetRecipe(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			p.logger.Warn("preselected recipe not found", zap.String("recipe_id", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load preselected recipe %s: %w", id, err)
		}
		if excluded[recipe.ID] || seen[recipe.ID] {
			continue
		}
		c, err := p.newCandidate(ctx, *recipe, 0)
		if err != nil {
			return nil, err
		}
		c.preselected = true
		seen[recipe.ID] = true
		out = append(out, c)
	}

	discounted, err := p.catalog.FindRecipesByDiscountedIngredients(ctx, 1, discountCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("find discounted recipes: %w", err)
	}
	for i := range discounted {
		recipe := discounted[i].Recipe
		if !accept(&recipe) {
			continue
		}
		c, err := p.newCandidate(ctx, recipe, discounted[i].DiscountedCount)
		if err != nil {
			return nil, err
		}
		seen[recipe.ID] = true
		out = append(out, c)
	}

	if len(out) < regularCandidateLimit {
		regular, err := p.catalog.SearchRecipes(ctx, catalog.RecipeFilter{Limit: regularCandidateLimit})
		if err != nil {
			return nil, fmt.Errorf("search recipes: %w", err)
		}
		for i := range regular {
			if !accept(&regular[i]) {
				continue
			}
			c, err := p.newCandidate(ctx, regular[i], 0)
			if err != nil {
				return nil, err
			}
			c.savings = 0
			c.discounted = nil
			seen[regular[i].ID] = true
			out = append(out, c)
		}
	}

	p.logger.Info("found candidate recipes", zap.Int("count", len(out)))
	return out, nil
}

func (p *Planner) newCandidate(ctx context.Context, recipe models.Recipe, discountCount int) (*candidate, error) {
	est, err := p.catalog.EstimateRecipeCost(ctx, recipe.ID, true)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("estimate cost of %s: %w", recipe.ID, err)
	}
	c := &candidate{recipe: recipe, discountCount: discountCount}
	if est != nil {
		c.cost = est.TotalCost
		c.savings = est.TotalSavings
		for _, item := range est.Items {
			if item.HasDiscount {
				c.discounted = append(c.discounted, item.Ingredient)
			}
		}
	}
	return c, nil
}

// score ranks candidates best first. Preselected recipes stay ahead of the rest.
func score(candidates []*candidate, people int) {
	for _, c := range candidates {
		costPerPerson := c.cost / float64(max(people, 1))
		c.score = float64(c.discountCount)*DiscountWeight + costPerPerson*CostWeight
		c.reason = suggestionReason(c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].preselected != candidates[j].preselected {
			return candidates[i].preselected
		}
		if candidates[i].preselected {
			return false
		}
		return candidates[i].score > candidates[j].score
	})
}

func suggestionReason(c *candidate) string {
	var reasons []string
	if c.preselected {
		reasons = append(reasons, "Chosen by you")
	}
	if c.discountCount > 0 {
		reasons = append(reasons, fmt.Sprintf("Uses %d discounted ingredient(s)", c.discountCount))
	}
	if c.savings > 0 {
		reasons = append(reasons, fmt.Sprintf("Save %.0f kr", c.savings))
	}
	if c.cost > 0 && c.cost < budgetFriendlyCost {
		reasons = append(reasons, "Budget-friendly")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Good variety option")
	}
	return strings.Join(reasons, " · ")
}

func (p *Planner) greedySelect(candidates []*candidate, req Request) []PlannedRecipe {
	people := max(req.PeopleCount, 1)
	selected := make([]PlannedRecipe, 0, req.Days)
	usedCategories := make(map[string]int)
	usedIngredients := make(map[string]bool)
	total := 0.0

	for _, c := range candidates {
		if len(selected) >= req.Days {
			break
		}

		cost := c.cost * float64(people)
		if req.BudgetMax != nil && *req.BudgetMax > 0 && total+cost > *req.BudgetMax {
			continue
		}

		category := c.recipe.Category
		if category == "" {
			category = "Other"
		}
		if usedCategories[category] >= maxPerCategory {
			continue
		}

		names := ingredientNames(&c.recipe)
		overlap := 0
		for _, name := range names {
			if usedIngredients[strings.ToLower(name)] {
				overlap++
			}
		}
		if overlap > 0 {
			p.logger.Debug("recipe shares ingredients with selection",
				zap.String("recipe", c.recipe.Name), zap.Int("overlap", overlap))
		}

		discounted := c.discounted
		if discounted == nil {
			discounted = []string{}
		}
		selected = append(selected, PlannedRecipe{
			RecipeID:              c.recipe.ID,
			RecipeName:            c.recipe.Name,
			Thumbnail:             c.recipe.ImageURL,
			Category:              c.recipe.Category,
			Area:                  c.recipe.Area,
			EstimatedCost:         cost,
			EstimatedSavings:      c.savings * float64(people),
			SuggestionReason:      c.reason,
			DiscountedIngredients: discounted,
			Ingredients:           c.recipe.Ingredients,
		})

		total += cost
		usedCategories[category]++
		for _, name := range names {
			usedIngredients[strings.ToLower(name)] = true
		}
	}
	return selected
}

// Replacement criteria
const (
	CriteriaCheaper   = "cheaper"
	CriteriaDifferent = "different"
	CriteriaSimilar   = "similar"
)

// FindReplacement suggests alternatives to recipeID. "cheaper" keeps the category
// and requires a lower cost, "different" leaves the category, anything else
// stays within the category. It returns catalog.ErrNotFound when recipeID is unknown.
func (p *Planner) FindReplacement(ctx context.Context, recipeID, criteria string, excludedIDs []string, limit int) ([]PlannedRecipe, error) {
	if limit <= 0 {
		limit = defaultReplacements
	}
	original, err := p.catalog.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	originalCost := 0.0
	if est, err := p.catalog.EstimateRecipeCost(ctx, recipeID, true); err == nil && est != nil {
		originalCost = est.TotalCost
	}

	filter := catalog.RecipeFilter{Limit: regularCandidateLimit}
	if criteria != CriteriaDifferent {
		filter.Category = original.Category
	}
	candidates, err := p.catalog.SearchRecipes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search replacements: %w", err)
	}

	results := []PlannedRecipe{}
	for _, recipe := range candidates {
		if recipe.ID == recipeID || slices.Contains(excludedIDs, recipe.ID) {
			continue
		}
		if criteria == CriteriaDifferent && recipe.Category == original.Category {
			continue
		}

		est, err := p.catalog.EstimateRecipeCost(ctx, recipe.ID, true)
		if err != nil {
			return nil, fmt.Errorf("estimate cost of %s: %w", recipe.ID, err)
		}
		if criteria == CriteriaCheaper && est.TotalCost >= originalCost {
			continue
		}

		reason := "Alternative to " + original.Name
		if est.TotalCost < originalCost {
			reason += fmt.Sprintf(" · %.0f kr cheaper", originalCost-est.TotalCost)
		}
		results = append(results, PlannedRecipe{
			RecipeID:              recipe.ID,
			RecipeName:            recipe.Name,
			Thumbnail:             recipe.ImageURL,
			Category:              recipe.Category,
			Area:                  recipe.Area,
			EstimatedCost:         est.TotalCost,
			EstimatedSavings:      est.TotalSavings,
			SuggestionReason:      reason,
			DiscountedIngredients: []string{},
			Ingredients:           recipe.Ingredients,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
