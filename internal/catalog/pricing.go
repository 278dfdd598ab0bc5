package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/foodplanner/backend/internal/matching"
	"github.com/foodplanner/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	discountMatchConfidence = 0.7
	costMatchConfidence     = 0.6
	pricingBatchSize        = 100
)

// ProductMatch is a product linked to an ingredient
type ProductMatch struct {
	ProductID         string   `json:"product_id"`
	Name              string   `json:"name"`
	Brand             string   `json:"brand,omitempty"`
	Category          string   `json:"category,omitempty"`
	Unit              string   `json:"unit"`
	Price             float64  `json:"price"`
	DiscountPrice     *float64 `json:"discount_price,omitempty"`
	HasActiveDiscount bool     `json:"has_active_discount"`
	StoreID           string   `json:"store_id"`
	StoreName         string   `json:"store_name,omitempty"`
	Confidence        float64  `json:"confidence"`
	MatchType         string   `json:"match_type"`
}

// EffectivePrice is the discount price when set, else the shelf price.
func (p *ProductMatch) EffectivePrice() float64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

const productMatchColumns = `products.id AS product_id, products.name, products.brand, products.category,
	products.unit, products.price, products.discount_price, products.has_active_discount,
	products.store_id, stores.name AS store_name,
	ingredient_matches.confidence_score AS confidence, ingredient_matches.match_type`

func (r *Repository) matchQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("ingredient_matches").
		Select(productMatchColumns).
		Joins("JOIN products ON products.id = ingredient_matches.product_id").
		Joins("LEFT JOIN stores ON stores.id = products.store_id")
}

// ProductsForIngredient returns matched products ordered by confidence, then price.
func (r *Repository) ProductsForIngredient(ctx context.Context, ingredient string, minConfidence float64, limit int) ([]ProductMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	out := []ProductMatch{}
	err := r.matchQuery(ctx).
		Where("ingredient_matches.ingredient_name = ? AND ingredient_matches.confidence_score >= ?",
			models.IngredientKey(ingredient), minConfidence).
		Order("ingredient_matches.confidence_score DESC").
		Order("products.price ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DiscountedItem is one discounted ingredient of a recipe
type DiscountedItem struct {
	Ingredient    string   `json:"ingredient"`
	Product       string   `json:"product"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discount_price,omitempty"`
}

// DiscountedRecipe is a recipe ranked by how many of its ingredients are on offer
type DiscountedRecipe struct {
	Recipe          models.Recipe    `json:"recipe"`
	DiscountedCount int              `json:"discounted_ingredients"`
	DiscountedItems []DiscountedItem `json:"discounted_items"`
}

// FindRecipesByDiscountedIngredients returns recipes having at least minDiscounted
// distinct ingredients matched (confidence >= 0.7) to a discounted product.
func (r *Repository) FindRecipesByDiscountedIngredients(ctx context.Context, minDiscounted, limit int) ([]DiscountedRecipe, error) {
	if minDiscounted < 1 {
		minDiscounted = 1
	}
	if limit <= 0 {
		limit = 20
	}
	db := r.db.WithContext(ctx)

	discounted := func() *gorm.DB {
		return db.Table("recipe_ingredients").
			Joins("JOIN ingredient_matches ON ingredient_matches.ingredient_name = recipe_ingredients.ingredient_name").
			Joins("JOIN products ON products.id = ingredient_matches.product_id").
			Where("products.has_active_discount = ? AND ingredient_matches.confidence_score >= ?", true, discountMatchConfidence)
	}

	var counts []struct {
		RecipeID        string
		DiscountedCount int
	}
	err := discounted().
		Select("recipe_ingredients.recipe_id, COUNT(DISTINCT recipe_ingredients.ingredient_name) AS discounted_count").
		Group("recipe_ingredients.recipe_id").
		Having("COUNT(DISTINCT recipe_ingredients.ingredient_name) >= ?", minDiscounted).
		Order("discounted_count DESC").
		Order("recipe_ingredients.recipe_id").
		Limit(limit).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return []DiscountedRecipe{}, nil
	}

	ids := make([]string, len(counts))
	for i, c := range counts {
		ids[i] = c.RecipeID
	}

	var items []struct {
		RecipeID string
		DiscountedItem
	}
	err = discounted().
		Select(`DISTINCT recipe_ingredients.recipe_id, recipe_ingredients.name AS ingredient,
			products.name AS product, products.price, products.discount_price`).
		Where("recipe_ingredients.recipe_id IN ?", ids).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	byRecipe := make(map[string][]DiscountedItem)
	for _, it := range items {
		byRecipe[it.RecipeID] = append(byRecipe[it.RecipeID], it.DiscountedItem)
	}

	recipes, err := r.RecipesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	recipeByID := make(map[string]models.Recipe, len(recipes))
	for _, rec := range recipes {
		recipeByID[rec.ID] = rec
	}

	out := make([]DiscountedRecipe, 0, len(counts))
	for _, c := range counts {
		rec, ok := recipeByID[c.RecipeID]
		if !ok {
			continue
		}
		out = append(out, DiscountedRecipe{
			Recipe:          rec,
			DiscountedCount: c.DiscountedCount,
			DiscountedItems: byRecipe[c.RecipeID],
		})
	}
	return out, nil
}

// CostItem is the product chosen for one ingredient. Product fields are empty
// when no match qualifies.
type CostItem struct {
	Ingredient    string   `json:"ingredient"`
	ProductID     string   `json:"product_id,omitempty"`
	ProductName   string   `json:"product_name,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	DiscountPrice *float64 `json:"discount_price,omitempty"`
	HasDiscount   bool     `json:"has_discount"`
}

// CostEstimate prices a recipe from its matched products
type CostEstimate struct {
	RecipeID     string     `json:"recipe_id"`
	RecipeName   string     `json:"recipe_name"`
	Items        []CostItem `json:"items"`
	TotalCost    float64    `json:"total_cost"`
	TotalSavings float64    `json:"total_savings"`
}

// EstimateRecipeCost picks one product per ingredient among matches with
// confidence >= 0.6: discounted first when preferDiscounts, then by confidence,
// then by effective price.
func (r *Repository) EstimateRecipeCost(ctx context.Context, recipeID string, preferDiscounts bool) (*CostEstimate, error) {
	recipe, err := r.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		keys = append(keys, ing.IngredientName)
	}

	var rows []struct {
		IngredientName string
		ProductMatch
	}
	if len(keys) > 0 {
		err = r.matchQuery(ctx).
			Select("ingredient_matches.ingredient_name, "+productMatchColumns).
			Where("ingredient_matches.ingredient_name IN ? AND ingredient_matches.confidence_score >= ?", keys, costMatchConfidence).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
	}
	candidates := make(map[string][]ProductMatch)
	for _, row := range rows {
		candidates[row.IngredientName] = append(candidates[row.IngredientName], row.ProductMatch)
	}

	est := &CostEstimate{RecipeID: recipe.ID, RecipeName: recipe.Name, Items: []CostItem{}}
	for _, ing := range recipe.Ingredients {
		item := CostItem{Ingredient: ing.Name}
		if item.Ingredient == "" {
			item.Ingredient = ing.IngredientName
		}

		if products := candidates[ing.IngredientName]; len(products) > 0 {
			sort.SliceStable(products, func(i, j int) bool {
				a, b := products[i], products[j]
				if preferDiscounts && a.HasActiveDiscount != b.HasActiveDiscount {
					return a.HasActiveDiscount
				}
				if a.Confidence != b.Confidence {
					return a.Confidence > b.Confidence
				}
				return a.EffectivePrice() < b.EffectivePrice()
			})
			best := products[0]
			price := best.Price
			item.ProductID = best.ProductID
			item.ProductName = best.Name
			item.Price = &price
			item.DiscountPrice = best.DiscountPrice
			item.HasDiscount = best.HasActiveDiscount

			est.TotalCost += best.EffectivePrice()
			if best.HasActiveDiscount && best.DiscountPrice != nil {
				est.TotalSavings += best.Price - *best.DiscountPrice
			}
		}
		est.Items = append(est.Items, item)
	}
	return est, nil
}

// PricingResult summarizes SyncProductPricing
type PricingResult struct {
	Status                string   `json:"status"`
	ProductsSynced        int      `json:"products_synced"`
	ProductsWithDiscounts int      `json:"products_with_discounts"`
	Errors                []string `json:"errors"`
}

// SyncProductPricing projects the best discount valid on day onto each product
// and refreshes the product name vectors.
func (r *Repository) SyncProductPricing(ctx context.Context, day time.Time) (*PricingResult, error) {
	day = models.Day(day)
	db := r.db.WithContext(ctx)

	var discounts []models.Discount
	if err := db.Where("valid_from <= ? AND valid_to >= ?", day, day).Find(&discounts).Error; err != nil {
		return nil, err
	}
	best := make(map[string]models.Discount)
	for _, d := range discounts {
		if cur, ok := best[d.ProductID]; !ok || d.DiscountPrice < cur.DiscountPrice {
			best[d.ProductID] = d
		}
	}
	r.logger.Info("found active discounts", zap.Int("products", len(best)))

	result := &PricingResult{Errors: []string{}}
	var batch []models.Product
	err := db.Select("id", "name", "price").FindInBatches(&batch, pricingBatchSize, func(tx *gorm.DB, _ int) error {
		for _, p := range batch {
			updates := map[string]any{
				"discount_price":      nil,
				"discount_percentage": nil,
				"has_active_discount": false,
				"name_vector":         matching.NameVector(p.Name),
			}
			if d, ok := best[p.ID]; ok {
				updates["discount_price"] = d.DiscountPrice
				if p.Price > 0 {
					updates["discount_percentage"] = (p.Price - d.DiscountPrice) / p.Price * 100
				}
				updates["has_active_discount"] = d.DiscountPrice < p.Price
				result.ProductsWithDiscounts++
			}
			if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
				result.Errors = append(result.Errors, p.ID+": "+err.Error())
				continue
			}
			result.ProductsSynced++
		}
		return nil
	}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	result.Status = "completed"
	if len(result.Errors) > 0 {
		result.Status = "partial"
	}
	r.logger.Info("product pricing synced",
		zap.Int("products", result.ProductsSynced), zap.Int("with_discounts", result.ProductsWithDiscounts))
	return result, nil
}
