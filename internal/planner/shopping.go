package planner

import (
	"context"
	"slices"
	"sort"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/units"
	"go.uber.org/zap"
)

const (
	shoppingMatchConfidence = 0.5
	shoppingMatchLimit      = 5
	maxAlternatives         = 3
	unknownPrice            = 999.0
	basePeople              = 2.0
)

// ShoppingItem is one aggregated ingredient and the product picked for it
type ShoppingItem struct {
	IngredientName string   `json:"ingredient_name"`
	NormalizedName string   `json:"normalized_name"`
	Quantity       string   `json:"quantity"`
	Unit           string   `json:"unit"`
	RecipeSources  []string `json:"recipe_sources"`

	ProductID           string   `json:"product_id,omitempty"`
	ProductName         string   `json:"product_name,omitempty"`
	ProductBrand        string   `json:"product_brand,omitempty"`
	Price               *float64 `json:"price,omitempty"`
	DiscountPrice       *float64 `json:"discount_price,omitempty"`
	StoreID             string   `json:"store_id,omitempty"`
	StoreName           string   `json:"store_name,omitempty"`
	Category            string   `json:"category,omitempty"`
	MatchConfidence     *float64 `json:"match_confidence,omitempty"`
	AlternativeProducts []string `json:"alternative_products"`
}

// EffectivePrice is the discount price when present, else the shelf price.
func (i *ShoppingItem) EffectivePrice() *float64 {
	if i.DiscountPrice != nil {
		return i.DiscountPrice
	}
	return i.Price
}

func (i *ShoppingItem) Savings() float64 {
	if i.Price != nil && i.DiscountPrice != nil && *i.Price != 0 && *i.DiscountPrice != 0 {
		return *i.Price - *i.DiscountPrice
	}
	return 0
}

func (i *ShoppingItem) HasDiscount() bool {
	return i.Price != nil && i.DiscountPrice != nil
}

// ShoppingList is the full list for a plan with totals and grouped views
type ShoppingList struct {
	MealPlanID          string                    `json:"meal_plan_id"`
	Items               []ShoppingItem            `json:"items"`
	TotalCost           float64                   `json:"total_cost"`
	TotalSavings        float64                   `json:"total_savings"`
	MatchedItemsCount   int                       `json:"matched_items_count"`
	UnmatchedItemsCount int                       `json:"unmatched_items_count"`
	ItemsByCategory     map[string][]ShoppingItem `json:"items_by_category"`
	ItemsByStore        map[string][]ShoppingItem `json:"items_by_store"`
}

func newShoppingList(planID string) *ShoppingList {
	return &ShoppingList{
		MealPlanID:      planID,
		Items:           []ShoppingItem{},
		ItemsByCategory: map[string][]ShoppingItem{},
		ItemsByStore:    map[string][]ShoppingItem{},
	}
}

func (l *ShoppingList) add(item ShoppingItem) {
	l.Items = append(l.Items, item)

	if p := item.EffectivePrice(); p != nil {
		l.TotalCost += *p
	}
	l.TotalSavings += item.Savings()

	if item.ProductID != "" {
		l.MatchedItemsCount++
	} else {
		l.UnmatchedItemsCount++
	}

	category := item.Category
	if category == "" {
		category = "Other"
	}
	l.ItemsByCategory[category] = append(l.ItemsByCategory[category], item)

	store := item.StoreName
	if store == "" {
		store = "Unknown Store"
	}
	l.ItemsByStore[store] = append(l.ItemsByStore[store], item)
}

// BuildShoppingList aggregates the ingredients of recipes, scales them for
// people (recipes are assumed to serve two) and attaches the best matching product.
func (p *Planner) BuildShoppingList(ctx context.Context, planID string, recipes []models.Recipe, people int, preferredStores []string) *ShoppingList {
	p.logger.Info("generating shopping list", zap.String("meal_plan_id", planID))

	agg := units.NewAggregator(p.logger)
	for _, recipe := range recipes {
		lines := make([]units.Ingredient, 0, len(recipe.Ingredients))
		for _, ing := range recipe.Ingredients {
			name := ing.Name
			if name == "" {
				name = ing.IngredientName
			}
			lines = append(lines, units.Ingredient{Name: name, Measure: ing.Measure})
		}
		agg.Add(recipe.ID, lines)
	}
	if people > 1 {
		agg.Scale(float64(people) / basePeople)
	}

	list := newShoppingList(planID)
	for _, a := range agg.Items() {
		list.add(p.shoppingItem(ctx, a, preferredStores))
	}

	p.logger.Info("generated shopping list",
		zap.Int("items", len(list.Items)),
		zap.Int("matched", list.MatchedItemsCount),
		zap.Float64("total_cost", list.TotalCost))
	return list
}

func (p *Planner) shoppingItem(ctx context.Context, a *units.Aggregated, preferredStores []string) ShoppingItem {
	qty, unit := a.Total.Display()
	item := ShoppingItem{
		IngredientName:      a.Name,
		NormalizedName:      a.NormalizedName,
		Quantity:            qty,
		Unit:                unit,
		RecipeSources:       a.RecipeSources,
		AlternativeProducts: []string{},
	}

	products, err := p.catalog.ProductsForIngredient(ctx, a.Name, shoppingMatchConfidence, shoppingMatchLimit)
	if err != nil {
		p.logger.Warn("failed to match product", zap.String("ingredient", a.Name), zap.Error(err))
		return item
	}
	if len(products) == 0 {
		return item
	}

	ranked := rankProducts(products, preferredStores)
	best := ranked[0]
	price := best.Price
	confidence := best.Confidence
	item.ProductID = best.ProductID
	item.ProductName = best.Name
	item.ProductBrand = best.Brand
	item.Price = &price
	item.DiscountPrice = best.DiscountPrice
	item.StoreID = best.StoreID
	item.StoreName = best.StoreName
	item.Category = best.Category
	item.MatchConfidence = &confidence

	for _, alt := range ranked[1:min(len(ranked), maxAlternatives+1)] {
		if alt.ProductID != "" {
			item.AlternativeProducts = append(item.AlternativeProducts, alt.ProductID)
		}
	}
	return item
}

// rankProducts orders matches by preferred store, active discount, lowest
// effective price and confidence.
func rankProducts(products []catalog.ProductMatch, preferredStores []string) []catalog.ProductMatch {
	ranked := slices.Clone(products)
	price := func(m catalog.ProductMatch) float64 {
		if m.DiscountPrice != nil && *m.DiscountPrice != 0 {
			return *m.DiscountPrice
		}
		if m.Price != 0 {
			return m.Price
		}
		return unknownPrice
	}
	preferred := func(m catalog.ProductMatch) bool {
		return len(preferredStores) > 0 && slices.Contains(preferredStores, m.StoreID)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if pa, pb := preferred(a), preferred(b); pa != pb {
			return pa
		}
		if a.HasActiveDiscount != b.HasActiveDiscount {
			return a.HasActiveDiscount
		}
		if pa, pb := price(a), price(b); pa != pb {
			return pa < pb
		}
		return a.Confidence > b.Confidence
	})
	return ranked
}
