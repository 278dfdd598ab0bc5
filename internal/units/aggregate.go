package units

import (
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
)

var descriptorRes = func() []*regexp.Regexp {
	words := []string{
		"fresh", "dried", "frozen", "canned", "chopped", "diced", "minced",
		"sliced", "grated", "shredded", "crushed", "ground", "whole", "halved",
		"quartered", "peeled", "seeded", "pitted", "boneless", "skinless",
		"cooked", "raw", "organic", "free-range", "free range",
	}
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return out
}()

// NormalizeIngredientName lowercases a name and strips preparation descriptors.
func NormalizeIngredientName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	for _, re := range descriptorRes {
		name = re.ReplaceAllString(name, "")
	}
	return strings.Join(strings.Fields(name), " ")
}

// Ingredient is one recipe line. Quantity may be empty when Measure carries it.
type Ingredient struct {
	Name     string
	Quantity string
	Measure  string
}

// Aggregated is an ingredient summed over one or more recipes
type Aggregated struct {
	Name           string
	NormalizedName string
	Total          Quantity
	RecipeSources  []string
}

// DisplayQuantity renders the total, e.g. "1.2 L"
func (a *Aggregated) DisplayQuantity() string {
	return a.Total.String()
}

// Aggregator merges ingredient lines keyed by normalized name, preserving first-seen order.
type Aggregator struct {
	items  map[string]*Aggregated
	order  []string
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{items: make(map[string]*Aggregated), logger: logger}
}

// Add merges the lines of one recipe.
func (a *Aggregator) Add(recipeID string, lines []Ingredient) {
	for _, line := range lines {
		if line.Name == "" {
			continue
		}
		normalized := NormalizeIngredientName(line.Name)

		qty, unit := line.Quantity, line.Measure
		if unit != "" && qty == "" {
			qty, unit = ExtractQuantityAndUnit(unit)
		}
		q := Normalize(qty, unit)

		if existing, ok := a.items[normalized]; ok {
			existing.Total = existing.Total.Add(q, a.logger)
			if recipeID != "" && !slices.Contains(existing.RecipeSources, recipeID) {
				existing.RecipeSources = append(existing.RecipeSources, recipeID)
			}
			continue
		}

		agg := &Aggregated{Name: line.Name, NormalizedName: normalized, Total: q}
		if recipeID != "" {
			agg.RecipeSources = []string{recipeID}
		}
		a.items[normalized] = agg
		a.order = append(a.order, normalized)
	}
}

// Scale multiplies every total by factor.
func (a *Aggregator) Scale(factor float64) {
	for _, item := range a.items {
		item.Total.Value *= factor
	}
}

// Items returns the aggregated ingredients in first-seen order.
func (a *Aggregator) Items() []*Aggregated {
	out := make([]*Aggregated, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.items[key])
	}
	return out
}

// Aggregate is a one-shot helper over a single recipe.
func Aggregate(recipeID string, lines []Ingredient, logger *zap.Logger) []*Aggregated {
	agg := NewAggregator(logger)
	agg.Add(recipeID, lines)
	return agg.Items()
}
