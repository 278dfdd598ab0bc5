package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	cases := map[string]float64{
		"":         1,
		"to taste": 1,
		"Pinch":    1,
		"2":        2,
		"1.5":      1.5,
		"1/2":      0.5,
		"1 1/2":    1.5,
		"2-3":      2.5,
		"2 - 4":    3,
		"3 large":  3,
		"handful":  1,
	}
	for in, want := range cases {
		assert.InDelta(t, want, ParseQuantity(in), 1e-9, "input %q", in)
	}
}

func TestIdentify(t *testing.T) {
	typ, f := Identify("Cups")
	assert.Equal(t, Volume, typ)
	assert.Equal(t, 236.588, f)

	typ, f = Identify("lb")
	assert.Equal(t, Weight, typ)
	assert.Equal(t, 453.592, f)

	typ, _ = Identify("cloves")
	assert.Equal(t, Count, typ)

	typ, f = Identify("extra large")
	assert.Equal(t, Count, typ)
	assert.Equal(t, 2.0, f)

	typ, f = Identify("large")
	assert.Equal(t, Count, typ)
	assert.Equal(t, 1.5, f)

	typ, _ = Identify("handful")
	assert.Equal(t, Unknown, typ)
}

func TestExtractQuantityAndUnit(t *testing.T) {
	tests := []struct{ in, qty, unit string }{
		{"2 cups", "2", "cups"},
		{"500g", "500", "g"},
		{"1/2 tsp", "1/2", "tsp"},
		{"1 1/2 cups", "1 1/2", "cups"},
		{"tbsp", "1", "tbsp"},
		{"", "1", ""},
		{"Dash", "1", "Dash"},
	}
	for _, tt := range tests {
		qty, unit := ExtractQuantityAndUnit(tt.in)
		assert.Equal(t, tt.qty, qty, tt.in)
		assert.Equal(t, tt.unit, unit, tt.in)
	}
}

func TestNormalizeAndDisplay(t *testing.T) {
	q := Normalize("2", "cups")
	assert.Equal(t, Volume, q.Type)
	assert.Equal(t, "ml", q.Unit)
	amount, unit := q.Display()
	assert.Equal(t, "4.7", amount)
	assert.Equal(t, "dl", unit)

	q = Normalize("1.5", "kg")
	assert.Equal(t, "1.5 kg", q.String())

	q = Normalize("250", "g")
	assert.Equal(t, "250 g", q.String())

	q = Normalize("3", "")
	assert.Equal(t, Count, q.Type)
	assert.Equal(t, "3", q.String())

	q = Normalize("1 1/2", "cloves")
	assert.Equal(t, "1.5 cloves", q.String())

	q = Normalize("2", "handful")
	assert.Equal(t, Unknown, q.Type)
	assert.Equal(t, "handful", q.Unit)
}

func TestQuantityAdd(t *testing.T) {
	sum := Normalize("2", "cups").Add(Normalize("500", "ml"), nil)
	assert.InDelta(t, 973.176, sum.Value, 1e-6)
	assert.Equal(t, "9.7 dl", sum.String())

	kept := Normalize("200", "g").Add(Normalize("1", "cup"), nil)
	assert.Equal(t, 200.0, kept.Value)
	assert.Equal(t, Weight, kept.Type)
}

func TestNormalizeIngredientName(t *testing.T) {
	assert.Equal(t, "garlic", NormalizeIngredientName("  Fresh Minced Garlic "))
	assert.Equal(t, "chicken breast", NormalizeIngredientName("Boneless skinless chicken breast"))
	assert.Equal(t, "eggs", NormalizeIngredientName("free-range eggs"))
	assert.Equal(t, "", NormalizeIngredientName(""))
}

func TestAggregatorMergesAcrossRecipes(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Add("r1", []Ingredient{
		{Name: "Chopped Onion", Measure: "2"},
		{Name: "Milk", Measure: "200ml"},
		{Name: ""},
	})
	agg.Add("r2", []Ingredient{
		{Name: "onion", Measure: "1"},
		{Name: "Milk", Measure: "1 cup"},
	})

	items := agg.Items()
	require.Len(t, items, 2)

	onion := items[0]
	assert.Equal(t, "onion", onion.NormalizedName)
	assert.Equal(t, "Chopped Onion", onion.Name)
	assert.Equal(t, 3.0, onion.Total.Value)
	assert.Equal(t, []string{"r1", "r2"}, onion.RecipeSources)

	milk := items[1]
	assert.InDelta(t, 436.588, milk.Total.Value, 1e-6)
	assert.Equal(t, "4.4 dl", milk.DisplayQuantity())

	agg.Scale(2)
	assert.Equal(t, 6.0, agg.Items()[0].Total.Value)
}

func TestAggregateKeepsExplicitQuantity(t *testing.T) {
	items := Aggregate("r1", []Ingredient{{Name: "flour", Quantity: "2", Measure: "cups"}}, nil)
	require.Len(t, items, 1)
	assert.InDelta(t, 473.176, items[0].Total.Value, 1e-6)
}
