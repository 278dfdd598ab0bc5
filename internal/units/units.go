// Package units parses recipe measures and normalizes quantities to base units
// (ml for volume, g for weight, count otherwise) so they can be summed across recipes.
package units

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Type classifies a unit
type Type string

const (
	Volume  Type = "volume"
	Weight  Type = "weight"
	Count   Type = "count"
	Unknown Type = "unknown"
)

var volumeUnits = map[string]float64{
	"ml": 1, "milliliter": 1, "milliliters": 1, "millilitre": 1, "millilitres": 1,
	"l": 1000, "liter": 1000, "liters": 1000, "litre": 1000, "litres": 1000,
	"dl": 100, "deciliter": 100, "deciliters": 100,
	"cl": 10, "centiliter": 10, "centiliters": 10,
	"cup": 236.588, "cups": 236.588,
	"tbsp": 14.787, "tablespoon": 14.787, "tablespoons": 14.787, "tbs": 14.787,
	"tsp": 4.929, "teaspoon": 4.929, "teaspoons": 4.929,
	"fl oz": 29.574, "fluid ounce": 29.574, "fluid ounces": 29.574,
	"pint": 473.176, "pints": 473.176, "pt": 473.176,
	"quart": 946.353, "quarts": 946.353, "qt": 946.353,
	"gallon": 3785.41, "gallons": 3785.41, "gal": 3785.41,
}

var weightUnits = map[string]float64{
	"g": 1, "gram": 1, "grams": 1,
	"kg": 1000, "kilogram": 1000, "kilograms": 1000,
	"mg": 0.001, "milligram": 0.001, "milligrams": 0.001,
	"oz": 28.3495, "ounce": 28.3495, "ounces": 28.3495,
	"lb": 453.592, "lbs": 453.592, "pound": 453.592, "pounds": 453.592,
}

var countUnits = map[string]bool{
	"piece": true, "pieces": true, "pc": true, "pcs": true, "whole": true,
	"slice": true, "slices": true, "clove": true, "cloves": true,
	"head": true, "heads": true, "bunch": true, "bunches": true,
	"sprig": true, "sprigs": true, "can": true, "cans": true,
	"jar": true, "jars": true, "package": true, "packages": true, "pkg": true,
	"pack": true, "packs": true, "bottle": true, "bottles": true,
	"bag": true, "bags": true, "box": true, "boxes": true,
	"stick": true, "sticks": true, "fillet": true, "fillets": true,
	"breast": true, "breasts": true, "thigh": true, "thighs": true,
	"leg": true, "legs": true, "wing": true, "wings": true,
}

// sizeDescriptors are checked in order; "extra large" must precede "large".
var sizeDescriptors = []struct {
	word   string
	factor float64
}{
	{"small", 0.75},
	{"medium", 1.0},
	{"extra large", 2.0},
	{"large", 1.5},
	{"xl", 2.0},
}

// Identify returns the unit type and its factor to the base unit.
func Identify(unit string) (Type, float64) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if f, ok := volumeUnits[u]; ok {
		return Volume, f
	}
	if f, ok := weightUnits[u]; ok {
		return Weight, f
	}
	if countUnits[u] {
		return Count, 1
	}
	for _, s := range sizeDescriptors {
		if u != "" && strings.Contains(u, s.word) {
			return Count, s.factor
		}
	}
	return Unknown, 1
}

var (
	rangeRe  = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)`)
	mixedRe  = regexp.MustCompile(`^(\d+)\s+(\d+)/(\d+)`)
	fracRe   = regexp.MustCompile(`^(\d+)/(\d+)`)
	numberRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)`)
	measure  = regexp.MustCompile(`^(\d+(?:\.\d+)?(?:\s*/\s*\d+)?(?:\s+\d+/\d+)?)\s*(.*)$`)
	plainNum = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParseQuantity parses "2", "1.5", "1/2", "1 1/2" or "2-3" (the average).
// Vague amounts and anything unparseable count as 1.
func ParseQuantity(s string) float64 {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "to taste", "pinch", "dash", "some":
		return 1
	}
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		return (atof(m[1]) + atof(m[2])) / 2
	}
	if m := mixedRe.FindStringSubmatch(s); m != nil {
		if d := atof(m[3]); d != 0 {
			return atof(m[1]) + atof(m[2])/d
		}
	}
	if m := fracRe.FindStringSubmatch(s); m != nil {
		if d := atof(m[2]); d != 0 {
			return atof(m[1]) / d
		}
	}
	if m := numberRe.FindStringSubmatch(s); m != nil {
		return atof(m[1])
	}
	return 1
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// ExtractQuantityAndUnit splits a combined measure: "2 cups" -> ("2", "cups"), "500g" -> ("500", "g").
func ExtractQuantityAndUnit(m string) (string, string) {
	m = strings.TrimSpace(m)
	if m == "" {
		return "1", ""
	}
	if parts := measure.FindStringSubmatch(m); parts != nil {
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	}
	lower := strings.ToLower(m)
	if _, ok := volumeUnits[lower]; ok {
		return "1", m
	}
	if _, ok := weightUnits[lower]; ok {
		return "1", m
	}
	if plainNum.MatchString(m) {
		return m, ""
	}
	return "1", m
}

// Quantity is an amount expressed in its base unit
type Quantity struct {
	Value            float64 `json:"value"`
	Unit             string  `json:"unit"`
	Type             Type    `json:"unit_type"`
	OriginalQuantity string  `json:"original_quantity"`
	OriginalUnit     string  `json:"original_unit"`
}

// Normalize converts a quantity string and unit into base units.
func Normalize(quantity, unit string) Quantity {
	value := ParseQuantity(quantity)
	orig := quantity
	if orig == "" {
		orig = "1"
	}
	if strings.TrimSpace(unit) == "" {
		return Quantity{Value: value, Unit: "", Type: Count, OriginalQuantity: orig}
	}

	typ, factor := Identify(unit)
	base := unit
	switch typ {
	case Volume:
		base = "ml"
	case Weight:
		base = "g"
	case Count:
		base = strings.ToLower(strings.TrimSpace(unit))
	}
	return Quantity{
		Value:            value * factor,
		Unit:             base,
		Type:             typ,
		OriginalQuantity: orig,
		OriginalUnit:     unit,
	}
}

// CanAggregate reports whether two units are of the same type.
func CanAggregate(a, b string) bool {
	ta, _ := Identify(a)
	tb, _ := Identify(b)
	return ta == tb
}

// Add sums two quantities of the same type. Mismatched types keep q unchanged.
func (q Quantity) Add(other Quantity, logger *zap.Logger) Quantity {
	if q.Type != other.Type {
		if logger != nil {
			logger.Warn("cannot add quantities of different types, keeping first",
				zap.String("first", string(q.Type)), zap.String("second", string(other.Type)))
		}
		return q
	}
	return Quantity{
		Value:            q.Value + other.Value,
		Unit:             q.Unit,
		Type:             q.Type,
		OriginalQuantity: q.OriginalQuantity + " + " + other.OriginalQuantity,
		OriginalUnit:     q.Unit,
	}
}

// Display converts the quantity back to a readable amount and unit.
func (q Quantity) Display() (string, string) {
	switch q.Type {
	case Volume:
		switch {
		case q.Value >= 1000:
			return trimmed(q.Value/1000, 1), "L"
		case q.Value >= 100:
			return trimmed(q.Value/100, 1), "dl"
		default:
			return strconv.FormatFloat(q.Value, 'f', 0, 64), "ml"
		}
	case Weight:
		if q.Value >= 1000 {
			return trimmed(q.Value/1000, 2), "kg"
		}
		return strconv.FormatFloat(q.Value, 'f', 0, 64), "g"
	case Count:
		if q.Value == float64(int64(q.Value)) {
			return strconv.FormatInt(int64(q.Value), 10), q.OriginalUnit
		}
		return strconv.FormatFloat(q.Value, 'f', 1, 64), q.OriginalUnit
	default:
		return strconv.FormatFloat(q.Value, 'f', -1, 64), q.OriginalUnit
	}
}

// String renders "amount unit".
func (q Quantity) String() string {
	amount, unit := q.Display()
	if unit == "" {
		return amount
	}
	return amount + " " + unit
}

func trimmed(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
