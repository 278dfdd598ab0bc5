package planner

import "strings"

// DietaryPreference is a named restriction such as {"peanut", "allergy"} or {"vegan", "diet"}
type DietaryPreference struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
}

const PreferenceAllergy = "allergy"

var (
	meatKeywords   = []string{"chicken", "beef", "pork", "lamb", "fish", "bacon", "ham", "salmon"}
	animalKeywords = append(append([]string{}, meatKeywords...),
		"milk", "cheese", "butter", "cream", "egg", "honey")
	glutenKeywords = []string{"flour", "bread", "pasta", "wheat", "barley"}
)

// MatchesDietary reports whether none of the ingredient names violate prefs.
// Matching is by substring on lowercased names.
func MatchesDietary(ingredients []string, prefs []DietaryPreference) bool {
	lowered := make([]string, len(ingredients))
	for i, name := range ingredients {
		lowered[i] = strings.ToLower(name)
	}

	containsAny := func(keywords []string) bool {
		for _, ing := range lowered {
			for _, kw := range keywords {
				if strings.Contains(ing, kw) {
					return true
				}
			}
		}
		return false
	}

	for _, pref := range prefs {
		name := strings.ToLower(strings.TrimSpace(pref.Name))
		switch {
		case pref.Type == PreferenceAllergy:
			if name != "" && containsAny([]string{name}) {
				return false
			}
		case name == "vegetarian":
			if containsAny(meatKeywords) {
				return false
			}
		case name == "vegan":
			if containsAny(animalKeywords) {
				return false
			}
		case name == "gluten-free":
			if containsAny(glutenKeywords) {
				return false
			}
		}
	}
	return true
}
