// Package matching links recipe ingredients to store products using exact,
// synonym and fuzzy name comparison.
package matching

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]bool{
	"fresh": true, "dried": true, "chopped": true, "diced": true, "minced": true,
	"sliced": true, "grated": true, "crushed": true, "ground": true, "whole": true,
	"large": true, "medium": true, "small": true, "raw": true, "cooked": true,
	"frozen": true, "canned": true, "organic": true, "free-range": true,
	"boneless": true, "skinless": true, "peeled": true, "deseeded": true,
	"trimmed": true, "washed": true, "ripe": true, "unripe": true, "softened": true,
	"melted": true, "cold": true, "warm": true, "hot": true, "plain": true,
	"unsalted": true, "salted": true, "sweetened": true, "unsweetened": true,
	"low-fat": true, "full-fat": true, "skimmed": true, "semi-skimmed": true,
	"virgin": true, "light": true, "dark": true, "white": true, "brown": true,
	"black": true, "red": true, "green": true, "yellow": true,
}

var (
	leadingMeasureRe = regexp.MustCompile(`^[\d½¼¾⅓⅔⅛]+(?:/\d+)?\s*(?:[\d½¼¾⅓⅔⅛]+(?:/\d+)?)?\s*(?:(?:cups?|tbsp|tsp|oz|g|kg|ml|l|lb)\b)?\s*`)
	parentheticalRe  = regexp.MustCompile(`\([^)]*\)`)
)

// foldName lowercases s in NFC form so a decomposed "å" from scraped
// pages compares equal to the composed form.
func foldName(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// NormalizeIngredient lowercases name and strips a leading amount, parenthetical
// notes and preparation words: "2 cups Chopped Onion (red)" -> "onion".
func NormalizeIngredient(name string) string {
	n := foldName(name)
	n = leadingMeasureRe.ReplaceAllString(n, "")
	n = parentheticalRe.ReplaceAllString(n, "")

	words := strings.Fields(n)
	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
