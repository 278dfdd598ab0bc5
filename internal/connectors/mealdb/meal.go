package mealdb

import (
	"fmt"
	"strings"
)

// Ingredient is one ingredient line of a meal
type Ingredient struct {
	Name    string `json:"name"`
	Measure string `json:"measure"`
}

// Meal is a parsed TheMealDB meal
type Meal struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Category     string       `json:"category,omitempty"`
	Area         string       `json:"area,omitempty"`
	Instructions string       `json:"instructions"`
	Thumbnail    string       `json:"thumbnail,omitempty"`
	Tags         []string     `json:"tags"`
	YoutubeURL   string       `json:"youtube_url,omitempty"`
	SourceURL    string       `json:"source_url,omitempty"`
	Ingredients  []Ingredient `json:"ingredients"`
}

// Category is an entry of categories.php
type Category struct {
	ID          string `json:"idCategory"`
	Name        string `json:"strCategory"`
	Thumbnail   string `json:"strCategoryThumb"`
	Description string `json:"strCategoryDescription"`
}

// MealSummary is the reduced form returned by filter.php
type MealSummary struct {
	ID        string `json:"idMeal"`
	Name      string `json:"strMeal"`
	Thumbnail string `json:"strMealThumb"`
}

// IngredientInfo is an entry of list.php?i=list
type IngredientInfo struct {
	ID          string `json:"idIngredient"`
	Name        string `json:"strIngredient"`
	Description string `json:"strDescription"`
}

// ParseMeal converts the raw API object. Ingredients come from the numbered
// strIngredientN/strMeasureN fields; blank ingredients are skipped.
func ParseMeal(raw map[string]any) Meal {
	str := func(key string) string {
		if v, ok := raw[key].(string); ok {
			return v
		}
		return ""
	}

	meal := Meal{
		ID:           str("idMeal"),
		Name:         str("strMeal"),
		Category:     str("strCategory"),
		Area:         str("strArea"),
		Instructions: str("strInstructions"),
		Thumbnail:    str("strMealThumb"),
		YoutubeURL:   str("strYoutube"),
		SourceURL:    str("strSource"),
		Tags:         []string{},
	}
	if meal.Name == "" {
		meal.Name = "Unknown Meal"
	}

	for i := 1; i <= 20; i++ {
		name := strings.TrimSpace(str(fmt.Sprintf("strIngredient%d", i)))
		if name == "" {
			continue
		}
		meal.Ingredients = append(meal.Ingredients, Ingredient{
			Name:    name,
			Measure: strings.TrimSpace(str(fmt.Sprintf("strMeasure%d", i))),
		})
	}

	for _, tag := range strings.Split(str("strTags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			meal.Tags = append(meal.Tags, tag)
		}
	}
	return meal
}
