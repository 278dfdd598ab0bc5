package models

import (
	"strings"
	"time"
)

// Category groups recipes (IN_CATEGORY)
type Category struct {
	Name        string `gorm:"type:varchar(128);primaryKey" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Thumbnail   string `gorm:"size:512" json:"thumbnail,omitempty"`
}

// Area is a cuisine of origin (FROM_AREA)
type Area struct {
	Name string `gorm:"type:varchar(128);primaryKey" json:"name"`
}

// Recipe is a meal imported from TheMealDB
type Recipe struct {
	ID           string             `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name         string             `gorm:"size:255;not null;index" json:"name"`
	Category     string             `gorm:"type:varchar(128);index" json:"category,omitempty"`
	Area         string             `gorm:"type:varchar(128);index" json:"area,omitempty"`
	Instructions string             `gorm:"type:text" json:"instructions,omitempty"`
	ImageURL     string             `gorm:"size:512" json:"image_url,omitempty"`
	YoutubeURL   string             `gorm:"size:512" json:"youtube_url,omitempty"`
	SourceURL    string             `gorm:"size:512" json:"source_url,omitempty"`
	Tags         StringList         `gorm:"type:jsonb" json:"tags"`
	Servings     int                `gorm:"not null;default:4" json:"servings"`
	Ingredients  []RecipeIngredient `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"ingredients,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Ingredient is a canonical ingredient keyed by its normalized name
type Ingredient struct {
	NormalizedName string `gorm:"type:varchar(255);primaryKey" json:"normalized_name"`
	Name           string `gorm:"size:255;not null" json:"name"`
	Description    string `gorm:"type:text" json:"description,omitempty"`
}

// IngredientKey is the normalized name ingredients are keyed by.
func IngredientKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RecipeIngredient is the CONTAINS edge between a recipe and an ingredient
type RecipeIngredient struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	RecipeID       string `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_recipe_ingredient" json:"-"`
	IngredientName string `gorm:"type:varchar(255);not null;index;uniqueIndex:idx_recipe_ingredient" json:"normalized_name"`
	Name           string `gorm:"size:255" json:"name"`
	Measure        string `gorm:"size:128" json:"measure"`
	Position       int    `json:"-"`
}

// IngredientMatch is the MATCHES edge between an ingredient and a product
type IngredientMatch struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	IngredientName  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_ingredient_product" json:"ingredient"`
	ProductID       string    `gorm:"type:varchar(128);not null;index;uniqueIndex:idx_ingredient_product" json:"product_id"`
	ConfidenceScore float64   `gorm:"not null;index" json:"confidence"`
	MatchType       string    `gorm:"size:16;not null" json:"match_type"`
	CreatedAt       time.Time `json:"created_at"`
	Product         *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
