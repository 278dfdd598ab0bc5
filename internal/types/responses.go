package types

import (
	"time"

	"github.com/google/uuid"
)

// PlanRecipe is a recipe as it appears in a meal plan
type PlanRecipe struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Thumbnail             string   `json:"thumbnail,omitempty"`
	ScheduledDate         Date     `json:"scheduled_date"`
	MealType              string   `json:"meal_type"`
	Servings              int      `json:"servings"`
	EstimatedCost         *float64 `json:"estimated_cost"`
	EstimatedSavings      *float64 `json:"estimated_savings"`
	IsLocked              bool     `json:"is_locked"`
	SuggestionReason      string   `json:"suggestion_reason,omitempty"`
	DiscountedIngredients []string `json:"discounted_ingredients"`
}

// MealPlanResponse is a meal plan with its scheduled recipes
type MealPlanResponse struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	StartDate    Date         `json:"start_date"`
	EndDate      Date         `json:"end_date"`
	PeopleCount  int          `json:"people_count"`
	TotalCost    float64      `json:"total_cost"`
	TotalSavings float64      `json:"total_savings"`
	Recipes      []PlanRecipe `json:"recipes"`
	CreatedAt    time.Time    `json:"created_at"`
}

// MealPlanListResponse is a page of meal plans
type MealPlanListResponse struct {
	Plans []MealPlanResponse `json:"plans"`
	Total int64              `json:"total"`
}

// StorePreferenceResponse is one of a user's preferred stores
type StorePreferenceResponse struct {
	ID         uint   `json:"id"`
	StoreID    string `json:"store_id"`
	StoreName  string `json:"store_name,omitempty"`
	StoreBrand string `json:"store_brand,omitempty"`
	Priority   int    `json:"priority"`
	IsActive   bool   `json:"is_active"`
}
