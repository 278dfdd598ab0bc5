package types

import (
	"time"

	"github.com/foodplanner/backend/internal/planner"
	"github.com/google/uuid"
)

// Date is a calendar date encoded as YYYY-MM-DD
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &time.ParseError{Layout: dateLayout, Value: s}
	}
	t, err := time.Parse(dateLayout, s[1:len(s)-1])
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// RegisterRequest represents the request body for creating an account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"user_id"`
}

// CreateMealPlanRequest asks for a new optimized plan
type CreateMealPlanRequest struct {
	StoreIDs             []string                    `json:"store_ids"`
	StartDate            Date                        `json:"start_date"`
	EndDate              Date                        `json:"end_date"`
	PeopleCount          int                         `json:"people_count"`
	DietaryPreferences   []planner.DietaryPreference `json:"dietary_preferences" binding:"dive"`
	BudgetMax            *float64                    `json:"budget_max"`
	PreselectedRecipeIDs []string                    `json:"preselected_recipe_ids"`
}

// MealSlotUpdate changes a single slot. A nil RecipeID clears the slot.
type MealSlotUpdate struct {
	ScheduledDate Date    `json:"scheduled_date"`
	MealType      string  `json:"meal_type" binding:"required,oneof=breakfast lunch dinner"`
	RecipeID      *string `json:"recipe_id"`
	IsLocked      bool    `json:"is_locked"`
}

// UpdateMealPlanRequest swaps or removes meals of a plan
type UpdateMealPlanRequest struct {
	Meals []MealSlotUpdate `json:"meals" binding:"dive"`
}

// StorePreferenceRequest adds a store to a user's preferences
type StorePreferenceRequest struct {
	StoreID  string `json:"store_id" binding:"required"`
	Priority int    `json:"priority" binding:"min=0,max=100"`
}

// TriggerIngestionRequest starts an ingestion run
type TriggerIngestionRequest struct {
	StoreIDs []string `json:"store_ids"`
	Force    bool     `json:"force"`
}

// MatchIngredientRequest matches one ingredient on demand without storing the result.
// Zero values fall back to top 5 at confidence 0.5.
type MatchIngredientRequest struct {
	IngredientName string   `json:"ingredient_name" binding:"required"`
	TopK           int      `json:"top_k" binding:"min=0,max=20"`
	MinConfidence  *float64 `json:"min_confidence" binding:"omitempty,min=0,max=1"`
}

// TaskResponse acknowledges an enqueued background task
type TaskResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
