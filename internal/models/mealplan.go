package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MealPlan struct {
	ID        uuid.UUID        `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"user_id"`
	StartDate time.Time        `gorm:"type:date;not null" json:"start_date"`
	EndDate   time.Time        `gorm:"type:date;not null" json:"end_date"`
	TotalCost float64          `gorm:"not null;default:0" json:"total_cost"`
	Metadata  JSONMap          `gorm:"type:jsonb" json:"metadata"`
	Recipes   []MealPlanRecipe `gorm:"foreignKey:MealPlanID;constraint:OnDelete:CASCADE" json:"recipes"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// BeforeCreate assigns an id when none was set
func (p *MealPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PeopleCount reads people_count from the plan metadata, defaulting to 2
func (p *MealPlan) PeopleCount() int {
	switch v := p.Metadata["people_count"].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return 2
}

// StoreIDs reads store_ids from the plan metadata
func (p *MealPlan) StoreIDs() []string {
	var ids []string
	switch v := p.Metadata["store_ids"].(type) {
	case []any:
		for _, id := range v {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
	case []string:
		ids = append(ids, v...)
	}
	return ids
}

// MealPlanRecipe is one scheduled meal slot
type MealPlanRecipe struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	MealPlanID    uuid.UUID `gorm:"type:varchar(36);not null;index" json:"meal_plan_id"`
	RecipeID      string    `gorm:"type:varchar(64);not null" json:"recipe_id"`
	ScheduledDate time.Time `gorm:"type:date;not null" json:"scheduled_date"`
	MealType      string    `gorm:"size:16;not null;default:'dinner'" json:"meal_type"`
	IsLocked      bool      `gorm:"not null;default:false" json:"is_locked"`
	Recipe        *Recipe   `gorm:"foreignKey:RecipeID" json:"recipe,omitempty"`
}
