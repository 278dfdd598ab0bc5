package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/planner"
	"github.com/foodplanner/backend/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MaxPlanDays        = 30
	DefaultPeopleCount = 2
	MaxPeopleCount     = 20
	DefaultMealType    = "dinner"
	fallbackReason     = "Random selection (optimizer unavailable)"
)

var (
	ErrMealPlanNotFound  = errors.New("meal plan not found")
	ErrInvalidDateRange  = errors.New("end_date must be after start_date")
	ErrPlanTooLong       = fmt.Errorf("maximum plan duration is %d days", MaxPlanDays)
	ErrInvalidPeople     = fmt.Errorf("people_count must be between 1 and %d", MaxPeopleCount)
	ErrRecipeNotInPlan   = errors.New("recipe is not part of the meal plan")
	ErrMissingPlanDates  = errors.New("start_date and end_date are required")
	ErrInvalidMealUpdate = errors.New("scheduled_date is required")
)

// PlanBuilder is the planner surface the meal plan service needs.
// *planner.Planner satisfies it.
type PlanBuilder interface {
	Optimize(ctx context.Context, req planner.Request) ([]planner.PlannedRecipe, error)
	FindReplacement(ctx context.Context, recipeID, criteria string, excludedIDs []string, limit int) ([]planner.PlannedRecipe, error)
	BuildShoppingList(ctx context.Context, planID string, recipes []models.Recipe, people int, preferredStores []string) *planner.ShoppingList
}

// RecipeSource loads recipes. *catalog.Repository satisfies it.
type RecipeSource interface {
	ListRecipes(ctx context.Context, limit int, exclude []string) ([]models.Recipe, error)
	RecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error)
}

// MealPlanService creates and manages users' meal plans
type MealPlanService struct {
	db      *gorm.DB
	planner PlanBuilder
	recipes RecipeSource
	logger  *zap.Logger
}

func NewMealPlanService(db *gorm.DB, p PlanBuilder, recipes RecipeSource, logger *zap.Logger) *MealPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MealPlanService{db: db, planner: p, recipes: recipes, logger: logger}
}

// CreateMealPlan schedules one optimized dinner per day of the requested range.
// When the optimizer fails, recipes are picked from the catalog in name order.
func (s *MealPlanService) CreateMealPlan(ctx context.Context, userID uuid.UUID, req *types.CreateMealPlanRequest) (*types.MealPlanResponse, error) {
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, ErrMissingPlanDates
	}
	start, end := models.Day(req.StartDate.Time), models.Day(req.EndDate.Time)
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > MaxPlanDays {
		return nil, ErrPlanTooLong
	}
	people := req.PeopleCount
	if people == 0 {
		people = DefaultPeopleCount
	}
	if people < 1 || people > MaxPeopleCount {
		return nil, ErrInvalidPeople
	}

	log := s.logger.With(zap.String("user_id", userID.String()))
	log.Info("creating meal plan",
		zap.Time("start_date", start), zap.Time("end_date", end), zap.Int("people", people))

	var (
		planned      []types.PlanRecipe
		totalCost    float64
		totalSavings float64
	)
	chosen, err := s.planner.Optimize(ctx, planner.Request{
		Days:                 days,
		PeopleCount:          people,
		StoreIDs:             req.StoreIDs,
		Dietary:              req.DietaryPreferences,
		BudgetMax:            req.BudgetMax,
		PreselectedRecipeIDs: req.PreselectedRecipeIDs,
	})
	if err == nil {
		for i, r := range chosen {
			cost, savings := r.EstimatedCost, r.EstimatedSavings
			planned = append(planned, types.PlanRecipe{
				ID:                    r.RecipeID,
				Name:                  r.RecipeName,
				Thumbnail:             r.Thumbnail,
				ScheduledDate:         types.Date{Time: start.AddDate(0, 0, i)},
				MealType:              DefaultMealType,
				Servings:              people,
				EstimatedCost:         &cost,
				EstimatedSavings:      &savings,
				SuggestionReason:      r.SuggestionReason,
				DiscountedIngredients: nonNil(r.DiscountedIngredients),
			})
			totalCost += cost
			totalSavings += savings
		}
		log.Info("optimizer selected recipes", zap.Int("count", len(chosen)))
	} else {
		log.Warn("optimizer failed, falling back to simple selection", zap.Error(err))
		recipes, ferr := s.recipes.ListRecipes(ctx, days, nil)
		if ferr != nil {
			log.Error("fallback recipe selection failed", zap.Error(ferr))
		}
		for i, r := range recipes {
			planned = append(planned, types.PlanRecipe{
				ID:                    r.ID,
				Name:                  r.Name,
				Thumbnail:             r.ImageURL,
				ScheduledDate:         types.Date{Time: start.AddDate(0, 0, i)},
				MealType:              DefaultMealType,
				Servings:              people,
				SuggestionReason:      fallbackReason,
				DiscountedIngredients: []string{},
			})
		}
	}

	dietary := req.DietaryPreferences
	if dietary == nil {
		dietary = []planner.DietaryPreference{}
	}
	storeIDs := req.StoreIDs
	if storeIDs == nil {
		storeIDs = []string{}
	}
	plan := &models.MealPlan{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		TotalCost: totalCost,
		Metadata: models.JSONMap{
			"people_count":        people,
			"total_savings":       totalSavings,
			"dietary_preferences": dietary,
			"store_ids":           storeIDs,
		},
	}
	for _, p := range planned {
		plan.Recipes = append(plan.Recipes, models.MealPlanRecipe{
			RecipeID:      p.ID,
			ScheduledDate: p.ScheduledDate.Time,
			MealType:      p.MealType,
		})
	}
	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		return nil, fmt.Errorf("save meal plan: %w", err)
	}
	log.Info("created meal plan", zap.String("meal_plan_id", plan.ID.String()), zap.Int("recipes", len(planned)))

	if planned == nil {
		planned = []types.PlanRecipe{}
	}
	return &types.MealPlanResponse{
		ID:           plan.ID,
		UserID:       userID,
		StartDate:    types.Date{Time: start},
		EndDate:      types.Date{Time: end},
		PeopleCount:  people,
		TotalCost:    totalCost,
		TotalSavings: totalSavings,
		Recipes:      planned,
		CreatedAt:    plan.CreatedAt,
	}, nil
}

// ListMealPlans returns the user's plans, newest first.
func (s *MealPlanService) ListMealPlans(ctx context.Context, userID uuid.UUID, limit, offset int) (*types.MealPlanListResponse, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	q := s.db.WithContext(ctx).Model(&models.MealPlan{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	var plans []models.MealPlan
	err := withSlots(q).Order("created_at DESC").Offset(offset).Limit(limit).Find(&plans).Error
	if err != nil {
		return nil, err
	}

	out := &types.MealPlanListResponse{Plans: make([]types.MealPlanResponse, 0, len(plans)), Total: total}
	for i := range plans {
		out.Plans = append(out.Plans, *toResponse(&plans[i]))
	}
	return out, nil
}

func (s *MealPlanService) GetMealPlan(ctx context.Context, userID, planID uuid.UUID) (*types.MealPlanResponse, error) {
	plan, err := s.load(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return toResponse(plan), nil
}

// UpdateMealPlan applies slot changes: a nil recipe clears the slot, an existing
// date and meal type is replaced, anything else is added.
func (s *MealPlanService) UpdateMealPlan(ctx context.Context, userID, planID uuid.UUID, req *types.UpdateMealPlanRequest) (*types.MealPlanResponse, error) {
	plan, err := s.load(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	for _, m := range req.Meals {
		if m.ScheduledDate.IsZero() {
			return nil, ErrInvalidMealUpdate
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range req.Meals {
			day := models.Day(m.ScheduledDate.Time)
			idx := slices.IndexFunc(plan.Recipes, func(r models.MealPlanRecipe) bool {
				return models.Day(r.ScheduledDate).Equal(day) && r.MealType == m.MealType
			})

			switch {
			case m.RecipeID == nil:
				if idx < 0 {
					continue
				}
				if err := tx.Delete(&models.MealPlanRecipe{}, plan.Recipes[idx].ID).Error; err != nil {
					return err
				}
				plan.Recipes = slices.Delete(plan.Recipes, idx, idx+1)
			case idx >= 0:
				slot := &plan.Recipes[idx]
				err := tx.Model(&models.MealPlanRecipe{}).Where("id = ?", slot.ID).
					Updates(map[string]any{"recipe_id": *m.RecipeID, "is_locked": m.IsLocked}).Error
				if err != nil {
					return err
				}
				slot.RecipeID, slot.IsLocked = *m.RecipeID, m.IsLocked
			default:
				slot := models.MealPlanRecipe{
					MealPlanID:    plan.ID,
					RecipeID:      *m.RecipeID,
					ScheduledDate: day,
					MealType:      m.MealType,
					IsLocked:      m.IsLocked,
				}
				if err := tx.Create(&slot).Error; err != nil {
					return err
				}
				plan.Recipes = append(plan.Recipes, slot)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update meal plan: %w", err)
	}
	s.logger.Info("updated meal plan", zap.String("meal_plan_id", planID.String()), zap.Int("changes", len(req.Meals)))

	return s.GetMealPlan(ctx, userID, planID)
}

func (s *MealPlanService) DeleteMealPlan(ctx context.Context, userID, planID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", planID, userID).Delete(&models.MealPlan{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMealPlanNotFound
		}
		return tx.Where("meal_plan_id = ?", planID).Delete(&models.MealPlanRecipe{}).Error
	})
	if err != nil {
		return err
	}
	s.logger.Info("deleted meal plan", zap.String("meal_plan_id", planID.String()))
	return nil
}

// ShoppingList aggregates the ingredients of every scheduled meal, scaled to the
// plan's people count and matched against the plan's stores.
func (s *MealPlanService) ShoppingList(ctx context.Context, userID, planID uuid.UUID) (*planner.ShoppingList, error) {
	plan, err := s.load(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(plan.Recipes))
	for _, slot := range plan.Recipes {
		ids = append(ids, slot.RecipeID)
	}
	recipes, err := s.recipes.RecipesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load plan recipes: %w", err)
	}
	byID := make(map[string]models.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}
	// one entry per scheduled meal, so a recipe cooked twice counts twice
	meals := make([]models.Recipe, 0, len(plan.Recipes))
	for _, slot := range plan.Recipes {
		if r, ok := byID[slot.RecipeID]; ok {
			meals = append(meals, r)
		}
	}

	return s.planner.BuildShoppingList(ctx, plan.ID.String(), meals, plan.PeopleCount(), plan.StoreIDs()), nil
}

// Replacements suggests recipes to swap in for recipeID, skipping recipes already in the plan.
func (s *MealPlanService) Replacements(ctx context.Context, userID, planID uuid.UUID, recipeID, criteria string, limit int) ([]planner.PlannedRecipe, error) {
	plan, err := s.load(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	var excluded []string
	found := false
	for _, slot := range plan.Recipes {
		excluded = append(excluded, slot.RecipeID)
		if slot.RecipeID == recipeID {
			found = true
		}
	}
	if !found {
		return nil, ErrRecipeNotInPlan
	}
	return s.planner.FindReplacement(ctx, recipeID, criteria, excluded, limit)
}

func (s *MealPlanService) load(ctx context.Context, userID, planID uuid.UUID) (*models.MealPlan, error) {
	var plan models.MealPlan
	err := withSlots(s.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", planID, userID).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMealPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func withSlots(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Recipes", func(db *gorm.DB) *gorm.DB {
			return db.Order("scheduled_date").Order("meal_type")
		}).
		Preload("Recipes.Recipe")
}

func toResponse(plan *models.MealPlan) *types.MealPlanResponse {
	people := plan.PeopleCount()
	savings, _ := plan.Metadata["total_savings"].(float64)

	recipes := make([]types.PlanRecipe, 0, len(plan.Recipes))
	for _, slot := range plan.Recipes {
		r := types.PlanRecipe{
			ID:                    slot.RecipeID,
			Name:                  "Unknown",
			ScheduledDate:         types.Date{Time: slot.ScheduledDate},
			MealType:              slot.MealType,
			Servings:              people,
			IsLocked:              slot.IsLocked,
			DiscountedIngredients: []string{},
		}
		if slot.Recipe != nil {
			r.Name = slot.Recipe.Name
			r.Thumbnail = slot.Recipe.ImageURL
		}
		recipes = append(recipes, r)
	}
	return &types.MealPlanResponse{
		ID:           plan.ID,
		UserID:       plan.UserID,
		StartDate:    types.Date{Time: plan.StartDate},
		EndDate:      types.Date{Time: plan.EndDate},
		PeopleCount:  people,
		TotalCost:    plan.TotalCost,
		TotalSavings: savings,
		Recipes:      recipes,
		CreatedAt:    plan.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
