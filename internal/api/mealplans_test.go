package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/foodplanner/backend/internal/api"
	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/planner"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/testhelpers"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct{}

func (stubPlanner) Optimize(_ context.Context, req planner.Request) ([]planner.PlannedRecipe, error) {
	out := []planner.PlannedRecipe{
		{RecipeID: "r1", RecipeName: "Arrabbiata", EstimatedCost: 50, EstimatedSavings: 5},
		{RecipeID: "r2", RecipeName: "Burger", EstimatedCost: 70},
	}
	return out[:min(req.Days, len(out))], nil
}

func (stubPlanner) FindReplacement(_ context.Context, _, _ string, _ []string, _ int) ([]planner.PlannedRecipe, error) {
	return []planner.PlannedRecipe{{RecipeID: "r3", RecipeName: "Curry"}}, nil
}

func (stubPlanner) BuildShoppingList(_ context.Context, planID string, _ []models.Recipe, _ int, _ []string) *planner.ShoppingList {
	return &planner.ShoppingList{MealPlanID: planID}
}

func setupMealPlans(t *testing.T) (*gin.Engine, string, string) {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	testhelpers.CreateRecipe(t, db, "r1", "Arrabbiata", "Pasta", [2]string{"penne", "500g"})
	testhelpers.CreateRecipe(t, db, "r2", "Burger", "Beef", [2]string{"beef", "400g"})
	testhelpers.CreateRecipe(t, db, "r3", "Curry", "Chicken", [2]string{"chicken", "1 kg"})

	auth, authSvc := authMiddleware(db)
	plans := service.NewMealPlanService(db, stubPlanner{}, catalog.NewRepository(db, nil), nil)
	r, v1 := newTestEngine()
	api.NewMealPlanHandler(plans, nil).RegisterRoutes(v1, auth, nil)

	_, token := registerUser(t, authSvc, "cook@example.com")
	_, other := registerUser(t, authSvc, "other@example.com")
	return r, token, other
}

func TestMealPlanLifecycle(t *testing.T) {
	r, token, other := setupMealPlans(t)

	create := map[string]any{"start_date": "2026-03-10", "end_date": "2026-03-11", "people_count": 2}
	w := doRequest(t, r, http.MethodPost, "/api/v1/meal-plans", create, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/v1/meal-plans", create, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plan := decode[types.MealPlanResponse](t, w)
	require.Len(t, plan.Recipes, 2)
	assert.Equal(t, 120.0, plan.TotalCost)
	path := "/api/v1/meal-plans/" + plan.ID.String()

	w = doRequest(t, r, http.MethodGet, "/api/v1/meal-plans?limit=5", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[types.MealPlanListResponse](t, w).Total)

	w = doRequest(t, r, http.MethodGet, path, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)

	// other users cannot see that the plan exists
	w = doRequest(t, r, http.MethodGet, path, nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	update := map[string]any{"meals": []map[string]any{
		{"scheduled_date": "2026-03-11", "meal_type": "dinner", "recipe_id": "r3", "is_locked": true},
	}}
	w = doRequest(t, r, http.MethodPatch, path, update, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[types.MealPlanResponse](t, w)
	require.Len(t, updated.Recipes, 2)
	assert.Equal(t, "r3", updated.Recipes[1].ID)
	assert.True(t, updated.Recipes[1].IsLocked)

	w = doRequest(t, r, http.MethodGet, path+"/shopping-list", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, plan.ID.String(), decode[planner.ShoppingList](t, w).MealPlanID)

	w = doRequest(t, r, http.MethodGet, path+"/replacements/r1?criteria=different", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	repl := decode[struct {
		Criteria string `json:"criteria"`
		Total    int    `json:"total"`
	}](t, w)
	assert.Equal(t, "different", repl.Criteria)
	assert.Equal(t, 1, repl.Total)

	w = doRequest(t, r, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(t, r, http.MethodGet, path, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMealPlanValidationErrors(t *testing.T) {
	r, token, _ := setupMealPlans(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing dates", map[string]any{}},
		{"end before start", map[string]any{"start_date": "2026-03-10", "end_date": "2026-03-09"}},
		{"longer than 30 days", map[string]any{"start_date": "2026-03-01", "end_date": "2026-04-15"}},
		{"malformed date", map[string]any{"start_date": "10/03/2026", "end_date": "2026-03-11"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodPost, "/api/v1/meal-plans", tt.body, token)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w := doRequest(t, r, http.MethodGet, "/api/v1/meal-plans/not-a-uuid", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/meal-plans/"+uuid.NewString()+"/replacements/r1?criteria=fancier", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplacementsForRecipeOutsidePlan(t *testing.T) {
	r, token, _ := setupMealPlans(t)

	w := doRequest(t, r, http.MethodPost, "/api/v1/meal-plans",
		map[string]any{"start_date": "2026-03-10", "end_date": "2026-03-10"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	plan := decode[types.MealPlanResponse](t, w)

	w = doRequest(t, r, http.MethodGet, "/api/v1/meal-plans/"+plan.ID.String()+"/replacements/r3", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
