package api

import (
	"context"
	"net/http"

	"github.com/foodplanner/backend/internal/middleware"
	"github.com/foodplanner/backend/internal/planner"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MealPlanService interface {
	CreateMealPlan(ctx context.Context, userID uuid.UUID, req *types.CreateMealPlanRequest) (*types.MealPlanResponse, error)
	ListMealPlans(ctx context.Context, userID uuid.UUID, limit, offset int) (*types.MealPlanListResponse, error)
	GetMealPlan(ctx context.Context, userID, planID uuid.UUID) (*types.MealPlanResponse, error)
	UpdateMealPlan(ctx context.Context, userID, planID uuid.UUID, req *types.UpdateMealPlanRequest) (*types.MealPlanResponse, error)
	DeleteMealPlan(ctx context.Context, userID, planID uuid.UUID) error
	ShoppingList(ctx context.Context, userID, planID uuid.UUID) (*planner.ShoppingList, error)
	Replacements(ctx context.Context, userID, planID uuid.UUID, recipeID, criteria string, limit int) ([]planner.PlannedRecipe, error)
}

type MealPlanHandler struct {
	plans  MealPlanService
	logger *zap.Logger
}

func NewMealPlanHandler(plans MealPlanService, logger *zap.Logger) *MealPlanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MealPlanHandler{plans: plans, logger: logger}
}

// RegisterRoutes mounts the meal plan routes behind auth. limit guards plan
// creation and may be nil.
func (h *MealPlanHandler) RegisterRoutes(router *gin.RouterGroup, auth, limit gin.HandlerFunc) {
	plans := router.Group("/meal-plans", auth)
	{
		plans.POST("", chain(limit, h.Create)...)
		plans.GET("", h.List)
		plans.GET("/:id", h.Get)
		plans.PATCH("/:id", h.Update)
		plans.DELETE("/:id", h.Delete)
		plans.GET("/:id/shopping-list", h.ShoppingList)
		plans.GET("/:id/replacements/:recipe_id", h.Replacements)
	}
}

// planRequest resolves the current user and the :id plan parameter.
func planRequest(c *gin.Context) (userID, planID uuid.UUID, ok bool) {
	userID, ok = middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid meal plan id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, planID, true
}

func (h *MealPlanHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	var req types.CreateMealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	plan, err := h.plans.CreateMealPlan(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

type listPlansQuery struct {
	Limit  int `form:"limit,default=10" binding:"min=1,max=50"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

func (h *MealPlanHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	var q listPlansQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	plans, err := h.plans.ListMealPlans(c.Request.Context(), userID, q.Limit, q.Offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *MealPlanHandler) Get(c *gin.Context) {
	userID, planID, ok := planRequest(c)
	if !ok {
		return
	}
	plan, err := h.plans.GetMealPlan(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *MealPlanHandler) Update(c *gin.Context) {
	userID, planID, ok := planRequest(c)
	if !ok {
		return
	}
	var req types.UpdateMealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	plan, err := h.plans.UpdateMealPlan(c.Request.Context(), userID, planID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *MealPlanHandler) Delete(c *gin.Context) {
	userID, planID, ok := planRequest(c)
	if !ok {
		return
	}
	if err := h.plans.DeleteMealPlan(c.Request.Context(), userID, planID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MealPlanHandler) ShoppingList(c *gin.Context) {
	userID, planID, ok := planRequest(c)
	if !ok {
		return
	}
	list, err := h.plans.ShoppingList(c.Request.Context(), userID, planID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type replacementsQuery struct {
	Criteria string `form:"criteria,default=cheaper" binding:"oneof=cheaper different similar"`
	Limit    int    `form:"limit,default=5" binding:"min=1,max=20"`
}

func (h *MealPlanHandler) Replacements(c *gin.Context) {
	userID, planID, ok := planRequest(c)
	if !ok {
		return
	}
	var q replacementsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "criteria must be one of cheaper, different, similar")
		return
	}
	recipeID := c.Param("recipe_id")
	alternatives, err := h.plans.Replacements(c.Request.Context(), userID, planID, recipeID, q.Criteria, q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipe_id":    recipeID,
		"criteria":     q.Criteria,
		"replacements": alternatives,
		"total":        len(alternatives),
	})
}
