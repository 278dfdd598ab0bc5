package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/matching"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultMatchTopK       = 5
	defaultMatchConfidence = 0.5
)

// Catalog is the read side of the recipe and product graph
type Catalog interface {
	SearchRecipes(ctx context.Context, f catalog.RecipeFilter) ([]models.Recipe, error)
	FindRecipesByDiscountedIngredients(ctx context.Context, minDiscounted, limit int) ([]catalog.DiscountedRecipe, error)
	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)
	EstimateRecipeCost(ctx context.Context, recipeID string, preferDiscounts bool) (*catalog.CostEstimate, error)
	DeleteRecipe(ctx context.Context, id string) (bool, error)
	ListIngredients(ctx context.Context, limit int) ([]models.Ingredient, error)
	GetIngredient(ctx context.Context, name string) (*models.Ingredient, error)
	UnmatchedIngredients(ctx context.Context, limit int) ([]string, error)
	ProductsForIngredient(ctx context.Context, ingredient string, minConfidence float64, limit int) ([]catalog.ProductMatch, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Areas(ctx context.Context) ([]models.Area, error)
	Stats(ctx context.Context) (*catalog.Stats, error)
}

// IngredientMatcher scores products against an ingredient without storing matches
type IngredientMatcher interface {
	Match(ctx context.Context, ingredient string, topK int, minConfidence float64) ([]matching.Match, error)
}

type RecipeHandler struct {
	catalog Catalog
	matcher IngredientMatcher
	queue   TaskQueue
	logger  *zap.Logger
}

func NewRecipeHandler(c Catalog, matcher IngredientMatcher, queue TaskQueue, logger *zap.Logger) *RecipeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipeHandler{catalog: c, matcher: matcher, queue: queue, logger: logger}
}

// RegisterRoutes mounts recipe, ingredient and graph routes. limit guards the
// task triggers and may be nil.
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup, limit gin.HandlerFunc) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", h.ListRecipes)
		recipes.GET("/by-discounts", h.RecipesByDiscounts)
		recipes.GET("/:id", h.GetRecipe)
		recipes.GET("/:id/cost", h.RecipeCost)
		recipes.DELETE("/:id", h.DeleteRecipe)
	}

	ingredients := router.Group("/ingredients")
	{
		ingredients.GET("", h.ListIngredients)
		ingredients.GET("/unmatched", h.UnmatchedIngredients)
		ingredients.GET("/:name/products", h.IngredientProducts)
		ingredients.POST("/match", h.MatchIngredient)
	}

	router.GET("/categories", h.Categories)
	router.GET("/areas", h.Areas)

	graph := router.Group("/graph")
	{
		graph.GET("/stats", h.GraphStats)
		graph.POST("/ingest/mealdb", chain(limit, h.TriggerMealDBImport)...)
		graph.POST("/sync/products", chain(limit, h.TriggerProductSync)...)
		graph.POST("/compute-matches", chain(limit, h.TriggerComputeMatches)...)
		graph.POST("/refresh", chain(limit, h.TriggerFullRefresh)...)
	}
}

type recipeQuery struct {
	Name       string `form:"name"`
	Category   string `form:"category"`
	Area       string `form:"area"`
	Ingredient string `form:"ingredient"`
	Limit      int    `form:"limit,default=20" binding:"min=1,max=100"`
	Offset     int    `form:"offset,default=0" binding:"min=0"`
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	var q recipeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	recipes, err := h.catalog.SearchRecipes(c.Request.Context(), catalog.RecipeFilter{
		Name:       q.Name,
		Category:   q.Category,
		Area:       q.Area,
		Ingredient: q.Ingredient,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recipes": recipes,
		"total":   len(recipes),
		"offset":  q.Offset,
		"limit":   q.Limit,
	})
}

type discountRecipesQuery struct {
	MinDiscounted int `form:"min_discounted,default=1" binding:"min=1,max=20"`
	Limit         int `form:"limit,default=20" binding:"min=1,max=50"`
}

func (h *RecipeHandler) RecipesByDiscounts(c *gin.Context) {
	var q discountRecipesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	recipes, err := h.catalog.FindRecipesByDiscountedIngredients(c.Request.Context(), q.MinDiscounted, q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes, "total": len(recipes)})
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	recipe, err := h.catalog.GetRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

func (h *RecipeHandler) RecipeCost(c *gin.Context) {
	prefer := c.DefaultQuery("prefer_discounts", "true") != "false"
	estimate, err := h.catalog.EstimateRecipeCost(c.Request.Context(), c.Param("id"), prefer)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	deleted, err := h.catalog.DeleteRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !deleted {
		respondError(c, h.logger, catalog.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

type limitQuery struct {
	Limit int `form:"limit,default=100" binding:"min=1,max=1000"`
}

func (h *RecipeHandler) ListIngredients(c *gin.Context) {
	var q limitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	ingredients, err := h.catalog.ListIngredients(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingredients": ingredients, "total": len(ingredients)})
}

func (h *RecipeHandler) UnmatchedIngredients(c *gin.Context) {
	var q limitQuery
	if err := c.ShouldBindQuery(&q); err != nil || q.Limit > 500 {
		badRequest(c, "limit must be between 1 and 500")
		return
	}
	names, err := h.catalog.UnmatchedIngredients(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingredients": names, "total": len(names)})
}

type ingredientProductsQuery struct {
	MinConfidence float64 `form:"min_confidence,default=0.5" binding:"min=0,max=1"`
	Limit         int     `form:"limit,default=10" binding:"min=1,max=20"`
}

// IngredientProducts lists matched products. Unknown ingredients answer with
// an empty product list rather than 404.
func (h *RecipeHandler) IngredientProducts(c *gin.Context) {
	var q ingredientProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	name := c.Param("name")
	ctx := c.Request.Context()

	resp := gin.H{"name": name, "normalized_name": strings.ToLower(name), "description": nil}
	ingredient, err := h.catalog.GetIngredient(ctx, name)
	switch {
	case err == nil:
		resp["name"] = ingredient.Name
		resp["normalized_name"] = ingredient.NormalizedName
		if ingredient.Description != "" {
			resp["description"] = ingredient.Description
		}
	case !errors.Is(err, catalog.ErrNotFound):
		respondError(c, h.logger, err)
		return
	}

	products, err := h.catalog.ProductsForIngredient(ctx, name, q.MinConfidence, q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	resp["products"] = products
	c.JSON(http.StatusOK, resp)
}

func (h *RecipeHandler) MatchIngredient(c *gin.Context) {
	var req types.MatchIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	topK := req.TopK
	if topK == 0 {
		topK = defaultMatchTopK
	}
	minConfidence := defaultMatchConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}

	matches, err := h.matcher.Match(c.Request.Context(), req.IngredientName, topK, minConfidence)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ingredient_name": req.IngredientName,
		"matches":         matches,
		"total":           len(matches),
	})
}

func (h *RecipeHandler) Categories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories, "total": len(categories)})
}

func (h *RecipeHandler) Areas(c *gin.Context) {
	areas, err := h.catalog.Areas(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"areas": areas, "total": len(areas)})
}

func (h *RecipeHandler) GraphStats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

const taskStarted = "started"

func (h *RecipeHandler) TriggerMealDBImport(c *gin.Context) {
	enqueue(c, h.queue, h.logger, http.StatusOK, tasks.TypeMealDBImport, nil,
		taskStarted, "MealDB recipe import task has been queued")
}

func (h *RecipeHandler) TriggerProductSync(c *gin.Context) {
	enqueue(c, h.queue, h.logger, http.StatusOK, tasks.TypeProductSync, nil,
		taskStarted, "Product pricing sync task has been queued")
}

type computeMatchesQuery struct {
	MinConfidence float64 `form:"min_confidence,default=0.6" binding:"min=0,max=1"`
	TopK          int     `form:"top_k,default=3" binding:"min=1,max=10"`
}

func (h *RecipeHandler) TriggerComputeMatches(c *gin.Context) {
	var q computeMatchesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	enqueue(c, h.queue, h.logger, http.StatusOK, tasks.TypeComputeMatches,
		tasks.MatchPayload{MinConfidence: q.MinConfidence, TopK: q.TopK},
		taskStarted, "Ingredient matching task has been queued")
}

func (h *RecipeHandler) TriggerFullRefresh(c *gin.Context) {
	enqueue(c, h.queue, h.logger, http.StatusOK, tasks.TypeFullRefresh, nil,
		taskStarted, "Full catalog refresh task has been queued (may take up to 2 hours)")
}
