package api

import (
	"context"
	"net/http"

	"github.com/foodplanner/backend/internal/middleware"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type StoreService interface {
	DiscoverStores(ctx context.Context, zipCode, brand string, limit int) ([]models.Store, error)
	GetStore(ctx context.Context, id string) (*models.Store, error)
	Preferences(ctx context.Context, userID uuid.UUID) ([]types.StorePreferenceResponse, error)
	AddPreference(ctx context.Context, userID uuid.UUID, req *types.StorePreferenceRequest) (*types.StorePreferenceResponse, error)
	UpdatePriority(ctx context.Context, userID uuid.UUID, storeID string, priority int) (*types.StorePreferenceResponse, error)
	RemovePreference(ctx context.Context, userID uuid.UUID, storeID string) error
}

type StoreHandler struct {
	stores StoreService
	logger *zap.Logger
}

func NewStoreHandler(stores StoreService, logger *zap.Logger) *StoreHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreHandler{stores: stores, logger: logger}
}

// RegisterRoutes mounts store discovery publicly and preferences behind auth.
func (h *StoreHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	stores := router.Group("/stores")
	{
		stores.GET("/discover", h.Discover)
		stores.GET("/:id", h.GetStore)
	}

	prefs := stores.Group("/users/:user_id/preferences", auth)
	{
		prefs.GET("", h.ListPreferences)
		prefs.POST("", h.AddPreference)
		prefs.PATCH("/:store_id", h.UpdatePreference)
		prefs.DELETE("/:store_id", h.RemovePreference)
	}
}

type discoverQuery struct {
	ZipCode string `form:"zip_code"`
	Brand   string `form:"brand"`
	Limit   int    `form:"limit,default=50" binding:"min=1,max=200"`
}

func (h *StoreHandler) Discover(c *gin.Context) {
	var q discoverQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	stores, err := h.stores.DiscoverStores(c.Request.Context(), q.ZipCode, q.Brand, q.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores, "total": len(stores)})
}

func (h *StoreHandler) GetStore(c *gin.Context) {
	store, err := h.stores.GetStore(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, store)
}

// ownUser resolves :user_id and rejects access to another user's preferences.
func (h *StoreHandler) ownUser(c *gin.Context) (uuid.UUID, bool) {
	requested, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		badRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	current, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return uuid.Nil, false
	}
	if current != requested {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot access another user's store preferences"})
		return uuid.Nil, false
	}
	return current, true
}

func (h *StoreHandler) ListPreferences(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}
	prefs, err := h.stores.Preferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "preferences": prefs, "total": len(prefs)})
}

func (h *StoreHandler) AddPreference(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}
	var req types.StorePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	pref, err := h.stores.AddPreference(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, pref)
}

type priorityQuery struct {
	Priority *int `form:"priority" binding:"required,min=0,max=100"`
}

func (h *StoreHandler) UpdatePreference(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}
	var q priorityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "priority must be between 0 and 100")
		return
	}
	pref, err := h.stores.UpdatePriority(c.Request.Context(), userID, c.Param("store_id"), *q.Priority)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

func (h *StoreHandler) RemovePreference(c *gin.Context) {
	userID, ok := h.ownUser(c)
	if !ok {
		return
	}
	if err := h.stores.RemovePreference(c.Request.Context(), userID, c.Param("store_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
