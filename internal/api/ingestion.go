package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/foodplanner/backend/internal/ingest"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type IngestionService interface {
	Health(ctx context.Context) *ingest.Health
	Stats(ctx context.Context) (*ingest.Stats, error)
	ListRuns(ctx context.Context, page, pageSize int, status string) (*ingest.RunPage, error)
	GetRun(ctx context.Context, id uint) (*models.IngestionRun, error)
	GetRunByTask(ctx context.Context, taskID string) (*models.IngestionRun, error)
}

type IngestionHandler struct {
	ingestion IngestionService
	queue     TaskQueue
	logger    *zap.Logger
}

func NewIngestionHandler(ingestion IngestionService, queue TaskQueue, logger *zap.Logger) *IngestionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionHandler{ingestion: ingestion, queue: queue, logger: logger}
}

// RegisterRoutes mounts the ingestion routes. limit guards the task triggers
// and may be nil.
func (h *IngestionHandler) RegisterRoutes(router *gin.RouterGroup, limit gin.HandlerFunc) {
	g := router.Group("/ingestion")
	{
		g.POST("/trigger", chain(limit, h.Trigger)...)
		g.POST("/cleanup", chain(limit, h.Cleanup)...)
		g.GET("/runs", h.ListRuns)
		g.GET("/runs/:id", h.GetRun)
		g.GET("/runs/by-task/:task_id", h.GetRunByTask)
		g.GET("/health", h.Health)
		g.GET("/stats", h.Stats)
	}
}

func (h *IngestionHandler) Trigger(c *gin.Context) {
	var req types.TriggerIngestionRequest
	// an empty body triggers all selected stores
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	opts := ingest.Options{StoreIDs: req.StoreIDs, Force: req.Force, TriggerType: ingest.TriggerManual}
	enqueue(c, h.queue, h.logger, http.StatusOK, tasks.TypeDailyIngestion, opts,
		tasks.StateQueued, "Ingestion task queued")
}

type runsQuery struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"page_size,default=20" binding:"min=1,max=100"`
	Status   string `form:"status"`
}

func (h *IngestionHandler) ListRuns(c *gin.Context) {
	var q runsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	page, err := h.ingestion.ListRuns(c.Request.Context(), q.Page, q.PageSize, q.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *IngestionHandler) GetRun(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid run id")
		return
	}
	run, err := h.ingestion.GetRun(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, runDetail(run))
}

func (h *IngestionHandler) GetRunByTask(c *gin.Context) {
	run, err := h.ingestion.GetRunByTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, runDetail(run))
}

func runDetail(run *models.IngestionRun) gin.H {
	return gin.H{
		"run":              run,
		"duration_seconds": run.DurationSeconds(),
	}
}

func (h *IngestionHandler) Health(c *gin.Context) {
	health := h.ingestion.Health(c.Request.Context())
	code := http.StatusOK
	if !health.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

func (h *IngestionHandler) Stats(c *gin.Context) {
	stats, err := h.ingestion.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type cleanupQuery struct {
	DaysToKeep int `form:"days_to_keep,default=30" binding:"min=7,max=365"`
}

func (h *IngestionHandler) Cleanup(c *gin.Context) {
	var q cleanupQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "days_to_keep must be between 7 and 365")
		return
	}
	enqueue(c, h.queue, h.logger, http.StatusAccepted, tasks.TypeCleanup,
		tasks.CleanupPayload{DaysToKeep: q.DaysToKeep}, tasks.StateQueued,
		"Cleanup task queued, keeping "+strconv.Itoa(q.DaysToKeep)+" days of data")
}

// chain prepends an optional middleware to a handler.
func chain(mw gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{mw, h}
}
