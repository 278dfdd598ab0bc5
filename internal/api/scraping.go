package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/foodplanner/backend/internal/scrapers"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScrapeTracker exposes the progress of full scrapes
type ScrapeTracker interface {
	Active(ctx context.Context) (string, error)
	Progress(ctx context.Context, taskID string) (*tasks.ScrapeProgress, error)
	Cancel(ctx context.Context, taskID string) (bool, error)
}

// CatalogueScraper is the store whose full catalogue can be scraped
type CatalogueScraper interface {
	Categories() []scrapers.Category
	HealthCheck(ctx context.Context) bool
}

type ScrapingHandler struct {
	tracker ScrapeTracker
	queue   TaskQueue
	scraper CatalogueScraper
	website string
	now     func() time.Time
	logger  *zap.Logger
}

func NewScrapingHandler(tracker ScrapeTracker, queue TaskQueue, scraper CatalogueScraper, logger *zap.Logger) *ScrapingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScrapingHandler{
		tracker: tracker,
		queue:   queue,
		scraper: scraper,
		website: scrapers.Rema1000BaseURL,
		now:     time.Now,
		logger:  logger,
	}
}

func (h *ScrapingHandler) RegisterRoutes(router *gin.RouterGroup, limit gin.HandlerFunc) {
	g := router.Group("/scraping/rema1000")
	{
		g.POST("/full", chain(limit, h.TriggerFull)...)
		g.GET("/status/:task_id", h.Status)
		g.POST("/cancel/:task_id", h.Cancel)
		g.GET("/active", h.Active)
		g.GET("/categories", h.Categories)
		g.GET("/health", h.Health)
	}
}

type fullScrapeRequest struct {
	Categories []string `json:"categories"`
	ResumeFrom string   `json:"resume_from_task_id"`
	DryRun     bool     `json:"dry_run"`
}

func (h *ScrapingHandler) TriggerFull(c *gin.Context) {
	var req fullScrapeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	ctx := c.Request.Context()

	active, err := h.tracker.Active(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if active != "" {
		h.logger.Warn("scrape request rejected, another scrape is active", zap.String("active_task_id", active))
		c.JSON(http.StatusConflict, ErrorResponse{Error: fmt.Sprintf(
			"Another scrape is already running (task_id: %s). Wait for it to complete or cancel it first.", active)})
		return
	}

	valid := h.slugs()
	var invalid []string
	for _, slug := range req.Categories {
		if !slices.Contains(valid, slug) {
			invalid = append(invalid, slug)
		}
	}
	if len(invalid) > 0 {
		badRequest(c, fmt.Sprintf("Invalid category slugs: %v. Valid options: %v", invalid, valid))
		return
	}

	id, err := h.queue.Enqueue(ctx, tasks.TypeFullScrape, tasks.ScrapeRequest{
		Categories: req.Categories,
		ResumeFrom: req.ResumeFrom,
		DryRun:     req.DryRun,
	})
	if err != nil {
		h.logger.Error("failed to queue scrape task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to queue scrape task"})
		return
	}

	n := len(req.Categories)
	if n == 0 {
		n = len(valid)
	}
	h.logger.Info("full scrape queued", zap.String("task_id", id),
		zap.Strings("categories", req.Categories), zap.Bool("dry_run", req.DryRun))
	c.JSON(http.StatusOK, gin.H{
		"task_id":            id,
		"status":             tasks.StateQueued,
		"message":            "REMA 1000 scrape task queued. Use /status/{task_id} to monitor progress.",
		"estimated_duration": fmt.Sprintf("%d-%d minutes", n*2, n*5),
	})
}

func (h *ScrapingHandler) slugs() []string {
	cats := h.scraper.Categories()
	out := make([]string, 0, len(cats))
	for _, cat := range cats {
		out = append(out, cat.Slug)
	}
	return out
}

// Status reports tracked progress, falling back to the queue state for
// scrapes that have not started yet.
func (h *ScrapingHandler) Status(c *gin.Context) {
	taskID := c.Param("task_id")
	ctx := c.Request.Context()

	progress, err := h.tracker.Progress(ctx, taskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if progress != nil {
		c.JSON(http.StatusOK, progress)
		return
	}

	st, err := h.queue.Status(ctx, taskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	switch st.State {
	case tasks.StateQueued:
		c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": "pending"})
	case tasks.StateFailed:
		msg := st.Error
		if msg == "" {
			msg = "Unknown error"
		}
		c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": tasks.ScrapeFailed, "error": msg})
	default:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No scrape found with task_id: " + taskID})
	}
}

func (h *ScrapingHandler) Cancel(c *gin.Context) {
	taskID := c.Param("task_id")
	ctx := c.Request.Context()

	progress, err := h.tracker.Progress(ctx, taskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if progress == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No scrape found with task_id: " + taskID})
		return
	}
	switch progress.Status {
	case tasks.ScrapeCompleted, tasks.ScrapeFailed, tasks.ScrapeCancelled, tasks.ScrapeTimeout, tasks.ScrapeRejected:
		badRequest(c, fmt.Sprintf("Scrape is already %s, cannot cancel.", progress.Status))
		return
	}

	ok, err := h.tracker.Cancel(ctx, taskID)
	if err != nil || !ok {
		h.logger.Error("failed to request cancellation", zap.String("task_id", taskID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to request cancellation"})
		return
	}
	h.logger.Info("cancellation requested", zap.String("task_id", taskID))
	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"status":  tasks.ScrapeCancelling,
		"message": "Cancellation requested. Scrape will stop after current operation.",
	})
}

func (h *ScrapingHandler) Active(c *gin.Context) {
	ctx := c.Request.Context()
	taskID, err := h.tracker.Active(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if taskID == "" {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	resp := gin.H{"active": true, "task_id": taskID}
	progress, err := h.tracker.Progress(ctx, taskID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if progress != nil {
		resp["status"] = progress
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ScrapingHandler) Categories(c *gin.Context) {
	cats := h.scraper.Categories()
	out := make([]gin.H, 0, len(cats))
	for _, cat := range cats {
		out = append(out, gin.H{"slug": cat.Slug, "name": cat.Name})
	}
	c.JSON(http.StatusOK, gin.H{"categories": out, "total": len(out)})
}

func (h *ScrapingHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"healthy":    h.scraper.HealthCheck(c.Request.Context()),
		"website":    h.website,
		"checked_at": h.now().UTC(),
	})
}
