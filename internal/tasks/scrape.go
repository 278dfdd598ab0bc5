package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodplanner/backend/internal/metrics"
	"github.com/foodplanner/backend/internal/scrapers"
	"go.uber.org/zap"
)

const (
	scrapeBatchSize   = 50
	scrapeTimeLimit   = 4 * time.Hour
	maxProgressErrors = 10
	maxScrapeErrorLen = 500
)

// FullScraper is a store scraper that can walk its whole catalogue
type FullScraper interface {
	scrapers.Scraper
	ScrapeAll(ctx context.Context, opts scrapers.FullScrapeOptions) (*scrapers.Progress, error)
}

// ProductStore persists scraped products
type ProductStore interface {
	EnsureStore(ctx context.Context, storeID string, s scrapers.Scraper) error
	UpsertProducts(ctx context.Context, storeID string, products []scrapers.Product) (int, error)
}

// ScrapeRequest is the payload of a full scrape task
type ScrapeRequest struct {
	Categories []string `json:"categories,omitempty"`
	ResumeFrom string   `json:"resume_from_task_id,omitempty"`
	DryRun     bool     `json:"dry_run"`
}

// ScrapeRunner runs full scrapes with progress tracking. Only one runs at a time.
type ScrapeRunner struct {
	tracker   *Tracker
	scraper   FullScraper
	store     ProductStore
	timeLimit time.Duration
	logger    *zap.Logger
}

func NewScrapeRunner(tracker *Tracker, scraper FullScraper, store ProductStore, logger *zap.Logger) *ScrapeRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScrapeRunner{
		tracker:   tracker,
		scraper:   scraper,
		store:     store,
		timeLimit: scrapeTimeLimit,
		logger:    logger,
	}
}

func (r *ScrapeRunner) Tracker() *Tracker { return r.tracker }

// Run scrapes every requested category and saves products in batches. The
// returned progress is also the final state stored in Redis; err is set only
// when the scrape failed.
func (r *ScrapeRunner) Run(ctx context.Context, taskID string, req ScrapeRequest) (*ScrapeProgress, error) {
	log := r.logger.With(zap.String("task_id", taskID), zap.Bool("dry_run", req.DryRun))
	now := r.tracker.now().UTC()
	progress := &ScrapeProgress{
		TaskID:     taskID,
		Status:     ScrapeRunning,
		DryRun:     req.DryRun,
		Categories: req.Categories,
		Errors:     []string{},
		StartedAt:  now,
	}

	acquired, err := r.tracker.Acquire(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("acquire scrape lock: %w", err)
	}
	if !acquired {
		active, _ := r.tracker.Active(ctx)
		log.Warn("another scrape is already active", zap.String("active", active))
		progress.Status = ScrapeRejected
		progress.Reason = fmt.Sprintf("Another scrape is already active: %s", active)
		_ = r.tracker.SaveProgress(ctx, progress)
		return progress, nil
	}
	defer func() {
		if err := r.tracker.Release(context.WithoutCancel(ctx), taskID); err != nil {
			log.Warn("failed to release scrape lock", zap.Error(err))
		}
	}()

	categories := req.Categories
	if req.ResumeFrom != "" {
		cp, err := r.tracker.Checkpoint(ctx, req.ResumeFrom)
		if err != nil {
			log.Warn("failed to load checkpoint", zap.String("resume_from", req.ResumeFrom), zap.Error(err))
		} else if cp != nil && len(cp.RemainingCategories) > 0 {
			categories = cp.RemainingCategories
			progress.ResumedFrom = req.ResumeFrom
			log.Info("resuming from checkpoint", zap.Int("remaining", len(categories)))
		}
	}
	progress.Categories = categories
	if err := r.tracker.SaveProgress(ctx, progress); err != nil {
		log.Warn("failed to save progress", zap.Error(err))
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeLimit)
	defer cancel()

	storeID := r.scraper.StoreID()
	if !req.DryRun {
		if err := r.store.EnsureStore(runCtx, storeID, r.scraper); err != nil {
			return r.finish(ctx, progress, fmt.Errorf("ensure store: %w", err))
		}
	}

	var batch []scrapers.Product
	flush := func(ctx context.Context, n int) error {
		saved, err := r.store.UpsertProducts(ctx, storeID, batch[:n])
		if err != nil {
			return fmt.Errorf("save product batch: %w", err)
		}
		batch = batch[n:]
		progress.ProductsSaved += saved
		metrics.ProductsUpserted.WithLabelValues(storeID).Add(float64(saved))
		return nil
	}

	result, scrapeErr := r.scraper.ScrapeAll(runCtx, scrapers.FullScrapeOptions{
		Categories: categories,
		OnCategory: func(ctx context.Context, _ string, products []scrapers.Product) error {
			if req.DryRun {
				return nil
			}
			batch = append(batch, products...)
			for len(batch) >= scrapeBatchSize {
				if err := flush(ctx, scrapeBatchSize); err != nil {
					return err
				}
			}
			return nil
		},
		OnProgress: func(p scrapers.Progress, remaining []string) {
			progress.CategoriesTotal = p.CategoriesTotal
			progress.CategoriesCompleted = p.CategoriesCompleted
			progress.CurrentCategory = p.CurrentCategory
			progress.ProductsScraped = p.ProductsScraped
			progress.Errors = p.Errors
			if r.tracker.CancelRequested(ctx, taskID) {
				progress.Status = ScrapeCancelling
			}
			if err := r.tracker.SaveProgress(ctx, progress); err != nil {
				log.Warn("failed to save progress", zap.Error(err))
			}
			cp := &Checkpoint{RemainingCategories: remaining, ProductsScraped: p.ProductsScraped}
			if err := r.tracker.SaveCheckpoint(ctx, taskID, cp); err != nil {
				log.Warn("failed to save checkpoint", zap.Error(err))
			}
		},
		Cancelled: func(ctx context.Context) bool {
			if r.tracker.CancelRequested(ctx, taskID) {
				progress.Status = ScrapeCancelling
				return true
			}
			return false
		},
	})
	if result != nil {
		progress.CategoriesTotal = result.CategoriesTotal
		progress.CategoriesCompleted = result.CategoriesCompleted
		progress.CurrentCategory = result.CurrentCategory
		progress.ProductsScraped = result.ProductsScraped
		progress.Errors = result.Errors
	}

	// whatever was scraped before a stop is still saved
	if len(batch) > 0 && !req.DryRun {
		if err := flush(context.WithoutCancel(ctx), len(batch)); err != nil && scrapeErr == nil {
			scrapeErr = err
		}
	}
	return r.finish(ctx, progress, scrapeErr)
}

func (r *ScrapeRunner) finish(ctx context.Context, p *ScrapeProgress, err error) (*ScrapeProgress, error) {
	now := r.tracker.now().UTC()
	if len(p.Errors) > maxProgressErrors {
		p.Errors = p.Errors[:maxProgressErrors]
	}
	var failure error
	switch {
	case err == nil:
		p.Status = ScrapeCompleted
		p.CompletedAt = &now
	case errors.Is(err, scrapers.ErrCancelled):
		p.Status = ScrapeCancelled
		if p.CancelledAt == nil {
			p.CancelledAt = &now
		}
	case errors.Is(err, context.DeadlineExceeded):
		p.Status = ScrapeTimeout
		p.Error = "Task exceeded time limit"
	default:
		p.Status = ScrapeFailed
		p.Error = truncate(err.Error(), maxScrapeErrorLen)
		p.FailedAt = &now
		failure = err
	}

	if err := r.tracker.SaveProgress(context.WithoutCancel(ctx), p); err != nil {
		r.logger.Warn("failed to save final progress", zap.String("task_id", p.TaskID), zap.Error(err))
	}
	r.logger.Info("full scrape finished",
		zap.String("task_id", p.TaskID),
		zap.String("status", p.Status),
		zap.Int("products_scraped", p.ProductsScraped),
		zap.Int("products_saved", p.ProductsSaved))
	return p, failure
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
