// Package ingest runs the daily store ingestion: scrape every selected store,
// archive the raw payloads and upsert products and discounts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/foodplanner/backend/config"
	"github.com/foodplanner/backend/internal/archive"
	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/metrics"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/scrapers"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Result statuses besides the run statuses
const (
	StatusSkipped  = "skipped"
	StatusNoStores = "no_stores"
)

// Trigger types
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerRetry     = "retry"
)

const (
	maxErrorLength = 500
	maxRunErrors   = 5
)

// PricingSyncer refreshes the product discount projection
type PricingSyncer interface {
	SyncProductPricing(ctx context.Context, day time.Time) (*catalog.PricingResult, error)
}

// Service runs ingestion and answers questions about past runs
type Service struct {
	db          *gorm.DB
	redis       *redis.Client
	registry    *scrapers.Registry
	archive     *archive.Archive
	pricing     PricingSyncer
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a new ingestion Service. rdb and pricing may be nil.
func NewService(db *gorm.DB, rdb *redis.Client, registry *scrapers.Registry, arch *archive.Archive,
	pricing PricingSyncer, cfg config.IngestionConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		db:          db,
		redis:       rdb,
		registry:    registry,
		archive:     arch,
		pricing:     pricing,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Options selects what a run ingests
type Options struct {
	StoreIDs    []string `json:"store_ids,omitempty"`
	TaskID      string   `json:"task_id,omitempty"`
	Force       bool     `json:"force"`
	TriggerType string   `json:"trigger_type,omitempty"`

	// RetryCount is how many earlier attempts of the same task failed
	RetryCount int `json:"-"`
}

// Result summarises a run
type Result struct {
	Status           string   `json:"status"`
	Message          string   `json:"message,omitempty"`
	RunID            uint     `json:"run_id,omitempty"`
	StoresTotal      int      `json:"stores_total"`
	StoresCompleted  int      `json:"stores_completed"`
	StoresFailed     int      `json:"stores_failed"`
	ProductsUpdated  int      `json:"products_updated"`
	DiscountsUpdated int      `json:"discounts_updated"`
	Errors           []string `json:"errors"`
}

// RunDailyIngestion ingests the requested stores, or every selected store when
// none are given. A completed run for today short-circuits unless forced.
func (s *Service) RunDailyIngestion(ctx context.Context, opts Options) (*Result, error) {
	runDate := models.Day(s.now())
	if opts.TriggerType == "" {
		opts.TriggerType = TriggerScheduled
	}
	log := s.logger.With(zap.String("task_id", opts.TaskID), zap.Time("run_date", runDate))
	log.Info("starting daily ingestion")

	if !opts.Force {
		var existing models.IngestionRun
		err := s.db.WithContext(ctx).
			Where("run_date = ? AND status = ?", runDate, models.RunStatusCompleted).
			First(&existing).Error
		if err == nil {
			log.Info("ingestion already completed today", zap.Uint("run_id", existing.ID))
			return &Result{
				Status:  StatusSkipped,
				Message: fmt.Sprintf("Ingestion already completed for %s", runDate.Format("2006-01-02")),
				RunID:   existing.ID,
			}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check existing run: %w", err)
		}
	}

	storeIDs := uniqueIDs(opts.StoreIDs)
	if len(storeIDs) == 0 {
		var err error
		if storeIDs, err = s.selectedStores(ctx); err != nil {
			return nil, err
		}
	}
	if len(storeIDs) == 0 {
		log.Warn("no stores configured for ingestion")
		return &Result{Status: StatusNoStores, Message: "No stores configured for ingestion"}, nil
	}

	run := &models.IngestionRun{
		RunDate:     runDate,
		Status:      models.RunStatusRunning,
		TaskID:      opts.TaskID,
		TriggerType: opts.TriggerType,
		StoresTotal: len(storeIDs),
		StartedAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}
	log = log.With(zap.Uint("run_id", run.ID))
	log.Info("created ingestion run", zap.Int("stores", len(storeIDs)))

	res := &Result{RunID: run.ID, StoresTotal: len(storeIDs), Errors: []string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, storeID := range storeIDs {
		g.Go(func() error {
			sr := s.ingestStore(gctx, run.ID, storeID, opts.RetryCount)
			mu.Lock()
			defer mu.Unlock()
			if sr.err == nil {
				res.StoresCompleted++
				res.ProductsUpdated += sr.productsInserted
				res.DiscountsUpdated += sr.discountsInserted
			} else {
				res.StoresFailed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", storeID, sr.err))
			}
			// store failures are isolated and never cancel their siblings
			return nil
		})
	}
	_ = g.Wait()

	res.Status = runStatus(res.StoresCompleted, res.StoresFailed)
	completed := s.now().UTC()
	run.Status = res.Status
	run.StoresCompleted = res.StoresCompleted
	run.StoresFailed = res.StoresFailed
	run.ProductsUpdated = res.ProductsUpdated
	run.DiscountsUpdated = res.DiscountsUpdated
	run.CompletedAt = &completed
	if len(res.Errors) > 0 {
		run.ErrorMessage = strings.Join(res.Errors[:min(len(res.Errors), maxRunErrors)], "; ")
	}
	// the run row is finalised even when the caller's context is gone
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Save(run).Error; err != nil {
		return nil, fmt.Errorf("finalise ingestion run: %w", err)
	}
	metrics.IngestionRuns.WithLabelValues(res.Status).Inc()

	if res.Status != models.RunStatusFailed && s.pricing != nil {
		if pr, err := s.pricing.SyncProductPricing(ctx, runDate); err != nil {
			log.Error("pricing sync after ingestion failed", zap.Error(err))
		} else {
			log.Info("pricing synced", zap.Int("products", pr.ProductsSynced),
				zap.Int("with_discounts", pr.ProductsWithDiscounts))
		}
	}

	log.Info("ingestion completed",
		zap.String("status", res.Status),
		zap.Int("stores_completed", res.StoresCompleted),
		zap.Int("stores_total", res.StoresTotal),
		zap.Int("products", res.ProductsUpdated),
		zap.Int("discounts", res.DiscountsUpdated))
	return res, nil
}

func runStatus(completed, failed int) string {
	switch {
	case failed == 0:
		return models.RunStatusCompleted
	case completed == 0:
		return models.RunStatusFailed
	default:
		return models.RunStatusPartial
	}
}

// selectedStores returns stores picked by users followed by any other active store.
func (s *Service) selectedStores(ctx context.Context) ([]string, error) {
	db := s.db.WithContext(ctx)
	var preferred []string
	if err := db.Model(&models.UserStorePreference{}).
		Where("is_active = ?", true).
		Distinct().Order("store_id").
		Pluck("store_id", &preferred).Error; err != nil {
		return nil, fmt.Errorf("load store preferences: %w", err)
	}
	var active []string
	if err := db.Model(&models.Store{}).
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &active).Error; err != nil {
		return nil, fmt.Errorf("load active stores: %w", err)
	}

	return uniqueIDs(append(preferred, active...)), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
