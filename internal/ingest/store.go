package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/foodplanner/backend/internal/archive"
	"github.com/foodplanner/backend/internal/matching"
	"github.com/foodplanner/backend/internal/metrics"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/scrapers"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 100

var productUpdateColumns = []string{
	"name", "price", "unit", "ean", "category", "brand",
	"image_url", "description", "origin", "last_updated", "name_vector",
}

type storeResult struct {
	productsInserted  int
	discountsInserted int
	err               error
}

// ingestStore scrapes one store. Its outcome is recorded on the store status
// row; the returned error is never fatal to the run.
func (s *Service) ingestStore(ctx context.Context, runID uint, storeID string, retryCount int) storeResult {
	log := s.logger.With(zap.Uint("run_id", runID), zap.String("store_id", storeID))
	log.Info("starting store ingestion")

	started := s.now().UTC()
	status := &models.StoreIngestionStatus{
		RunID:      runID,
		StoreID:    storeID,
		Status:     models.RunStatusRunning,
		RetryCount: retryCount,
		StartedAt:  &started,
	}
	if err := s.db.WithContext(ctx).Create(status).Error; err != nil {
		log.Error("failed to create store status", zap.Error(err))
		return storeResult{err: err}
	}

	res := s.scrapeStore(ctx, runID, storeID, status)

	completed := s.now().UTC()
	status.CompletedAt = &completed
	if res.err != nil {
		log.Error("store ingestion failed", zap.Error(res.err))
		status.Status = models.RunStatusFailed
		status.ErrorMessage = truncate(res.err.Error(), maxErrorLength)
	} else {
		status.Status = models.RunStatusCompleted
		log.Info("store ingestion completed",
			zap.Int("products", res.productsInserted),
			zap.Int("discounts", res.discountsInserted))
	}
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Save(status).Error; err != nil {
		log.Error("failed to save store status", zap.Error(err))
	}
	return res
}

func (s *Service) scrapeStore(ctx context.Context, runID uint, storeID string, status *models.StoreIngestionStatus) storeResult {
	scraper, ok := s.registry.ForStore(storeID)
	if err := s.EnsureStore(ctx, storeID, scraper); err != nil {
		return storeResult{err: err}
	}
	if !ok {
		return storeResult{err: fmt.Errorf("no scraper available for store %s", storeID)}
	}

	products, err := scraper.ScrapeProducts(ctx, "", 0)
	if err != nil {
		return storeResult{err: fmt.Errorf("scrape products: %w", err)}
	}
	discounts, err := scraper.ScrapeDiscounts(ctx)
	if err != nil {
		// the product listing is still worth keeping without offers
		s.logger.Warn("failed to scrape discounts", zap.String("store_id", storeID), zap.Error(err))
		discounts = nil
	}
	status.ProductsFetched = len(products)
	status.DiscountsFetched = len(discounts)

	if s.archive != nil {
		_, err := s.archive.Store(ctx, archive.Entry{
			RunID:    runID,
			StoreID:  storeID,
			Endpoint: "/scrape/" + storeID,
			Params:   map[string]any{},
			Payload: map[string]any{
				"products_count":  len(products),
				"discounts_count": len(discounts),
				"products":        products,
				"discounts":       discounts,
			},
			Status: 200,
		})
		if err != nil {
			return storeResult{err: err}
		}
	}

	inserted, err := s.UpsertProducts(ctx, storeID, products)
	if err != nil {
		return storeResult{err: fmt.Errorf("upsert products: %w", err)}
	}
	discountsInserted, err := s.upsertDiscounts(ctx, storeID, discounts)
	if err != nil {
		return storeResult{err: fmt.Errorf("upsert discounts: %w", err)}
	}
	status.ProductsInserted = inserted
	status.DiscountsInserted = discountsInserted

	if err := s.db.WithContext(ctx).Model(&models.Store{}).
		Where("id = ?", storeID).
		Update("last_ingested_at", s.now().UTC()).Error; err != nil {
		return storeResult{err: fmt.Errorf("update store timestamp: %w", err)}
	}
	metrics.ProductsUpserted.WithLabelValues(storeID).Add(float64(inserted))
	return storeResult{productsInserted: inserted, discountsInserted: discountsInserted}
}

// EnsureStore creates the store row if missing, named after the scraper when
// one is known and as a placeholder otherwise.
func (s *Service) EnsureStore(ctx context.Context, storeID string, scraper scrapers.Scraper) error {
	var existing models.Store
	err := s.db.WithContext(ctx).First(&existing, "id = ?", storeID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load store: %w", err)
	}

	store := &models.Store{ID: storeID, Name: "Store " + storeID, Brand: "unknown", IsActive: true}
	if scraper != nil && scraper.StoreID() == storeID {
		store.Name = scraper.StoreName()
		store.Brand = scraper.Brand()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(store).Error; err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	s.logger.Info("created store record", zap.String("store_id", storeID), zap.String("name", store.Name))
	return nil
}

// ProductID picks the scraped id, then the EAN, then a stable hash of the name.
func ProductID(p scrapers.Product) string {
	if p.ID != "" {
		return p.ID
	}
	if p.EAN != "" {
		return p.EAN
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.Name))
	return "product-" + strconv.FormatUint(h.Sum64(), 16)
}

func toProduct(storeID string, p scrapers.Product, now time.Time) models.Product {
	name := p.Name
	if name == "" {
		name = "Unknown"
	}
	unit := p.Unit
	if unit == "" {
		unit = "unit"
	}
	vec := matching.NameVector(name)
	return models.Product{
		ID:          ProductID(p),
		StoreID:     storeID,
		Name:        name,
		Brand:       p.Brand,
		Category:    p.Category,
		Price:       p.Price,
		Unit:        unit,
		EAN:         p.EAN,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Origin:      p.Origin,
		NameVector:  &vec,
		LastUpdated: now,
	}
}

// UpsertProducts writes scraped products for a store and returns how many
// distinct products were written. Later duplicates win.
func (s *Service) UpsertProducts(ctx context.Context, storeID string, products []scrapers.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	now := s.now().UTC()
	index := make(map[string]int, len(products))
	rows := make([]models.Product, 0, len(products))
	for _, p := range products {
		row := toProduct(storeID, p, now)
		if i, ok := index[row.ID]; ok {
			rows[i] = row
			continue
		}
		index[row.ID] = len(rows)
		rows = append(rows, row)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(productUpdateColumns),
		}).
		CreateInBatches(rows, upsertBatchSize).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// upsertDiscounts replaces any discount with the same store, product and start day.
func (s *Service) upsertDiscounts(ctx context.Context, storeID string, discounts []scrapers.Discount) (int, error) {
	if len(discounts) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range discounts {
			validFrom := models.Day(d.ValidFrom)
			if err := tx.Where("store_id = ? AND product_id = ? AND valid_from = ?", storeID, d.ProductID, validFrom).
				Delete(&models.Discount{}).Error; err != nil {
				return err
			}
			pct := d.Percentage()
			row := &models.Discount{
				ProductID:          d.ProductID,
				StoreID:            storeID,
				DiscountPrice:      d.DiscountPrice,
				DiscountPercentage: &pct,
				ValidFrom:          validFrom,
				ValidTo:            models.Day(d.ValidTo),
				Description:        d.Description,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(discounts), nil
}
