package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodplanner/backend/internal/models"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned when no ingestion run matches
var ErrRunNotFound = errors.New("ingestion run not found")

// staleAfter marks an active store as pending ingestion
const staleAfter = 48 * time.Hour

// Health reports whether ingestion can run
type Health struct {
	Healthy           bool       `json:"healthy"`
	Database          bool       `json:"database"`
	DatabaseError     string     `json:"database_error,omitempty"`
	Redis             bool       `json:"redis"`
	RedisError        string     `json:"redis_error,omitempty"`
	LastSuccessfulRun *time.Time `json:"last_successful_run"`
	PendingStores     int64      `json:"pending_stores"`
}

// Health checks the database and Redis connections and counts active stores
// that were never ingested or not within the last two days.
func (s *Service) Health(ctx context.Context) *Health {
	h := &Health{}

	if sqlDB, err := s.db.DB(); err != nil {
		h.DatabaseError = err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		h.DatabaseError = err.Error()
	} else {
		h.Database = true
	}

	if s.redis == nil {
		h.RedisError = "redis not configured"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		h.RedisError = err.Error()
	} else {
		h.Redis = true
	}
	h.Healthy = h.Database && h.Redis

	if !h.Database {
		return h
	}
	db := s.db.WithContext(ctx)
	var last models.IngestionRun
	if err := db.Where("status = ? AND completed_at IS NOT NULL", models.RunStatusCompleted).
		Order("completed_at DESC").First(&last).Error; err == nil {
		h.LastSuccessfulRun = last.CompletedAt
	}
	cutoff := s.now().UTC().Add(-staleAfter)
	db.Model(&models.Store{}).
		Where("is_active = ? AND (last_ingested_at IS NULL OR last_ingested_at < ?)", true, cutoff).
		Count(&h.PendingStores)
	return h
}

// Stats summarises the ingested data
type Stats struct {
	TotalStores             int64      `json:"total_stores"`
	ActiveStores            int64      `json:"active_stores"`
	TotalProducts           int64      `json:"total_products"`
	TotalDiscounts          int64      `json:"total_discounts"`
	ActiveDiscounts         int64      `json:"active_discounts"`
	LastRunDate             *time.Time `json:"last_run_date"`
	LastRunStatus           *string    `json:"last_run_status"`
	RunsLast7Days           int64      `json:"runs_last_7_days"`
	SuccessfulRunsLast7Days int64      `json:"successful_runs_last_7_days"`
}

// Stats counts stores, products and discounts and summarises the last week of runs.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	today := models.Day(s.now())
	weekAgo := today.AddDate(0, 0, -7)
	st := &Stats{}

	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&st.TotalStores, &models.Store{}, "", nil},
		{&st.ActiveStores, &models.Store{}, "is_active = ?", []any{true}},
		{&st.TotalProducts, &models.Product{}, "", nil},
		{&st.TotalDiscounts, &models.Discount{}, "", nil},
		{&st.ActiveDiscounts, &models.Discount{}, "valid_to >= ?", []any{today}},
		{&st.RunsLast7Days, &models.IngestionRun{}, "run_date >= ?", []any{weekAgo}},
		{&st.SuccessfulRunsLast7Days, &models.IngestionRun{}, "run_date >= ? AND status = ?", []any{weekAgo, models.RunStatusCompleted}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("ingestion stats: %w", err)
		}
	}

	var last models.IngestionRun
	err := db.Order("run_date DESC").Order("id DESC").First(&last).Error
	switch {
	case err == nil:
		st.LastRunDate = &last.RunDate
		st.LastRunStatus = &last.Status
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("ingestion stats: %w", err)
	}
	return st, nil
}

// RunPage is one page of ingestion runs
type RunPage struct {
	Runs     []models.IngestionRun `json:"runs"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *Service) ListRuns(ctx context.Context, page, pageSize int, status string) (*RunPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	q := s.db.WithContext(ctx).Model(&models.IngestionRun{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	out := &RunPage{Runs: []models.IngestionRun{}, Page: page, PageSize: pageSize}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	if err := q.Order("run_date DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&out.Runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// GetRun loads a run with its store statuses.
func (s *Service) GetRun(ctx context.Context, id uint) (*models.IngestionRun, error) {
	return s.findRun(ctx, "id = ?", id)
}

// GetRunByTask loads the run started by a queued task.
func (s *Service) GetRunByTask(ctx context.Context, taskID string) (*models.IngestionRun, error) {
	return s.findRun(ctx, "task_id = ?", taskID)
}

func (s *Service) findRun(ctx context.Context, query string, arg any) (*models.IngestionRun, error) {
	var run models.IngestionRun
	err := s.db.WithContext(ctx).
		Preload("StoreStatuses", func(db *gorm.DB) *gorm.DB { return db.Order("store_id") }).
		Where(query, arg).
		Order("id DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
