package models

import "time"

// Ingestion run and per-store statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

type IngestionRun struct {
	ID               uint                   `gorm:"primaryKey" json:"id"`
	RunDate          time.Time              `gorm:"type:date;not null;index" json:"run_date"`
	Status           string                 `gorm:"size:16;not null;index" json:"status"`
	TaskID           string                 `gorm:"size:64;index" json:"task_id,omitempty"`
	TriggerType      string                 `gorm:"size:16;not null;default:'scheduled'" json:"trigger_type"`
	StoresTotal      int                    `json:"stores_total"`
	StoresCompleted  int                    `json:"stores_completed"`
	StoresFailed     int                    `json:"stores_failed"`
	ProductsUpdated  int                    `json:"products_updated"`
	DiscountsUpdated int                    `json:"discounts_updated"`
	ErrorMessage     string                 `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt        time.Time              `gorm:"not null" json:"started_at"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	StoreStatuses    []StoreIngestionStatus `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"store_statuses,omitempty"`
}

// DurationSeconds returns the run duration, or nil while it is still running
func (r *IngestionRun) DurationSeconds() *float64 {
	if r.CompletedAt == nil {
		return nil
	}
	d := r.CompletedAt.Sub(r.StartedAt).Seconds()
	return &d
}

type StoreIngestionStatus struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	RunID             uint       `gorm:"not null;uniqueIndex:idx_run_store" json:"run_id"`
	StoreID           string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_run_store" json:"store_id"`
	Status            string     `gorm:"size:16;not null" json:"status"`
	ProductsFetched   int        `json:"products_fetched"`
	DiscountsFetched  int        `json:"discounts_fetched"`
	ProductsInserted  int        `json:"products_inserted"`
	DiscountsInserted int        `json:"discounts_inserted"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount        int        `json:"retry_count"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// RawIngestionData is the untouched payload of one scraper fetch
type RawIngestionData struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          *uint     `gorm:"index" json:"run_id,omitempty"`
	StoreID        string    `gorm:"type:varchar(64);not null;index" json:"store_id"`
	Endpoint       string    `gorm:"size:255;not null" json:"endpoint"`
	RequestParams  JSONMap   `gorm:"type:jsonb" json:"request_params"`
	ResponseData   JSONMap   `gorm:"type:jsonb" json:"response_data"`
	ResponseStatus int       `json:"response_status"`
	ObjectKey      string    `gorm:"size:512" json:"object_key,omitempty"`
	FetchedAt      time.Time `gorm:"not null;index" json:"fetched_at"`
}
