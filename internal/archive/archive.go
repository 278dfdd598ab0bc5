// Package archive keeps the untouched payloads of every scraper fetch.
// Rows live in raw_ingestion_data; with a bucket configured the payload is
// mirrored to S3 as JSON.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/foodplanner/backend/config"
	"github.com/foodplanner/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// expiredDiscountGrace is how long discounts are kept after valid_to
const expiredDiscountGrace = 7 * 24 * time.Hour

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Uploader is the S3 call the archive needs
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive writes raw payloads
type Archive struct {
	db       *gorm.DB
	uploader Uploader
	bucket   string
	logger   *zap.Logger
	now      func() time.Time
}

// New builds an archive. s3cfg may be nil, which disables the S3 mirror.
func New(db *gorm.DB, s3cfg *config.S3Config, logger *zap.Logger) *Archive {
	if s3cfg == nil {
		return NewWithUploader(db, nil, "", logger)
	}
	return NewWithUploader(db, s3cfg.Client, s3cfg.BucketName, logger)
}

func NewWithUploader(db *gorm.DB, up Uploader, bucket string, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{db: db, uploader: up, bucket: bucket, logger: logger, now: time.Now}
}

// Entry is one fetch to archive
type Entry struct {
	RunID    uint
	StoreID  string
	Endpoint string
	Params   map[string]any
	Payload  map[string]any
	Status   int
}

// ObjectKey is raw/{store}/{yyyy-mm-dd}/{run}-{endpoint}.json
func ObjectKey(storeID string, fetchedAt time.Time, runID uint, endpoint string) string {
	name := strings.Trim(unsafeKeyChars.ReplaceAllString(endpoint, "-"), "-")
	if name == "" {
		name = "root"
	}
	return fmt.Sprintf("raw/%s/%s/%d-%s.json", storeID, fetchedAt.UTC().Format("2006-01-02"), runID, name)
}

// Store saves e. A failed S3 upload is logged and does not fail the call.
func (a *Archive) Store(ctx context.Context, e Entry) (*models.RawIngestionData, error) {
	row := &models.RawIngestionData{
		StoreID:        e.StoreID,
		Endpoint:       e.Endpoint,
		RequestParams:  models.JSONMap(e.Params),
		ResponseData:   models.JSONMap(e.Payload),
		ResponseStatus: e.Status,
		FetchedAt:      a.now().UTC(),
	}
	if e.RunID != 0 {
		runID := e.RunID
		row.RunID = &runID
	}

	if a.uploader != nil && a.bucket != "" {
		key := ObjectKey(e.StoreID, row.FetchedAt, e.RunID, e.Endpoint)
		if err := a.upload(ctx, key, e.Payload); err != nil {
			a.logger.Warn("failed to mirror raw payload to s3", zap.String("key", key), zap.Error(err))
		} else {
			row.ObjectKey = key
		}
	}

	if err := a.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("archive raw data: %w", err)
	}
	return row, nil
}

func (a *Archive) upload(ctx context.Context, key string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = a.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// CleanupResult reports what Cleanup removed
type CleanupResult struct {
	RawDeleted       int64     `json:"raw_records_deleted"`
	DiscountsDeleted int64     `json:"discounts_deleted"`
	RawCutoff        time.Time `json:"raw_cutoff"`
	DiscountCutoff   time.Time `json:"discount_cutoff"`
}

// Cleanup deletes raw rows older than daysToKeep and discounts that expired
// more than a week ago. S3 objects are left to the bucket lifecycle policy.
func (a *Archive) Cleanup(ctx context.Context, daysToKeep int) (*CleanupResult, error) {
	now := a.now().UTC()
	res := &CleanupResult{
		RawCutoff:      now.AddDate(0, 0, -daysToKeep),
		DiscountCutoff: models.Day(now.Add(-expiredDiscountGrace)),
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		raw := tx.Where("fetched_at < ?", res.RawCutoff).Delete(&models.RawIngestionData{})
		if raw.Error != nil {
			return raw.Error
		}
		res.RawDeleted = raw.RowsAffected

		disc := tx.Where("valid_to < ?", res.DiscountCutoff).Delete(&models.Discount{})
		if disc.Error != nil {
			return disc.Error
		}
		res.DiscountsDeleted = disc.RowsAffected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup: %w", err)
	}

	a.logger.Info("cleanup completed",
		zap.Int64("raw_records_deleted", res.RawDeleted),
		zap.Int64("discounts_deleted", res.DiscountsDeleted))
	return res, nil
}
