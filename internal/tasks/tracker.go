package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Full scrape statuses
const (
	ScrapeRunning    = "running"
	ScrapeCompleted  = "completed"
	ScrapeCancelling = "cancelling"
	ScrapeCancelled  = "cancelled"
	ScrapeFailed     = "failed"
	ScrapeTimeout    = "timeout"
	ScrapeRejected   = "rejected"
)

const (
	progressKeyPrefix   = "scrape:progress:"
	checkpointKeyPrefix = "scrape:checkpoint:"
	cancelKeyPrefix     = "scrape:cancel:"
	// ActiveScrapeKey holds the id of the running full scrape
	ActiveScrapeKey = "scrape:active:rema1000"

	progressTTL   = 7 * 24 * time.Hour
	activeLockTTL = 24 * time.Hour
)

// releaseScript deletes the lock only when it still belongs to the caller
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ScrapeProgress is the state of a full scrape as stored in Redis
type ScrapeProgress struct {
	TaskID              string     `json:"task_id"`
	Status              string     `json:"status"`
	DryRun              bool       `json:"dry_run"`
	Categories          []string   `json:"categories,omitempty"`
	CategoriesTotal     int        `json:"categories_total"`
	CategoriesCompleted int        `json:"categories_completed"`
	CurrentCategory     string     `json:"current_category"`
	ProductsScraped     int        `json:"products_scraped"`
	ProductsSaved       int        `json:"products_saved"`
	Errors              []string   `json:"errors"`
	Error               string     `json:"error,omitempty"`
	Reason              string     `json:"reason,omitempty"`
	ResumedFrom         string     `json:"resumed_from,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	FailedAt            *time.Time `json:"failed_at,omitempty"`
}

// Checkpoint lets a later scrape continue where one stopped
type Checkpoint struct {
	RemainingCategories []string  `json:"remaining_categories"`
	ProductsScraped     int       `json:"products_scraped"`
	SavedAt             time.Time `json:"saved_at"`
}

// Tracker keeps scrape progress, checkpoints and the single active scrape lock in Redis
type Tracker struct {
	redis *redis.Client
	now   func() time.Time
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{redis: rdb, now: time.Now}
}

// SaveProgress stamps and stores p for seven days.
func (t *Tracker) SaveProgress(ctx context.Context, p *ScrapeProgress) error {
	p.UpdatedAt = t.now().UTC()
	return t.setJSON(ctx, progressKeyPrefix+p.TaskID, p)
}

// Progress returns nil, nil when the task is unknown.
func (t *Tracker) Progress(ctx context.Context, taskID string) (*ScrapeProgress, error) {
	var p ScrapeProgress
	ok, err := t.getJSON(ctx, progressKeyPrefix+taskID, &p)
	if !ok || err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *Tracker) SaveCheckpoint(ctx context.Context, taskID string, c *Checkpoint) error {
	c.SavedAt = t.now().UTC()
	return t.setJSON(ctx, checkpointKeyPrefix+taskID, c)
}

// Checkpoint returns nil, nil when no checkpoint was saved.
func (t *Tracker) Checkpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	var c Checkpoint
	ok, err := t.getJSON(ctx, checkpointKeyPrefix+taskID, &c)
	if !ok || err != nil {
		return nil, err
	}
	return &c, nil
}

// Acquire claims the active scrape slot. It reports false when another
// scrape holds it.
func (t *Tracker) Acquire(ctx context.Context, taskID string) (bool, error) {
	return t.redis.SetNX(ctx, ActiveScrapeKey, taskID, activeLockTTL).Result()
}

// Active returns the id of the running scrape, or "" when none is.
func (t *Tracker) Active(ctx context.Context) (string, error) {
	id, err := t.redis.Get(ctx, ActiveScrapeKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// Release clears the active slot if taskID owns it.
func (t *Tracker) Release(ctx context.Context, taskID string) error {
	return releaseScript.Run(ctx, t.redis, []string{ActiveScrapeKey}, taskID).Err()
}

// Cancel asks a scrape to stop. It reports false when the task is unknown.
func (t *Tracker) Cancel(ctx context.Context, taskID string) (bool, error) {
	p, err := t.Progress(ctx, taskID)
	if err != nil || p == nil {
		return false, err
	}
	now := t.now().UTC()
	p.Status = ScrapeCancelling
	p.CancelledAt = &now
	if err := t.redis.Set(ctx, cancelKeyPrefix+taskID, "1", activeLockTTL).Err(); err != nil {
		return false, err
	}
	return true, t.SaveProgress(ctx, p)
}

// CancelRequested reports whether Cancel was called for taskID.
func (t *Tracker) CancelRequested(ctx context.Context, taskID string) bool {
	n, err := t.redis.Exists(ctx, cancelKeyPrefix+taskID).Result()
	return err == nil && n > 0
}

func (t *Tracker) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.redis.Set(ctx, key, data, progressTTL).Err()
}

func (t *Tracker) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := t.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}
