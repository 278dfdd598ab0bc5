// Package tasks runs background work from a Redis list: ingestion, cleanup,
// catalog refreshes and full store scrapes.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKeyPrefix  = "foodplanner:tasks:"
	statusKeyPrefix = "foodplanner:task:"
	statusTTL       = 7 * 24 * time.Hour
)

// Lanes are separate lists so a long scrape never holds up ingestion.
const (
	LaneIngestion = "ingestion"
	LaneGraph     = "graph"
	LaneScraping  = "scraping"
)

// Lanes lists every lane a worker consumes by default.
var Lanes = []string{LaneIngestion, LaneGraph, LaneScraping}

// LaneFor routes a task type by its prefix. Unknown prefixes use the
// ingestion lane.
func LaneFor(taskType string) string {
	switch {
	case strings.HasPrefix(taskType, "scraping."):
		return LaneScraping
	case strings.HasPrefix(taskType, "catalog."):
		return LaneGraph
	default:
		return LaneIngestion
	}
}

// QueueKey is the Redis list waiting tasks of lane are pushed to.
func QueueKey(lane string) string { return queueKeyPrefix + lane }

// ProcessingKey holds the tasks consumer has taken from lane but not acknowledged.
func ProcessingKey(lane, consumer string) string {
	return queueKeyPrefix + lane + ":processing:" + consumer
}

// Task states
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateRetrying  = "retrying"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// ErrTaskNotFound is returned for unknown or expired task ids
var ErrTaskNotFound = errors.New("task not found")

// Task is one unit of queued work
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	// Attempt is set by the worker, starting at 1
	Attempt int `json:"-"`

	lane     string
	consumer string
	raw      string
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
// A malformed payload is a permanent error and is not retried.
func (t *Task) Decode(v any) error {
	if len(t.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s payload: %w", t.Type, err))
	}
	return nil
}

// Status is the last known state of a task
type Status struct {
	ID        string          `json:"task_id"`
	Type      string          `json:"type"`
	State     string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Queue pushes and pops tasks. Delivery is at least once: a popped task
// stays on the consumer's processing list until it is acknowledged.
type Queue struct {
	redis *redis.Client
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{redis: rdb}
}

// Enqueue pushes a task and returns its id.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	return q.EnqueueWithID(ctx, uuid.NewString(), taskType, payload)
}

// EnqueueWithID pushes a task under a caller chosen id onto its lane.
func (q *Queue) EnqueueWithID(ctx context.Context, id, taskType string, payload any) (string, error) {
	task := Task{ID: id, Type: taskType, EnqueuedAt: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		task.Payload = raw
	}
	data, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	status, err := json.Marshal(Status{ID: id, Type: taskType, State: StateQueued, UpdatedAt: task.EnqueuedAt})
	if err != nil {
		return "", err
	}

	pipe := q.redis.TxPipeline()
	pipe.Set(ctx, statusKeyPrefix+id, status, statusTTL)
	pipe.LPush(ctx, QueueKey(LaneFor(taskType)), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}
	return id, nil
}

// Pop blocks up to timeout for the next task on lane and moves it onto
// consumer's processing list. It returns nil, nil on timeout.
func (q *Queue) Pop(ctx context.Context, lane, consumer string, timeout time.Duration) (*Task, error) {
	processing := ProcessingKey(lane, consumer)
	raw, err := q.redis.BLMove(ctx, QueueKey(lane), processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// never redeliver a payload no worker can read
		if rerr := q.redis.LRem(ctx, processing, 1, raw).Err(); rerr != nil {
			return nil, fmt.Errorf("malformed task: %w (drop: %v)", err, rerr)
		}
		return nil, fmt.Errorf("malformed task: %w", err)
	}
	task.lane, task.consumer, task.raw = lane, consumer, raw
	return &task, nil
}

// Ack removes a delivered task from its processing list.
func (q *Queue) Ack(ctx context.Context, task *Task) error {
	if task.raw == "" {
		return nil
	}
	return q.redis.LRem(ctx, ProcessingKey(task.lane, task.consumer), 1, task.raw).Err()
}

// Requeue moves tasks a previous process of consumer took from lane but never
// acknowledged back to the head of the lane. It returns how many moved.
func (q *Queue) Requeue(ctx context.Context, lane, consumer string) (int, error) {
	processing := ProcessingKey(lane, consumer)
	moved := 0
	for {
		err := q.redis.LMove(ctx, processing, QueueKey(lane), "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("requeue %s tasks: %w", lane, err)
		}
		moved++
	}
}

// Len is the number of tasks waiting on lane.
func (q *Queue) Len(ctx context.Context, lane string) (int64, error) {
	return q.redis.LLen(ctx, QueueKey(lane)).Result()
}

// SetStatus records the state of a task, with result encoded as JSON.
func (q *Queue) SetStatus(ctx context.Context, task *Task, state string, result any, taskErr error) error {
	st := Status{ID: task.ID, Type: task.Type, State: state, Attempts: task.Attempt, UpdatedAt: time.Now().UTC()}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return err
		}
		st.Result = raw
	}
	if taskErr != nil {
		st.Error = taskErr.Error()
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return q.redis.Set(ctx, statusKeyPrefix+task.ID, data, statusTTL).Err()
}

// Status returns the recorded state of a task.
func (q *Queue) Status(ctx context.Context, id string) (*Status, error) {
	data, err := q.redis.Get(ctx, statusKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
