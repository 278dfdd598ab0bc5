package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/foodplanner/backend/internal/ingest"
	"github.com/robfig/cron"
	"go.uber.org/zap"
)

// ScheduleTimezone is the zone the schedule is evaluated in
const ScheduleTimezone = "Europe/Copenhagen"

// Enqueuer accepts tasks
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) (string, error)
}

// ScheduledTask is a recurring enqueue. Spec has six fields, seconds first.
type ScheduledTask struct {
	Name     string
	Spec     string
	TaskType string
	Payload  any
}

// DefaultSchedule is daily ingestion at 02:00, pricing sync at 03:00 and a
// MealDB refresh on Sunday at 04:00.
var DefaultSchedule = []ScheduledTask{
	{Name: "daily-ingestion", Spec: "0 0 2 * * *", TaskType: TypeDailyIngestion,
		Payload: ingest.Options{TriggerType: ingest.TriggerScheduled}},
	{Name: "sync-products", Spec: "0 0 3 * * *", TaskType: TypeProductSync},
	{Name: "weekly-mealdb-refresh", Spec: "0 0 4 * * 0", TaskType: TypeMealDBImport},
}

// Scheduler enqueues tasks on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	queue  Enqueuer
	logger *zap.Logger
}

// NewScheduler registers entries on a cron evaluated in loc.
func NewScheduler(queue Enqueuer, entries []ScheduledTask, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{cron: cron.NewWithLocation(loc), loc: loc, queue: queue, logger: logger}
	for _, e := range entries {
		if err := s.cron.AddFunc(e.Spec, s.enqueueFunc(e)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", e.Name, err)
		}
	}
	return s, nil
}

// LoadScheduleLocation returns ScheduleTimezone, or UTC when the zone
// database is unavailable.
func LoadScheduleLocation() *time.Location {
	loc, err := time.LoadLocation(ScheduleTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *Scheduler) enqueueFunc(e ScheduledTask) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		id, err := s.queue.Enqueue(ctx, e.TaskType, e.Payload)
		if err != nil {
			s.logger.Error("failed to enqueue scheduled task", zap.String("name", e.Name), zap.Error(err))
			return
		}
		s.logger.Info("scheduled task enqueued", zap.String("name", e.Name), zap.String("task_id", id))
	}
}

// Next returns the next fire time of every entry after t, in registration order.
func (s *Scheduler) Next(t time.Time) []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Schedule.Next(t.In(s.loc)))
	}
	return out
}

func (s *Scheduler) Start() { s.cron.Start() }
func (s *Scheduler) Stop()  { s.cron.Stop() }
