package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foodplanner/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultPollTimeout = 5 * time.Second

// Handler runs one task and returns a JSON-encodable result. Errors wrapped
// with backoff.Permanent are not retried.
type Handler func(ctx context.Context, task *Task) (any, error)

// RetryPolicy bounds how often and how fast a failed task is run again.
type RetryPolicy struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy retries three times, starting one minute apart.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, InitialDelay: time.Minute, MaxDelay: 10 * time.Minute}

// NoRetry runs a task once.
var NoRetry = RetryPolicy{}

type registration struct {
	handler Handler
	retry   RetryPolicy
}

// Worker consumes every lane concurrently, one task at a time per lane, and
// dispatches tasks by type.
type Worker struct {
	queue       *Queue
	handlers    map[string]registration
	lanes       []string
	consumer    string
	logger      *zap.Logger
	pollTimeout time.Duration
	newBackOff  func(RetryPolicy) backoff.BackOff
}

type WorkerOption func(*Worker)

// WithConsumer names the worker's processing lists. A restarted worker with
// the same name requeues the tasks its predecessor left unacknowledged.
func WithConsumer(name string) WorkerOption {
	return func(w *Worker) { w.consumer = name }
}

// WithLanes limits the lanes the worker consumes.
func WithLanes(lanes ...string) WorkerOption {
	return func(w *Worker) { w.lanes = lanes }
}

func NewWorker(queue *Queue, logger *zap.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		queue:       queue,
		handlers:    make(map[string]registration),
		lanes:       Lanes,
		logger:      logger,
		pollTimeout: defaultPollTimeout,
		newBackOff:  exponentialBackOff,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.consumer == "" {
		w.consumer = defaultConsumer()
	}
	return w
}

func defaultConsumer() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker"
}

func exponentialBackOff(p RetryPolicy) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialDelay > 0 {
		b.InitialInterval = p.InitialDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.MaxElapsedTime = 0
	return b
}

// Handle registers h for taskType with DefaultRetryPolicy, replacing any
// previous handler.
func (w *Worker) Handle(taskType string, h Handler) {
	w.HandleWithRetry(taskType, h, DefaultRetryPolicy)
}

// HandleWithRetry registers h for taskType with its own retry policy.
func (w *Worker) HandleWithRetry(taskType string, h Handler, retry RetryPolicy) {
	w.handlers[taskType] = registration{handler: h, retry: retry}
}

// Run consumes every lane until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		zap.String("consumer", w.consumer),
		zap.Strings("lanes", w.lanes),
		zap.Int("handlers", len(w.handlers)))

	g, gctx := errgroup.WithContext(ctx)
	for _, lane := range w.lanes {
		g.Go(func() error {
			w.consume(gctx, lane)
			return nil
		})
	}
	err := g.Wait()
	w.logger.Info("worker stopped")
	return err
}

func (w *Worker) consume(ctx context.Context, lane string) {
	log := w.logger.With(zap.String("lane", lane))
	if n, err := w.queue.Requeue(ctx, lane, w.consumer); err != nil {
		log.Error("failed to requeue unacknowledged tasks", zap.Error(err))
	} else if n > 0 {
		log.Info("requeued unacknowledged tasks", zap.Int("tasks", n))
	}

	for ctx.Err() == nil {
		task, err := w.queue.Pop(ctx, lane, w.consumer, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("failed to pop task", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}
		w.Process(ctx, task)
	}
}

// Process runs a single task, retrying it per its handler's policy, and
// records its outcome. A task interrupted by shutdown is left unacknowledged
// so the next start requeues it.
func (w *Worker) Process(ctx context.Context, task *Task) {
	log := w.logger.With(zap.String("task_id", task.ID), zap.String("type", task.Type))
	// status writes must land even if shutdown cancelled the handler
	statusCtx := context.WithoutCancel(ctx)

	reg, ok := w.handlers[task.Type]
	if !ok {
		log.Error("no handler registered for task")
		metrics.TasksProcessed.WithLabelValues(task.Type, "unknown").Inc()
		w.finish(statusCtx, log, task, StateFailed, nil, fmt.Errorf("unknown task type %q", task.Type))
		return
	}

	start := time.Now()
	var result any
	op := func() error {
		task.Attempt++
		if err := w.queue.SetStatus(ctx, task, StateRunning, nil, nil); err != nil {
			log.Warn("failed to record task start", zap.Int("attempt", task.Attempt), zap.Error(err))
		}
		log.Info("task started", zap.Int("attempt", task.Attempt))
		var err error
		result, err = w.safeRun(ctx, reg.handler, task)
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Warn("task attempt failed, retrying",
			zap.Int("attempt", task.Attempt), zap.Duration("retry_in", next), zap.Error(err))
		metrics.TasksProcessed.WithLabelValues(task.Type, "retry").Inc()
		if serr := w.queue.SetStatus(statusCtx, task, StateRetrying, result, err); serr != nil {
			log.Error("failed to record task retry", zap.Error(serr))
		}
	}
	b := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(reg.retry), reg.retry.MaxRetries), ctx)
	err := backoff.RetryNotify(op, b, notify)

	if err != nil && ctx.Err() != nil {
		log.Warn("task interrupted by shutdown, leaving it for redelivery", zap.Error(err))
		if serr := w.queue.SetStatus(statusCtx, task, StateQueued, nil, err); serr != nil {
			log.Error("failed to record task requeue", zap.Error(serr))
		}
		return
	}
	if err != nil {
		log.Error("task failed",
			zap.Duration("duration", time.Since(start)), zap.Int("attempts", task.Attempt), zap.Error(err))
		metrics.TasksProcessed.WithLabelValues(task.Type, "failure").Inc()
		w.finish(statusCtx, log, task, StateFailed, result, err)
		return
	}
	log.Info("task completed", zap.Duration("duration", time.Since(start)), zap.Int("attempts", task.Attempt))
	metrics.TasksProcessed.WithLabelValues(task.Type, "success").Inc()
	w.finish(statusCtx, log, task, StateSucceeded, result, nil)
}

// finish records the final state and then acknowledges the task.
func (w *Worker) finish(ctx context.Context, log *zap.Logger, task *Task, state string, result any, taskErr error) {
	if err := w.queue.SetStatus(ctx, task, state, result, taskErr); err != nil {
		log.Error("failed to record task result", zap.String("state", state), zap.Error(err))
	}
	if err := w.queue.Ack(ctx, task); err != nil {
		log.Error("failed to acknowledge task", zap.Error(err))
	}
}

func (w *Worker) safeRun(ctx context.Context, h Handler, task *Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("task panicked",
				zap.String("task_id", task.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = errors.New("task panicked")
		}
	}()
	return h(ctx, task)
}
