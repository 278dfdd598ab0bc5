package main

import (
	"context"
	"time"

	"github.com/foodplanner/backend/internal/app"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runSchedule    bool
	workerConsumer string
	workerLanes    []string
)

func init() {
	workerCmd.Flags().BoolVar(&runSchedule, "schedule", false,
		"Also enqueue the recurring jobs (defaults to INGESTION_SCHEDULE_ENABLED)")
	workerCmd.Flags().StringVar(&workerConsumer, "consumer", "",
		"Stable worker name for redelivery after a crash (defaults to the hostname)")
	workerCmd.Flags().StringSliceVar(&workerLanes, "lanes", tasks.Lanes,
		"Lanes to consume: ingestion, graph, scraping")
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the task queue",
	Long: `Consume queued tasks from Redis until interrupted. Each lane runs on its own,
so a full scrape never delays ingestion. Failed tasks are retried with
exponential backoff, and tasks a crashed worker left unfinished are requeued
when a worker with the same --consumer name starts.

With --schedule the worker also enqueues daily ingestion at 02:00, the pricing
sync at 03:00 and a weekly MealDB refresh on Sunday at 04:00, Copenhagen time.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if runSchedule || (!cmd.Flags().Changed("schedule") && a.Config.Ingestion.ScheduleEnabled) {
				sched, err := tasks.NewScheduler(a.Queue, tasks.DefaultSchedule,
					tasks.LoadScheduleLocation(), a.Logger.Named("scheduler"))
				if err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
				for _, next := range sched.Next(time.Now()) {
					a.Logger.Info("scheduled run", zap.Time("next", next))
				}
			}
			opts := []tasks.WorkerOption{tasks.WithLanes(workerLanes...)}
			if workerConsumer != "" {
				opts = append(opts, tasks.WithConsumer(workerConsumer))
			}
			return a.Worker(opts...).Run(ctx)
		})
	},
}
