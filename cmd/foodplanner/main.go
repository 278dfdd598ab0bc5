// Package main implements the foodplanner CLI: the background worker and
// one-off runs of the ingestion and catalog jobs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/foodplanner/backend/config"
	"github.com/foodplanner/backend/internal/app"
	"github.com/foodplanner/backend/internal/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foodplanner",
	Short: "Meal planner worker and maintenance jobs",
	Long: `foodplanner runs the background task worker and lets operators run the
ingestion, recipe import, pricing sync, matching and cleanup jobs by hand.

Examples:
  # Consume the task queue and run the cron schedule
  foodplanner worker --schedule

  # Ingest a single store now
  foodplanner ingest --store rema1000-main --force`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// withApp loads configuration, builds the application and runs fn until it
// returns or the process is interrupted.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
