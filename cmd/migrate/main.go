package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/foodplanner/backend/config"
	"github.com/foodplanner/backend/internal/database"
	"github.com/foodplanner/backend/internal/logging"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	list := flag.Bool("list", false, "List embedded migrations")
	flag.Parse()

	if *list {
		migrations, err := database.Migrations()
		if err != nil {
			log.Fatalf("failed to read migrations: %v", err)
		}
		for _, m := range migrations {
			fmt.Printf("%s\t%s\n", m.Version, m.Name)
		}
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	if *rollback {
		name, err := database.Rollback(ctx, db, logger)
		if errors.Is(err, database.ErrNoMigrations) {
			logger.Fatal("No migrations to rollback")
		}
		if err != nil {
			logger.Fatal("failed to rollback migration", zap.Error(err))
		}
		fmt.Printf("Successfully rolled back migration: %s\n", name)
		return
	}

	gormDB, err := database.Wrap(db)
	if err != nil {
		logger.Fatal("failed to open gorm session", zap.Error(err))
	}
	if err := database.Migrate(ctx, gormDB, logger); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}
	fmt.Println("All migrations applied")
}
