package main

import (
	"context"
	"os"

	"dropkeep/internal/config"
	"dropkeep/internal/database"
	"dropkeep/internal/logging"
	"dropkeep/internal/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.PostgresDSN(), database.DefaultPoolOptions(), logger)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	applied, err := migrations.Apply(ctx, db)
	if err != nil {
		logger.Error("apply migrations", "error", err, "applied", applied)
		os.Exit(1)
	}

	logger.Info("migrations applied", "count", len(applied), "names", applied)
}
