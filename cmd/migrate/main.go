package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/motorlink/golang_services/internal/platform/config"
	"github.com/motorlink/golang_services/internal/platform/database"
	"github.com/motorlink/golang_services/internal/platform/logger"
)

func main() {
	source := flag.String("source", "file://migrations", "migration source URL")
	flag.Parse()

	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Applying database migrations...", "source", *source)

	if err := database.MigrateUp(*source, cfg.PostgresDSN); err != nil {
		appLogger.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Database schema is up to date.")
}
