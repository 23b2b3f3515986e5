package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"registry/internal/blob"
	"registry/internal/config"
	"registry/internal/observability/logging"
	"registry/internal/observability/metrics"
	"registry/internal/store"
	"registry/internal/verify"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "verifier",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)

	cfg := config.Load()
	metrics.MustRegister("verifier")

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	checker := &verify.ExecChecker{
		Command: strings.Fields(cfg.BuildCommand),
		Timeout: cfg.BuildTimeout,
	}
	sweeper := verify.NewSweeper(store.New(gdb), blob.New(gdb), checker, cfg.ScratchDir, logger)

	ctx := context.Background()

	if cfg.SweepInterval <= 0 {
		if err := sweeper.Sweep(ctx); err != nil {
			logger.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("verifier sweeping", "interval", cfg.SweepInterval)
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		if err := sweeper.Sweep(ctx); err != nil {
			logger.Error("sweep failed", "error", err)
		}
		<-ticker.C
	}
}
