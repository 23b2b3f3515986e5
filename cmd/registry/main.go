package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"registry/internal/auth"
	"registry/internal/blob"
	"registry/internal/config"
	"registry/internal/domain"
	"registry/internal/observability/logging"
	"registry/internal/observability/metrics"
	"registry/internal/service"
	"registry/internal/store"
	httpx "registry/internal/transport/http"

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
		ServiceName: "registry",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)

	logger.Info("starting service")

	cfg := config.Load()
	metrics.MustRegister("registry")

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	if err := gdb.AutoMigrate(&domain.Namespace{}, &domain.Package{}, &domain.User{}, &blob.Blob{}); err != nil {
		logger.Error("automigrate", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)
	blobs := blob.New(gdb)
	svc := service.New(st, blobs)
	verifier := auth.NewVerifier(cfg.SigningKey)

	handler := httpx.NewRouter(svc, verifier, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("registry listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
