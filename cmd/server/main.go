package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/franckalain/smartplate/internal/config"
	"github.com/franckalain/smartplate/internal/database"
	"github.com/franckalain/smartplate/internal/enrich"
	"github.com/franckalain/smartplate/internal/logging"
	"github.com/franckalain/smartplate/internal/ml"
	"github.com/franckalain/smartplate/internal/pipeline"
	"github.com/franckalain/smartplate/internal/server"
	"github.com/franckalain/smartplate/internal/shelflife"
	"github.com/franckalain/smartplate/internal/storage"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// Initialize database
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	source, err := newSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize image storage: %w", err)
	}

	// The model loads on the first detection request.
	model, err := ml.NewModel(cfg.ML.Type, cfg.ML.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to create ML model: %w", err)
	}

	lookupTimeout := time.Duration(cfg.Lookup.TimeoutSeconds) * time.Second
	resolver := shelflife.NewResolver(shelflife.Config{
		Lookup:        shelflife.NewOpenFoodFacts(cfg.Lookup.BaseURL, cfg.Lookup.UserAgent, lookupTimeout),
		LookupTimeout: lookupTimeout,
		Logger:        logger.With("component", "shelflife"),
	})

	driver := pipeline.NewDriver(pipeline.Config{
		Source:   source,
		Detector: ml.NewShared(model),
		Enricher: enrich.NewOrchestrator(resolver, cfg.Enrichment.MaxConcurrency),
		Store:    db,
		Logger:   logger.With("component", "pipeline"),
	})

	logger.Info("configuration loaded",
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Type,
		"model", cfg.ML.Type,
		"auth", cfg.Auth.JWTSecret != "",
	)

	// Initialize and start server
	srv := server.New(driver, logger.With("component", "server"), cfg.Auth.JWTSecret, cfg.Server.Debug)
	if cfg.Server.StaticDir != "" {
		srv.ServeStatic(cfg.Server.StaticDir)
	}
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	if err := srv.Start(ctx, cfg.Server.Port, shutdownTimeout); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func newSource(ctx context.Context, cfg *config.Config) (storage.Source, error) {
	switch cfg.Storage.Type {
	case "s3":
		return storage.NewS3(ctx, cfg.Storage.Bucket, cfg.Storage.Region)
	default:
		return storage.NewLocal(cfg.Storage.Dir)
	}
}
