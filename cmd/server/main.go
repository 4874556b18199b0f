package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/api"
	"github.com/platformbuilds/mirador-servicehealth/internal/bootstrap"
	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

func main() {
	cfg, v, err := config.LoadWithViper()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting mirador-servicehealth", "version", monitoring.Version, "environment", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize service health components", "error", err)
	}

	if err := config.Watch(v, logger, components.Apply); err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		logger.Error("Failed to start configuration watcher", "error", err)
	}

	apiServer := api.NewServer(
		cfg,
		logger,
		components.Cache,
		components.Metrics,
		components.Health,
		components.Dashboard,
		components.Tracer,
	)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed to start", "error", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := components.Shutdown(shutdownCtx); err != nil {
		logger.Error("Component shutdown failed", "error", err)
	}
	logger.Info("mirador-servicehealth shutdown complete")
}
