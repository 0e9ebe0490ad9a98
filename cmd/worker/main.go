// SPDX-License-Identifier: Apache-2.0

// Usage retention sweeper. Runs one prune pass on start, then once a
// day, removing usage records older than the configured retention.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mavrk/apihub/internal/config"
	"github.com/mavrk/apihub/internal/logging"
	"github.com/mavrk/apihub/internal/persistence/postgres"
	"github.com/mavrk/apihub/internal/repository"
)

const sweepInterval = 24 * time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := postgres.SchemaReady(ctx, pool); err != nil {
		log.Fatalf("schema not ready: %v", err)
	}

	usageRepo := repository.NewUsageRepository(pool, logger)

	logger.Info("retention sweeper started", "retention", cfg.UsageRetention.String())

	sweep := func() {
		cutoff := time.Now().Add(-cfg.UsageRetention)
		deleted, err := usageRepo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.Error("retention sweep failed", "error", err)
			return
		}
		logger.Info("retention sweep complete", "deleted", deleted)
	}

	sweep()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("retention sweeper stopping")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
