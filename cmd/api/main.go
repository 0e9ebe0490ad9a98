// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mavrk/apihub/internal/access"
	"github.com/mavrk/apihub/internal/auth"
	"github.com/mavrk/apihub/internal/config"
	"github.com/mavrk/apihub/internal/logging"
	"github.com/mavrk/apihub/internal/persistence/postgres"
	"github.com/mavrk/apihub/internal/proxy"
	"github.com/mavrk/apihub/internal/ratelimit"
	"github.com/mavrk/apihub/internal/repository"
	httptransport "github.com/mavrk/apihub/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

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

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			log.Fatalf("schema bootstrap failed: %v", err)
		}
	} else if err := postgres.SchemaReady(ctx, pool); err != nil {
		log.Fatalf("schema not ready: %v", err)
	}

	sessions, err := auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("session tokens: %v", err)
	}

	apiRepo := repository.NewAPIRepository(pool, logger)
	deptRepo := repository.NewDepartmentRepository(pool, logger)
	usageRepo := repository.NewUsageRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)

	if err := userRepo.EnsureBootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	var counter ratelimit.Counter
	if cfg.RedisAddr != "" {
		redisCounter, err := ratelimit.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis connect failed: %v", err)
		}
		logger.Info("rate counter backend", "backend", "redis", "addr", cfg.RedisAddr)
		counter = redisCounter
	} else {
		logger.Info("rate counter backend", "backend", "memory")
		counter = ratelimit.NewMemoryCounter()
	}

	dispatcher := proxy.NewDispatcher(proxy.Deps{
		Recorder: usageRepo,
		Logger:   logger,
		Timeout:  cfg.UpstreamTimeout,
	})

	handler := httptransport.NewRouter(httptransport.Deps{
		APIs:        apiRepo,
		Departments: deptRepo,
		Usage:       usageRepo,
		Users:       userRepo,
		Dispatcher:  dispatcher,
		Sessions:    sessions,
		Gate:        access.NewGate(deptRepo, counter, logger),
		Health:      postgres.NewSchemaHealthChecker(pool),
		Logger:      logger,
		Version:     Version,
		Commit:      Commit,
		BuildDate:   BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
