// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command judge-coordinatord runs the coordinator's HTTP API, live-push
// event fan-out, and claim dispatcher as a single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/internal/events"
	"github.com/easyctf/judge-coordinator/internal/httpapi"
	"github.com/easyctf/judge-coordinator/internal/store/migrations"
	"github.com/easyctf/judge-coordinator/internal/store/postgres"
	"github.com/easyctf/judge-coordinator/pkg/auth"
	"github.com/easyctf/judge-coordinator/pkg/config"
	"github.com/easyctf/judge-coordinator/pkg/logging"
	"github.com/easyctf/judge-coordinator/pkg/metrics"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply pending schema migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "judge-coordinatord: load config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	dsn := cfg.DatabaseURI
	if cfg.TestDatabaseURI != "" {
		dsn = cfg.TestDatabaseURI
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Error("connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Up(db.DB); err != nil {
		logger.Error("apply migrations", "error", err.Error())
		os.Exit(1)
	}
	if *migrateOnly {
		logger.Info("migrations applied, exiting")
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	st := postgres.New(db)
	callbacks := engine.NewWorkerPoolCallbackFirer(8, 256, cfg.CallbackTimeout, logger)
	defer callbacks.Close()

	eng := engine.New(st, nil, callbacks, logger)
	guard := auth.NewGuard(eng)

	var ev *events.Events
	if cfg.EnableSocketIO {
		redisOpts, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			logger.Error("parse redis uri", "error", err.Error())
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		ev = events.New(eng, redisClient, logger)
		eng.SetEmitter(ev.Emitter)

		go func() {
			if err := ev.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("event relay stopped", "error", err.Error())
			}
		}()
	}

	srv := httpapi.New(eng, guard, ev, logger)
	collector := metrics.NewInMemoryCollector()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(collector),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err.Error())
		}
	}()

	logger.Info("judge-coordinatord listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server stopped", "error", err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) logging.Logger {
	logCfg := logging.DefaultConfig()
	if cfg.LogFormat == "json" {
		logCfg.Format = logging.FormatJSON
	}
	logCfg.Level = slog.LevelInfo
	return logging.NewLogger(logCfg)
}
