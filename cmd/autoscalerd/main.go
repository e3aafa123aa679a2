// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command autoscalerd runs the jury fleet's windowed load-index control
// loop (spec §4.3) as its own process, independent of judge-coordinatord's
// HTTP/event surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/easyctf/judge-coordinator/internal/autoscaler"
	"github.com/easyctf/judge-coordinator/internal/engine"
	"github.com/easyctf/judge-coordinator/internal/store/postgres"
	"github.com/easyctf/judge-coordinator/pkg/config"
	"github.com/easyctf/judge-coordinator/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "autoscalerd: load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "autoscalerd: invalid configuration:", err)
		os.Exit(1)
	}
	if cfg.DigitalOceanAPIToken == "" {
		fmt.Fprintln(os.Stderr, "autoscalerd: DIGITALOCEAN_API_TOKEN is required")
		os.Exit(1)
	}
	if cfg.JudgeURL == "" {
		fmt.Fprintln(os.Stderr, "autoscalerd: JUDGE_URL is required")
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogFormat == "json" {
		logCfg.Format = logging.FormatJSON
	}
	logger := logging.NewLogger(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := cfg.DatabaseURI
	if cfg.TestDatabaseURI != "" {
		dsn = cfg.TestDatabaseURI
	}
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		logger.Error("connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	st := postgres.New(db)
	eng := engine.New(st, nil, nil, logger)

	cloud := autoscaler.NewDigitalOcean(cfg.DigitalOceanAPIToken, cfg.JudgeURL, eng, logger)
	scaler := autoscaler.New(cloud, eng, cfg.AutoscalerTick, logger)

	logger.Info("autoscalerd starting", "tick", cfg.AutoscalerTick.String())
	if err := scaler.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("autoscaler stopped", "error", err.Error())
		os.Exit(1)
	}
}
