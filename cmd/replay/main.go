package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/config"
	"github.com/smartenergy/aidaily/internal/logging"
	"github.com/smartenergy/aidaily/internal/replay"
	"github.com/smartenergy/aidaily/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	from := flag.String("from", "", "first target date, YYYY-MM-DD")
	to := flag.String("to", "", "last target date, YYYY-MM-DD (defaults to -from)")
	endpoint := flag.String("endpoint", cfg.Replay.Endpoint, "aggregate endpoint to POST each date to")
	workers := flag.Int("workers", cfg.Replay.Workers, "concurrent requests")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-request timeout")
	flag.Parse()

	zl, err := logging.New(cfg.Log.Level, cfg.Log.Format, "aidaily-replay")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if *from == "" {
		zl.Fatal("-from is required")
	}
	if *to == "" {
		*to = *from
	}

	dates, err := utils.DaysBetween(*from, *to)
	if err != nil {
		zl.Fatal("Invalid date range", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("Replay starting",
		zap.String("endpoint", *endpoint),
		zap.Int("days", len(dates)),
		zap.Int("workers", *workers),
	)

	client := replay.NewClient(*endpoint, *timeout, zl)
	outcomes := replay.Run(ctx, client, dates, *workers, zl)

	failed := replay.Failed(outcomes)
	zl.Info("Replay finished", zap.Int("days", len(outcomes)), zap.Int("failed", failed))
	if failed > 0 {
		_ = zl.Sync()
		os.Exit(1)
	}
}
