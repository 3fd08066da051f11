package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minibet/internal/app"
	"minibet/internal/config"
	"minibet/internal/report"
)

// minibet-worker ships the local report journal to object storage.
func main() {
	configPath := flag.String("config", "", "config file (default minibet.toml or $MINIBET_CONFIG)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg.SlogLevel(), true).With(slog.String("component", "worker"))
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	journal, err := report.NewJournal(cfg.Report.JournalPath, logger)
	if err != nil {
		logger.Error("open journal failed", "err", err)
		os.Exit(1)
	}
	archive, err := app.S3Archive(ctx, cfg)
	if err != nil {
		logger.Error("s3 client init failed", "err", err)
		os.Exit(1)
	}

	ship := func() error {
		start := time.Now()
		res, err := report.Ship(ctx, journal, archive, logger)
		if err != nil {
			return err
		}
		logger.Info("ship complete",
			"batches", res.Batches,
			"entries", res.Entries,
			"failed", res.Failed,
			"took", time.Since(start).String(),
		)
		return nil
	}

	if cfg.Worker.RunOnce {
		if err := ship(); err != nil {
			logger.Error("ship failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.Worker.Interval.Duration)
	defer ticker.Stop()

	logger.Info("worker started", "interval", cfg.Worker.Interval.Duration.String(), "journal", journal.Path())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			if err := ship(); err != nil {
				logger.Error("ship failed", "err", err)
			}
		}
	}
}
