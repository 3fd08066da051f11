package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"minibet/internal/api"
	"minibet/internal/app"
	"minibet/internal/config"
)

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

	logger := app.NewLogger(os.Stdout, cfg.SlogLevel(), true)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	server := api.New(cfg.API, cfg.Bot, logger, a.Registry, a.Metrics)
	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := server.Hub().Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.SweepSessions(gctx)
	})
	g.Go(func() error {
		logger.Info("minibet api listening", "addr", cfg.API.Addr, "auth", cfg.API.Token != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout.Duration)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout.Duration)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}
	if runErr != nil {
		logger.Error("server failed", "err", runErr)
		os.Exit(1)
	}
	logger.Info("minibet api stopped")
}
