// Package app wires configuration into the running engine: storage,
// report sinks, metrics and the per-user controller registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"minibet/internal/balance"
	"minibet/internal/config"
	"minibet/internal/db"
	"minibet/internal/game"
	"minibet/internal/kv"
	"minibet/internal/metrics"
	"minibet/internal/report"
)

type App struct {
	Config     config.Config
	Log        *slog.Logger
	KV         kv.Store
	Balance    *balance.Store
	Odds       *game.OddsTable
	Dispatcher *report.Dispatcher
	Journal    *report.Journal
	Metrics    *metrics.Metrics
	Registry   *game.Registry

	closers []func() error
}

func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: logger, Metrics: metrics.New()}

	odds := game.DefaultOdds()
	if cfg.Game.OddsFile != "" {
		var err error
		if odds, err = game.LoadOddsFile(cfg.Game.OddsFile); err != nil {
			return nil, err
		}
	}
	a.Odds = odds

	store, err := kv.Open(ctx, kv.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DSN:    cfg.Store.DSN,
		Pool:   poolOptions(cfg.Store),
		Redis: kv.RedisOptions{
			Addr:      cfg.Store.RedisAddr,
			Password:  cfg.Store.RedisPassword,
			DB:        cfg.Store.RedisDB,
			KeyPrefix: cfg.Store.RedisPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.KV = store
	a.closers = append(a.closers, func() error { return kv.Close(store) })
	a.Balance = balance.New(store, logger)

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Dispatcher = report.NewDispatcher(sinks, report.Options{
		QueueSize:   cfg.Report.QueueSize,
		SendTimeout: cfg.Report.SendTimeout.Duration,
		Logger:      logger,
		Observer:    a.Metrics,
	})

	rule, _ := game.ParseMissRule(cfg.Game.MissRule)
	var rng game.RandomSource
	if cfg.Game.Seed != 0 {
		rng = game.NewSeededSource(cfg.Game.Seed)
	}
	a.Registry = game.NewRegistry(game.Deps{
		Odds:          odds,
		Store:         a.Balance,
		Reporter:      a.Dispatcher,
		Resolver:      game.NewResolver(rng, rule),
		Logger:        logger,
		ResolveDelay:  cfg.Game.ResolveDelay.Duration,
		MinWithdrawal: cfg.Game.MinWithdrawal,
	})
	a.Registry.OnEvent(a.Metrics.ObserveEvent)

	logger.Info("engine ready",
		"store", cfg.Store.Driver,
		"sinks", a.Dispatcher.SinkNames(),
		"miss_rule", rule,
		"resolve_delay", cfg.Game.ResolveDelay.Duration.String(),
	)
	return a, nil
}

func (a *App) buildSinks(ctx context.Context) ([]report.Sink, error) {
	cfg := a.Config.Report
	var sinks []report.Sink
	for _, name := range cfg.Sinks {
		switch strings.ToLower(name) {
		case "webhook":
			var headers map[string]string
			if cfg.WebhookToken != "" {
				headers = map[string]string{"Authorization": "Bearer " + cfg.WebhookToken}
			}
			sinks = append(sinks, report.NewWebhook(cfg.WebhookURL, headers))
		case "telegram":
			sinks = append(sinks, report.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID))
		case "discord":
			d, err := report.NewDiscord(cfg.DiscordWebhook)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, d)
		case "redis":
			rdb, err := a.reportRedis(ctx)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, report.NewRedisStream(rdb, cfg.RedisStream, 0))
		case "journal":
			j, err := report.NewJournal(cfg.JournalPath, a.Log)
			if err != nil {
				return nil, err
			}
			a.Journal = j
			sinks = append(sinks, j)
		case "s3":
			client, err := report.NewS3Client(ctx, s3Config(cfg.S3))
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, report.NewS3Archive(client, cfg.S3.Bucket, cfg.S3.Prefix))
		}
	}
	return sinks, nil
}

// reportRedis reuses the store's client when both point at the same server.
func (a *App) reportRedis(ctx context.Context) (*redis.Client, error) {
	addr := a.Config.ReportRedisAddr()
	if r, ok := a.KV.(*kv.Redis); ok && addr == a.Config.Store.RedisAddr {
		return r.Client(), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	return rdb, nil
}

func poolOptions(c config.StoreConfig) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime.Duration,
		MaxConnIdleTime: c.MaxConnIdleTime.Duration,
	}
}

func s3Config(c config.S3Config) report.S3Config {
	return report.S3Config{
		Endpoint:       c.Endpoint,
		Region:         c.Region,
		Bucket:         c.Bucket,
		Prefix:         c.Prefix,
		AccessKey:      c.AccessKey,
		SecretKey:      c.SecretKey,
		UseSSL:         c.UseSSL,
		ForcePathStyle: c.ForcePathStyle,
	}
}

// S3Archive builds the archive the journal shipper uploads to.
func S3Archive(ctx context.Context, cfg config.Config) (*report.S3Archive, error) {
	client, err := report.NewS3Client(ctx, s3Config(cfg.Report.S3))
	if err != nil {
		return nil, err
	}
	return report.NewS3Archive(client, cfg.Report.S3.Bucket, cfg.Report.S3.Prefix), nil
}

// Close drains pending reports and then releases storage.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain reports: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
