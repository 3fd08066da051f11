package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"minibet/internal/game"
)

const DefaultPath = "minibet.toml"

// Load merges, in order: built-in defaults, the TOML file, a .env file in
// the working directory, and MINIBET_* environment variables. An empty path
// means MINIBET_CONFIG or minibet.toml; only an explicitly named file has to
// exist. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Defaults()

	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("MINIBET_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Store.Driver = envDefault("MINIBET_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.Path = envDefault("MINIBET_STORE_PATH", cfg.Store.Path)
	cfg.Store.DSN = envDefault("MINIBET_STORE_DSN", envDefault("DATABASE_URL", cfg.Store.DSN))
	cfg.Store.RedisAddr = envDefault("MINIBET_STORE_REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = envDefault("MINIBET_STORE_REDIS_PASSWORD", cfg.Store.RedisPassword)
	cfg.Store.RedisDB = envIntDefault("MINIBET_STORE_REDIS_DB", cfg.Store.RedisDB)
	cfg.Store.RedisPrefix = envDefault("MINIBET_STORE_REDIS_PREFIX", cfg.Store.RedisPrefix)
	cfg.Store.MaxConns = int32(envIntDefault("MINIBET_STORE_MAX_CONNS", int(cfg.Store.MaxConns)))
	cfg.Store.MinConns = int32(envIntDefault("MINIBET_STORE_MIN_CONNS", int(cfg.Store.MinConns)))
	cfg.Store.MaxConnLifetime = envDurationDefault("MINIBET_STORE_MAX_CONN_LIFETIME", cfg.Store.MaxConnLifetime)
	cfg.Store.MaxConnIdleTime = envDurationDefault("MINIBET_STORE_MAX_CONN_IDLE_TIME", cfg.Store.MaxConnIdleTime)

	cfg.Game.OddsFile = envDefault("MINIBET_GAME_ODDS_FILE", cfg.Game.OddsFile)
	cfg.Game.ResolveDelay = envDurationDefault("MINIBET_GAME_RESOLVE_DELAY", cfg.Game.ResolveDelay)
	cfg.Game.MissRule = envDefault("MINIBET_GAME_MISS_RULE", cfg.Game.MissRule)
	cfg.Game.Seed = envUintDefault("MINIBET_GAME_SEED", cfg.Game.Seed)
	cfg.Game.MinWithdrawal = envFloatDefault("MINIBET_GAME_MIN_WITHDRAWAL", cfg.Game.MinWithdrawal)

	cfg.Report.Sinks = envListDefault("MINIBET_REPORT_SINKS", cfg.Report.Sinks)
	cfg.Report.QueueSize = envIntDefault("MINIBET_REPORT_QUEUE_SIZE", cfg.Report.QueueSize)
	cfg.Report.SendTimeout = envDurationDefault("MINIBET_REPORT_SEND_TIMEOUT", cfg.Report.SendTimeout)
	cfg.Report.WebhookURL = envDefault("MINIBET_REPORT_WEBHOOK_URL", cfg.Report.WebhookURL)
	cfg.Report.WebhookToken = envDefault("MINIBET_REPORT_WEBHOOK_TOKEN", cfg.Report.WebhookToken)
	cfg.Report.TelegramToken = envDefault("MINIBET_REPORT_TELEGRAM_TOKEN", cfg.Report.TelegramToken)
	cfg.Report.TelegramChatID = envDefault("MINIBET_REPORT_TELEGRAM_CHAT_ID", cfg.Report.TelegramChatID)
	cfg.Report.DiscordWebhook = envDefault("MINIBET_REPORT_DISCORD_WEBHOOK", cfg.Report.DiscordWebhook)
	cfg.Report.RedisStream = envDefault("MINIBET_REPORT_REDIS_STREAM", cfg.Report.RedisStream)
	cfg.Report.RedisAddr = envDefault("MINIBET_REPORT_REDIS_ADDR", cfg.Report.RedisAddr)
	cfg.Report.JournalPath = envDefault("MINIBET_REPORT_JOURNAL_PATH", cfg.Report.JournalPath)
	cfg.Report.S3.Endpoint = envDefault("MINIBET_S3_ENDPOINT", cfg.Report.S3.Endpoint)
	cfg.Report.S3.Region = envDefault("MINIBET_S3_REGION", cfg.Report.S3.Region)
	cfg.Report.S3.Bucket = envDefault("MINIBET_S3_BUCKET", cfg.Report.S3.Bucket)
	cfg.Report.S3.Prefix = envDefault("MINIBET_S3_PREFIX", cfg.Report.S3.Prefix)
	cfg.Report.S3.AccessKey = envDefault("MINIBET_S3_ACCESS_KEY", cfg.Report.S3.AccessKey)
	cfg.Report.S3.SecretKey = envDefault("MINIBET_S3_SECRET_KEY", cfg.Report.S3.SecretKey)
	cfg.Report.S3.UseSSL = envBoolDefault("MINIBET_S3_USE_SSL", cfg.Report.S3.UseSSL)
	cfg.Report.S3.ForcePathStyle = envBoolDefault("MINIBET_S3_FORCE_PATH_STYLE", cfg.Report.S3.ForcePathStyle)

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.API.Addr = port
	} else {
		cfg.API.Addr = envDefault("MINIBET_API_ADDR", cfg.API.Addr)
	}
	cfg.API.Token = envDefault("MINIBET_API_TOKEN", cfg.API.Token)
	cfg.API.URL = envDefault("MINIBET_API_URL", cfg.API.URL)
	cfg.API.ShutdownTimeout = envDurationDefault("MINIBET_API_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)
	cfg.API.SessionIdle = envDurationDefault("MINIBET_API_SESSION_IDLE", cfg.API.SessionIdle)

	cfg.Bot.Username = envDefault("MINIBET_BOT_USERNAME", cfg.Bot.Username)
	cfg.Bot.DepositBot = envDefault("MINIBET_BOT_DEPOSIT_BOT", cfg.Bot.DepositBot)

	cfg.Worker.Interval = envDurationDefault("MINIBET_WORKER_INTERVAL", cfg.Worker.Interval)
	cfg.Worker.RunOnce = envBoolDefault("MINIBET_WORKER_RUN_ONCE", cfg.Worker.RunOnce)

	cfg.User = envDefault("MINIBET_USER", cfg.User)
	cfg.LogLevel = envDefault("MINIBET_LOG_LEVEL", cfg.LogLevel)
}

var (
	validDrivers   = []string{"memory", "file", "postgres", "redis", "sqlite"}
	validSinks     = []string{"webhook", "telegram", "discord", "redis", "journal", "s3"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

func (c *Config) Validate() error {
	var errs []string

	driver := strings.ToLower(c.Store.Driver)
	switch {
	case !slices.Contains(validDrivers, driver):
		errs = append(errs, fmt.Sprintf("unknown store.driver %q (valid: %s)", c.Store.Driver, fmtList(validDrivers)))
	case (driver == "file" || driver == "sqlite") && strings.TrimSpace(c.Store.Path) == "":
		errs = append(errs, "store.path is required for the "+driver+" driver")
	case driver == "postgres" && strings.TrimSpace(c.Store.DSN) == "":
		errs = append(errs, "store.dsn is required for the postgres driver")
	case driver == "redis" && strings.TrimSpace(c.Store.RedisAddr) == "":
		errs = append(errs, "store.redis_addr is required for the redis driver")
	}
	if c.Store.MaxConns < 0 || c.Store.MinConns < 0 || (c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns) {
		errs = append(errs, "store.min_conns and store.max_conns must be non-negative with min_conns <= max_conns")
	}

	if _, err := game.ParseMissRule(c.Game.MissRule); err != nil {
		errs = append(errs, "game.miss_rule: "+err.Error())
	}
	if c.Game.ResolveDelay.Duration < 0 {
		errs = append(errs, "game.resolve_delay must not be negative")
	}
	if c.Game.MinWithdrawal <= 0 {
		errs = append(errs, "game.min_withdrawal must be positive")
	}

	if c.API.SessionIdle.Duration < 0 {
		errs = append(errs, "api.session_idle must not be negative")
	}

	if c.Report.QueueSize <= 0 {
		errs = append(errs, "report.queue_size must be positive")
	}
	for _, s := range c.Report.Sinks {
		switch strings.ToLower(s) {
		case "webhook":
			if c.Report.WebhookURL == "" {
				errs = append(errs, "report.webhook_url is required for the webhook sink")
			}
		case "telegram":
			if c.Report.TelegramToken == "" || c.Report.TelegramChatID == "" {
				errs = append(errs, "report.telegram_token and report.telegram_chat_id are required for the telegram sink")
			}
		case "discord":
			if c.Report.DiscordWebhook == "" {
				errs = append(errs, "report.discord_webhook is required for the discord sink")
			}
		case "redis":
			if c.ReportRedisAddr() == "" {
				errs = append(errs, "report.redis_addr (or store.redis_addr) is required for the redis sink")
			}
		case "journal":
			if c.Report.JournalPath == "" {
				errs = append(errs, "report.journal_path is required for the journal sink")
			}
		case "s3":
			if err := c.Report.S3.validate(); err != nil {
				errs = append(errs, err.Error())
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown report sink %q (valid: %s)", s, fmtList(validSinks)))
		}
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: %s)", c.LogLevel, fmtList(validLogLevels)))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateWorker checks what the journal shipper needs on top of Validate.
func (c *Config) ValidateWorker() error {
	var errs []string
	if c.Report.JournalPath == "" {
		errs = append(errs, "report.journal_path is required")
	}
	if err := c.Report.S3.validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Worker.Interval.Duration <= 0 && !c.Worker.RunOnce {
		errs = append(errs, "worker.interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("worker config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s S3Config) validate() error {
	if s.Bucket == "" || s.Region == "" {
		return errors.New("report.s3.bucket and report.s3.region are required")
	}
	return nil
}

// ReportRedisAddr falls back to the store's Redis when the report stream has
// no address of its own.
func (c *Config) ReportRedisAddr() string {
	if c.Report.RedisAddr != "" {
		return c.Report.RedisAddr
	}
	return c.Store.RedisAddr
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
