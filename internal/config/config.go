package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Store    StoreConfig  `toml:"store"`
	Game     GameConfig   `toml:"game"`
	Report   ReportConfig `toml:"report"`
	API      APIConfig    `toml:"api"`
	Bot      BotConfig    `toml:"bot"`
	Worker   WorkerConfig `toml:"worker"`
	User     string       `toml:"user"`
	LogLevel string       `toml:"log_level"`
}

type StoreConfig struct {
	Driver        string `toml:"driver"`
	Path          string `toml:"path"`
	DSN           string `toml:"dsn"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`

	// Postgres pool; zero values fall back to the driver defaults.
	MaxConns        int32    `toml:"max_conns"`
	MinConns        int32    `toml:"min_conns"`
	MaxConnLifetime Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime Duration `toml:"max_conn_idle_time"`
}

type GameConfig struct {
	OddsFile      string   `toml:"odds_file"`
	ResolveDelay  Duration `toml:"resolve_delay"`
	MissRule      string   `toml:"miss_rule"`
	Seed          uint64   `toml:"seed"`
	MinWithdrawal float64  `toml:"min_withdrawal"`
}

type ReportConfig struct {
	Sinks          []string `toml:"sinks"`
	QueueSize      int      `toml:"queue_size"`
	SendTimeout    Duration `toml:"send_timeout"`
	WebhookURL     string   `toml:"webhook_url"`
	WebhookToken   string   `toml:"webhook_token"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	RedisStream    string   `toml:"redis_stream"`
	RedisAddr      string   `toml:"redis_addr"`
	JournalPath    string   `toml:"journal_path"`
	S3             S3Config `toml:"s3"`
}

type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

type APIConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
	// URL points the terminal client at a running minibet-api instead of
	// an in-process engine.
	URL             string   `toml:"url"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	// SessionIdle is how long an idle user session stays in memory.
	SessionIdle Duration `toml:"session_idle"`
}

type BotConfig struct {
	Username   string `toml:"username"`
	DepositBot string `toml:"deposit_bot"`
}

type WorkerConfig struct {
	Interval Duration `toml:"interval"`
	RunOnce  bool     `toml:"run_once"`
}

// Duration lets TOML carry values like "2s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Dir is the per-user state directory, ~/.minibet.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".minibet"), nil
}

func Defaults() Config {
	dir, err := Dir()
	if err != nil {
		dir = ".minibet"
	}
	return Config{
		Store: StoreConfig{
			Driver:      "file",
			Path:        filepath.Join(dir, "store.json"),
			RedisPrefix: "minibet:",
		},
		Game: GameConfig{
			ResolveDelay:  Duration{2 * time.Second},
			MissRule:      "strict",
			MinWithdrawal: 50,
		},
		Report: ReportConfig{
			Sinks:       []string{"journal"},
			QueueSize:   256,
			SendTimeout: Duration{10 * time.Second},
			RedisStream: "minibet:reports",
			JournalPath: filepath.Join(dir, "reports.json"),
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "minibet",
				UseSSL: true,
			},
		},
		API: APIConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
			SessionIdle:     Duration{30 * time.Minute},
		},
		Bot: BotConfig{
			Username:   "minibet_bot",
			DepositBot: "CryptoBot",
		},
		Worker: WorkerConfig{
			Interval: Duration{5 * time.Minute},
		},
		LogLevel: "info",
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback Duration) Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return Duration{d}
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envUintDefault(key string, fallback uint64) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func fmtList(vs []string) string {
	return fmt.Sprintf("[%s]", strings.Join(vs, ", "))
}
