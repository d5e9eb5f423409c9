package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BETSLIP_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BETSLIP_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BETSLIP_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BETSLIP_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BETSLIP_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BETSLIP_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BETSLIP_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BETSLIP_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BETSLIP_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BETSLIP_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BETSLIP_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BETSLIP_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BETSLIP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BETSLIP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BETSLIP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BETSLIP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BETSLIP_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BETSLIP_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BETSLIP_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BETSLIP_S3_REGION")
	setStr(&cfg.S3.Bucket, "BETSLIP_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BETSLIP_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BETSLIP_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BETSLIP_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BETSLIP_S3_FORCE_PATH_STYLE")

	// ── Resolver ──
	setInt(&cfg.Resolver.Workers, "BETSLIP_RESOLVER_WORKERS")
	setInt(&cfg.Resolver.QueueSize, "BETSLIP_RESOLVER_QUEUE_SIZE")
	setDuration(&cfg.Resolver.LockTTL, "BETSLIP_RESOLVER_LOCK_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BETSLIP_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "BETSLIP_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "BETSLIP_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BETSLIP_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BETSLIP_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BETSLIP_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BETSLIP_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BETSLIP_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "BETSLIP_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BETSLIP_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BETSLIP_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BETSLIP_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BETSLIP_NOTIFY_EVENTS")
	setInt(&cfg.Notify.QueueSize, "BETSLIP_NOTIFY_QUEUE_SIZE")

	// ── Top-level ──
	setStr(&cfg.Mode, "BETSLIP_MODE")
	setStr(&cfg.LogLevel, "BETSLIP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
