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
// built-in defaults, applies INTENT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known INTENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "INTENT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "INTENT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "INTENT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "INTENT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "INTENT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "INTENT_SERVER_RATE_LIMIT_WINDOW")

	// ── Database ──
	setStr(&cfg.Database.DSN, "INTENT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "INTENT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "INTENT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "INTENT_DATABASE_NAME")
	setStr(&cfg.Database.User, "INTENT_DATABASE_USER")
	setStr(&cfg.Database.Password, "INTENT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "INTENT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "INTENT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "INTENT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "INTENT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "INTENT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "INTENT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "INTENT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "INTENT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "INTENT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "INTENT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "INTENT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "INTENT_S3_REGION")
	setStr(&cfg.S3.Bucket, "INTENT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "INTENT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "INTENT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "INTENT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "INTENT_S3_FORCE_PATH_STYLE")

	// ── Signing ──
	setInt64(&cfg.Signing.ChainID, "INTENT_SIGNING_CHAIN_ID")
	setStr(&cfg.Signing.VerifyingContract, "INTENT_SIGNING_VERIFYING_CONTRACT")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "INTENT_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "INTENT_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "INTENT_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "INTENT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "INTENT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "INTENT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "INTENT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "INTENT_MODE")
	setStr(&cfg.LogLevel, "INTENT_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
