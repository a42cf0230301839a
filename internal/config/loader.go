package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOALSTAKE_"

// Load builds the Config: defaults, then the TOML file at path (skipped when
// path is empty or the file does not exist), then .env, then GOALSTAKE_*
// variables. The result is NOT validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setStr(&cfg.Server.Port, "SERVER_PORT")
	setStr(&cfg.Server.Env, "ENVIRONMENT")
	setDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setFloat64(&cfg.Server.RateLimitRPS, "SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateBurst, "SERVER_RATE_BURST")
	setStringSlice(&cfg.Server.AllowedOrigins, "SERVER_ALLOWED_ORIGINS")

	// ── Database ──
	setStr(&cfg.DB.Driver, "DB_DRIVER")
	setStr(&cfg.DB.DSN, "DATABASE_DSN")
	setInt(&cfg.DB.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&cfg.DB.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	setDuration(&cfg.DB.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME")
	setInt(&cfg.DB.TxRetries, "DB_TX_RETRIES")
	setBool(&cfg.DB.RunMigrations, "DB_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")

	// ── Lock ──
	setStr(&cfg.Lock.Backend, "LOCK_BACKEND")
	setDuration(&cfg.Lock.TTL, "LOCK_TTL")
	setInt(&cfg.Lock.RetryAttempts, "LOCK_RETRY_ATTEMPTS")
	setDuration(&cfg.Lock.RetryDelay, "LOCK_RETRY_DELAY")

	// ── JWT ──
	setStr(&cfg.JWT.AccessSecret, "JWT_ACCESS_SECRET")
	setDuration(&cfg.JWT.AccessTTL, "JWT_ACCESS_TTL")

	// ── Log ──
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Encoding, "LOG_ENCODING")
	setBool(&cfg.Log.Development, "LOG_DEVELOPMENT")

	// ── Settlement ──
	setFloat64(&cfg.Settlement.FeeRate, "SETTLEMENT_FEE_RATE")
	setFloat64(&cfg.Settlement.PoolMultiplier, "SETTLEMENT_POOL_MULTIPLIER")
	setFloat64(&cfg.Settlement.DefaultStake, "SETTLEMENT_DEFAULT_STAKE")

	// ── Moderation ──
	setBool(&cfg.Moderation.Enabled, "MODERATION_ENABLED")
	setStringSlice(&cfg.Moderation.BlockedWords, "MODERATION_BLOCKED_WORDS")
	setInt(&cfg.Moderation.MaxLength, "MODERATION_MAX_LENGTH")
}

// ──────────────────────────────────────────────────────────────────────────────
// Typed env-var helpers. Each only mutates the target when the variable is set
// and parses; a malformed value keeps the previous setting.
// ──────────────────────────────────────────────────────────────────────────────

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v, ok := lookup(key); ok {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		*dst = cleaned
	}
}
