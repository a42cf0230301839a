// Package config provides application configuration: built-in defaults, an
// optional TOML file, a .env file and GOALSTAKE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `toml:"port"`          // e.g. "8080"
	Env          string        `toml:"env"`           // "development" | "production"
	ReadTimeout  time.Duration `toml:"read_timeout"`  // default 10s
	WriteTimeout time.Duration `toml:"write_timeout"` // default 10s
	RateLimitRPS float64       `toml:"rate_limit_rps"`
	RateBurst    int           `toml:"rate_burst"`

	// AllowedOrigins applies to CORS in production and to WS upgrades.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DBConfig holds storage settings. Driver "memory" keeps everything in
// process and is meant for development and tests.
type DBConfig struct {
	Driver          string        `toml:"driver"` // "postgres" | "memory"
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`    // default 25
	MaxIdleConns    int           `toml:"max_idle_conns"`    // default 10
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"` // default 5m
	TxRetries       int           `toml:"tx_retries"`        // serialization-failure retries
	RunMigrations   bool          `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the distributed lock.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// LockConfig selects the per-goal lock backend.
type LockConfig struct {
	Backend       string        `toml:"backend"` // "memory" | "redis"
	TTL           time.Duration `toml:"ttl"`
	RetryAttempts int           `toml:"retry_attempts"`
	RetryDelay    time.Duration `toml:"retry_delay"`
}

// JWTConfig holds JWT verification settings.
type JWTConfig struct {
	AccessSecret string        `toml:"access_secret"` // must be set
	AccessTTL    time.Duration `toml:"access_ttl"`    // default 24h, used for dev tokens
}

// LogConfig drives the zap logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Encoding    string `toml:"encoding"` // "json" | "console"
	Development bool   `toml:"development"`
}

// SettlementConfig holds the economic parameters.
type SettlementConfig struct {
	FeeRate        float64 `toml:"fee_rate"`        // default 0.02
	PoolMultiplier float64 `toml:"pool_multiplier"` // default 5
	DefaultStake   float64 `toml:"default_stake"`   // default 10
}

// ModerationConfig feeds the free-text gate in front of createGoal and
// submitProof.
type ModerationConfig struct {
	Enabled      bool     `toml:"enabled"`
	BlockedWords []string `toml:"blocked_words"`
	MaxLength    int      `toml:"max_length"`
}

// DevAccount and DevCircle seed a fresh store in development.
type DevAccount struct {
	Wallet  string  `toml:"wallet"`
	Balance float64 `toml:"balance"`
	Role    string  `toml:"role"`
}

type DevCircle struct {
	ID      string   `toml:"id"`
	Members []string `toml:"members"`
}

type DevConfig struct {
	Accounts []DevAccount `toml:"accounts"`
	Circles  []DevCircle  `toml:"circles"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	DB         DBConfig         `toml:"db"`
	Redis      RedisConfig      `toml:"redis"`
	Lock       LockConfig       `toml:"lock"`
	JWT        JWTConfig        `toml:"jwt"`
	Log        LogConfig        `toml:"log"`
	Settlement SettlementConfig `toml:"settlement"`
	Moderation ModerationConfig `toml:"moderation"`
	Dev        DevConfig        `toml:"dev"`
}

// Defaults returns a Config with every field at its built-in value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         "8080",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimitRPS: 5,
			RateBurst:    20,
		},
		DB: DBConfig{
			Driver:          "postgres",
			DSN:             "host=localhost port=5432 user=postgres dbname=goalstake sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			TxRetries:       3,
			RunMigrations:   true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 2,
		},
		Lock: LockConfig{
			Backend:       "memory",
			TTL:           10 * time.Second,
			RetryAttempts: 50,
			RetryDelay:    20 * time.Millisecond,
		},
		JWT: JWTConfig{
			AccessTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Settlement: SettlementConfig{
			FeeRate:        0.02,
			PoolMultiplier: 5,
			DefaultStake:   10,
		},
		Moderation: ModerationConfig{
			Enabled:      true,
			BlockedWords: []string{"scam", "rugpull", "rug pull", "ponzi"},
			MaxLength:    2000,
		},
	}
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// FeeRate returns the settlement fee as a decimal.
func (c *Config) FeeRate() decimal.Decimal {
	return decimal.NewFromFloat(c.Settlement.FeeRate)
}

// PoolMultiplier returns the pool cap multiplier as a decimal.
func (c *Config) PoolMultiplier() decimal.Decimal {
	return decimal.NewFromFloat(c.Settlement.PoolMultiplier)
}

// DefaultStake returns the stake applied when a create request omits one.
func (c *Config) DefaultStake() decimal.Decimal {
	return decimal.NewFromFloat(c.Settlement.DefaultStake)
}

// Validate checks that all required configuration values are present and
// valid. Every problem is reported, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("GOALSTAKE_JWT_ACCESS_SECRET must be set"))
	}

	switch c.DB.Driver {
	case "postgres":
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("db.dsn must be set for the postgres driver"))
		}
	case "memory":
		if c.IsProd() {
			errs = append(errs, errors.New("db.driver=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("db.driver must be postgres or memory, got %q", c.DB.Driver))
	}
	if c.DB.TxRetries < 0 {
		errs = append(errs, fmt.Errorf("db.tx_retries must be >= 0, got %d", c.DB.TxRetries))
	}

	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr must be set for the redis lock backend"))
		}
		if c.Lock.TTL <= 0 {
			errs = append(errs, errors.New("lock.ttl must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.backend must be memory or redis, got %q", c.Lock.Backend))
	}

	if c.Settlement.FeeRate < 0 || c.Settlement.FeeRate >= 1 {
		errs = append(errs, fmt.Errorf(
			"settlement.fee_rate must be in [0, 1), got %.4f", c.Settlement.FeeRate))
	}
	if c.Settlement.PoolMultiplier <= 0 {
		errs = append(errs, fmt.Errorf(
			"settlement.pool_multiplier must be positive, got %.2f", c.Settlement.PoolMultiplier))
	}
	if c.Settlement.DefaultStake < 0 {
		errs = append(errs, fmt.Errorf(
			"settlement.default_stake must be >= 0, got %.2f", c.Settlement.DefaultStake))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}
