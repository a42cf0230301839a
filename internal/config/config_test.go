package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goalstake.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "9090"

[db]
driver = "memory"

[lock]
backend = "redis"
ttl = "3s"

[settlement]
fee_rate = 0.05

[[dev.accounts]]
wallet = "0x0000000000000000000000000000000000000b0b"
balance = 5000

[[dev.circles]]
id = "6f1c1f8e-4a53-4c2b-9d2e-3c1f3b7f2a10"
members = ["0x0000000000000000000000000000000000000b0b"]
`), 0o600))

	t.Setenv("GOALSTAKE_JWT_ACCESS_SECRET", "s3cret")
	t.Setenv("GOALSTAKE_SERVER_PORT", "7070")
	t.Setenv("GOALSTAKE_MODERATION_BLOCKED_WORDS", "spam, scam ,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "env beats file")
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 3*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "0.05", cfg.FeeRate().String())
	assert.Equal(t, "5", cfg.PoolMultiplier().String(), "default kept")
	assert.Equal(t, []string{"spam", "scam"}, cfg.Moderation.BlockedWords)
	require.Len(t, cfg.Dev.Accounts, 1)
	require.Len(t, cfg.Dev.Circles, 1)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "10", cfg.DefaultStake().String())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.DB.Driver = "sqlite"
	cfg.Lock.Backend = "etcd"
	cfg.Settlement.FeeRate = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "JWT_ACCESS_SECRET")
	assert.Contains(t, msg, "db.driver")
	assert.Contains(t, msg, "lock.backend")
	assert.Contains(t, msg, "fee_rate")
}

func TestValidate_MemoryDriverRejectedInProduction(t *testing.T) {
	cfg := Defaults()
	cfg.JWT.AccessSecret = "x"
	cfg.DB.Driver = "memory"
	cfg.Server.Env = "production"
	assert.ErrorContains(t, cfg.Validate(), "not allowed in production")
}
