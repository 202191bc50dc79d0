package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/risk"
	"github.com/rustyeddy/tradeguard/store"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.Equal(t, 0.02, cfg.Risk.RiskFraction)
	assert.Equal(t, "15:00", cfg.Exit.ForceCloseAt)
	assert.Equal(t, store.TypeFile, cfg.Store.Type)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "bad risk fraction",
			mutate: func(c *Config) { c.Risk.RiskFraction = 1.5 },
			errMsg: "risk.risk_fraction must be in (0, 1]",
		},
		{
			name:   "bad cooldown policy",
			mutate: func(c *Config) { c.Risk.CooldownPolicy = "pause" },
			errMsg: "cooldown_policy",
		},
		{
			name:   "bad force close",
			mutate: func(c *Config) { c.Exit.ForceCloseAt = "25:99" },
			errMsg: "exit.force_close_at must be HH:MM",
		},
		{
			name:   "bad trailing offset",
			mutate: func(c *Config) { c.Ledger.TrailingOffsetPct = 0 },
			errMsg: "ledger.trailing_offset_pct",
		},
		{
			name:   "file store without dir",
			mutate: func(c *Config) { c.Store.Dir = "" },
			errMsg: "store.dir is required for file store",
		},
		{
			name:   "bad lock store",
			mutate: func(c *Config) { c.LockStore = &store.Config{Type: store.TypeRedis} },
			errMsg: "lock_store: store.redis_addr is required",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "loud" },
			errMsg: "log.level",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Log.Format = "xml" },
			errMsg: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Risk.InitialBalance = 3_000_000
			cfg.Risk.CooldownPolicy = risk.CooldownReduce
			cfg.Risk.CooldownDuration = 90 * time.Minute
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Risk, loaded.Risk)
			assert.Equal(t, cfg.Exit, loaded.Exit)
			assert.Equal(t, cfg.Store, loaded.Store)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := "risk:\n  max_positions: 2\n  cooldown_duration: 45m\nstore:\n  type: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Risk.MaxPositions)
	assert.Equal(t, 45*time.Minute, cfg.Risk.CooldownDuration)
	assert.Equal(t, 10, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, store.TypeMemory, cfg.Store.Type)
	assert.Equal(t, 0.04, cfg.Exit.FirstTierPct)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk: [unclosed"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRADEGUARD_STORE_TYPE", "sqlite")
	t.Setenv("TRADEGUARD_SQLITE_PATH", "/tmp/tg.db")
	t.Setenv("TRADEGUARD_INITIAL_BALANCE", "2500000")
	t.Setenv("TRADEGUARD_LOG_LEVEL", "debug")
	t.Setenv("TRADEGUARD_REDIS_DB", "not-a-number")
	t.Setenv("TRADEGUARD_LOCK_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, store.TypeSQLite, cfg.Store.Type)
	assert.Equal(t, "/tmp/tg.db", cfg.Store.SQLitePath)
	assert.Equal(t, 2_500_000.0, cfg.Risk.InitialBalance)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Zero(t, cfg.Store.RedisDB)
	require.NotNil(t, cfg.LockStore)
	assert.Equal(t, "localhost:6379", cfg.LockStore.RedisAddr)
}
