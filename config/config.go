package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradeguard/exit"
	"github.com/rustyeddy/tradeguard/position"
	"github.com/rustyeddy/tradeguard/risk"
	"github.com/rustyeddy/tradeguard/store"
)

// Config is the complete tradeguard configuration
type Config struct {
	Risk   risk.Policy     `json:"risk" yaml:"risk"`
	Exit   exit.Config     `json:"exit" yaml:"exit"`
	Ledger position.Config `json:"ledger" yaml:"ledger"`
	Store  store.Config    `json:"store" yaml:"store"`

	// LockStore holds the cooldown lock shared by processes trading the same
	// account. Nil keeps it in Store.
	LockStore *store.Config `json:"lock_store,omitempty" yaml:"lock_store,omitempty"`

	Log LogConfig `json:"log" yaml:"log"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// LoadFromFile loads configuration from a file (YAML or JSON), then applies
// .env and TRADEGUARD_* environment overrides and validates the result.
// Fields missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads path when it is set and otherwise starts from Default, applying
// the environment either way.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	_ = godotenv.Load()
	cfg := Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overwrites fields from TRADEGUARD_* variables that are set and
// non-empty. Unparseable numbers are ignored.
func (c *Config) ApplyEnv() {
	setStr(&c.Store.Type, "TRADEGUARD_STORE_TYPE")
	setStr(&c.Store.Dir, "TRADEGUARD_STATE_DIR")
	setStr(&c.Store.SQLitePath, "TRADEGUARD_SQLITE_PATH")
	setStr(&c.Store.RedisAddr, "TRADEGUARD_REDIS_ADDR")
	setStr(&c.Store.RedisPassword, "TRADEGUARD_REDIS_PASSWORD")
	setInt(&c.Store.RedisDB, "TRADEGUARD_REDIS_DB")

	if addr := os.Getenv("TRADEGUARD_LOCK_REDIS_ADDR"); addr != "" {
		c.LockStore = &store.Config{Type: store.TypeRedis, RedisAddr: addr, RedisPrefix: "tradeguard:"}
		setStr(&c.LockStore.RedisPassword, "TRADEGUARD_REDIS_PASSWORD")
	}

	setFloat64(&c.Risk.InitialBalance, "TRADEGUARD_INITIAL_BALANCE")
	setStr(&c.Exit.Location, "TRADEGUARD_LOCATION")

	setStr(&c.Log.Level, "TRADEGUARD_LOG_LEVEL")
	setStr(&c.Log.Format, "TRADEGUARD_LOG_FORMAT")
}

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Exit.Validate(); err != nil {
		return err
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.LockStore != nil {
		if err := c.LockStore.Validate(); err != nil {
			return fmt.Errorf("lock_store: %w", err)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Risk:   risk.DefaultPolicy(),
		Exit:   exit.DefaultConfig(),
		Ledger: position.DefaultConfig(),
		Store: store.Config{
			Type: store.TypeFile,
			Dir:  "./state",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
