// Package store persists small snapshots of risk and position state.
//
// Every backend implements KV. Values are opaque bytes; callers encode them
// (usually JSON) with SaveJSON and LoadJSON.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("store: key not found")

// KV is a durable key-value store. Put must be atomic per key: a reader never
// observes a partially written value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Backend types accepted by Config.Type.
const (
	TypeFile   = "file"
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
	TypeMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Type string `json:"type" yaml:"type"`

	// file
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// sqlite
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`

	// redis
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	RedisPrefix   string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
}

// Validate checks the fields required by the selected backend.
func (c Config) Validate() error {
	switch c.Type {
	case TypeFile:
		if c.Dir == "" {
			return fmt.Errorf("store.dir is required for file store")
		}
	case TypeSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for sqlite store")
		}
	case TypeRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for redis store")
		}
	case TypeMemory:
	default:
		return fmt.Errorf("store.type must be one of file, sqlite, redis, memory (got %q)", c.Type)
	}
	return nil
}

// Closer is implemented by backends holding a connection.
type Closer interface {
	Close() error
}

// Open builds the backend named by cfg.Type. Callers should close the result
// when it implements Closer.
func Open(ctx context.Context, cfg Config) (KV, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeFile:
		return NewFileKV(cfg.Dir)
	case TypeSQLite:
		return NewSQLiteKV(cfg.SQLitePath)
	case TypeRedis:
		return NewRedisKV(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return NewMemoryKV(), nil
	}
}
