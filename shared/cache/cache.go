// Package cache provides a small key/value cache with an in-process backend
// (go-cache) and a shared backend (Redis).
package cache

import (
	"context"
	"errors"
	"time"
)

// Client is the cache contract used by read paths.
type Client interface {
	// Get returns ErrNotFound when the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver     string        `env:"DRIVER"         envDefault:"memory" validate:"oneof=memory redis"`
	RedisAddr  string        `env:"REDIS_ADDR"                         validate:"required_if=Driver redis"`
	RedisPass  string        `env:"REDIS_PASSWORD"`
	RedisDB    int           `env:"REDIS_DB"`
	Prefix     string        `env:"PREFIX"         envDefault:"flowup"`
	DefaultTTL time.Duration `env:"TTL"            envDefault:"1m"`
}

var ErrNotFound = errors.New("cache: key not found")

// New creates a client for cfg.Driver, falling back to memory.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	}
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
