package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedis connects to cfg.RedisAddr and verifies the connection.
func NewRedis(cfg Config) (Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping %s: %w", cfg.RedisAddr, err)
	}

	return &redisClient{
		client:     client,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

func (r *redisClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, prefixed(r.prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.client.Set(ctx, prefixed(r.prefix, key), value, ttl).Err()
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, prefixed(r.prefix, key)).Err()
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
