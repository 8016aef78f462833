package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Redis is the shared fixed-window gate for multi-instance deployments:
// INCR per window key plus EXPIRE NX keeps the count and the window
// boundary consistent across instances.
type Redis struct {
	client rueidis.Client
	prefix string
	span   time.Duration
	limit  int
}

var _ Gate = (*Redis)(nil)

// RedisConfig holds connection parameters for the gate.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	Prefix   string
}

// NewRedis creates a Redis/Valkey-backed gate via rueidis.
func NewRedis(cfg RedisConfig, span time.Duration, limit int) (*Redis, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bbs:rate:"
	}
	return &Redis{client: client, prefix: prefix, span: span, limit: limit}, nil
}

// NewRedisWithClient wraps an existing rueidis client (tests).
func NewRedisWithClient(client rueidis.Client, prefix string, span time.Duration, limit int) *Redis {
	return &Redis{client: client, prefix: prefix, span: span, limit: limit}
}

// Allow increments the identity's window counter. The first increment of a
// window sets its expiry; EXPIRE NX leaves an already-running window's
// boundary untouched.
func (r *Redis) Allow(ctx context.Context, fingerprint string) (bool, error) {
	key := r.prefix + fingerprint

	n, err := r.client.Do(ctx, r.client.B().Incr().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", key, err)
	}

	expire := r.client.B().Expire().Key(key).
		Seconds(int64(r.span.Seconds())).Nx().Build()
	if err := r.client.Do(ctx, expire).Error(); err != nil {
		return false, fmt.Errorf("expire %s: %w", key, err)
	}

	return n <= int64(r.limit), nil
}

// Close shuts down the client.
func (r *Redis) Close() {
	r.client.Close()
}
