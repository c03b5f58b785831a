package store

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the cache writes.
const DefaultRedisPrefix = "smtcache:"

var ErrNilClient = errors.New("redis store: nil client")

// Redis is a Cache shared through a Redis server.
// Insert-if-absent maps onto SETNX; entries never expire.
type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	closeClient bool
}

var (
	_ Cache           = (*Redis)(nil)
	_ SessionRecorder = (*Redis)(nil)
)

// RedisConfig configures NewRedis.
type RedisConfig struct {
	Client goredis.UniversalClient

	// Prefix defaults to DefaultRedisPrefix.
	Prefix string

	// CloseClient should be true only if the cache exclusively owns the client.
	CloseClient bool
}

// NewRedis wraps an existing client.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{rdb: cfg.Client, prefix: prefix, closeClient: cfg.CloseClient}, nil
}

// OpenRedis connects to the server named by a redis:// URL and verifies it
// answers PING.
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedis(RedisConfig{Client: client, CloseClient: true})
}

func (r *Redis) key(hash string) string { return r.prefix + hash }

// Get returns the result stored for hash.
func (r *Redis) Get(ctx context.Context, hash string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(hash)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get result: %w", err)
	}
	return v, true, nil
}

// PutIfAbsent stores result under hash unless hash is already present.
func (r *Redis) PutIfAbsent(ctx context.Context, hash, result string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.key(hash), result, 0).Result()
	if err != nil {
		return false, fmt.Errorf("put result: %w", err)
	}
	return ok, nil
}

// RecordSession stores the audit row as a hash under <prefix>session:<id>.
// A session id is recorded once.
func (r *Redis) RecordSession(ctx context.Context, rec SessionRecord) error {
	key := r.prefix + "session:" + rec.ID

	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	if n > 0 {
		return nil
	}

	err = r.rdb.HSet(ctx, key, map[string]interface{}{
		"solver":     rec.Solver,
		"started_at": rec.StartedAt.UnixMilli(),
		"ended_at":   rec.EndedAt.UnixMilli(),
		"lines":      rec.Lines,
		"lookups":    rec.Lookups,
		"hits":       rec.Hits,
		"misses":     rec.Misses,
		"forwarded":  rec.Forwarded,
		"end_reason": rec.EndReason,
	}).Err()
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Close releases the client only when this cache owns it.
// Safe to call multiple times.
func (r *Redis) Close() error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
