// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// releaseLeaseScript deletes a lease only when the caller still owns it.
// A plain DEL would let a holder whose lease already expired (and was
// re-acquired by someone else) clobber the newer lease.
//
// Returns -1 when no lease exists, 1 when deleted, 0 on holder mismatch.
var releaseLeaseScript = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false then return -1 end
if cur == ARGV[1] then return redis.call('DEL', KEYS[1]) end
return 0
`)

// redisEnvelope is the wire format for cached entries. ComputedAt travels
// with the value so staleness stays derivable on any process.
type redisEnvelope struct {
	Value      []byte    `json:"value"`
	ComputedAt time.Time `json:"computed_at"`
}

// RedisStore is a Store backed by Redis, safe across independent server
// processes. Lease acquisition maps to SET NX with a TTL, so an orphaned
// lease from a crashed holder self-expires without any sweeper.
type RedisStore struct {
	rdb    *goredis.Client
	clock  clockwork.Clock
	prefix string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces all keys, letting several deployments share
	// one Redis instance. Default: "bannerscope:".
	KeyPrefix string
}

// NewRedisStore connects to Redis and returns a Store implementation.
// The connection is verified with a ping so misconfiguration fails at
// startup, not on the first request.
func NewRedisStore(ctx context.Context, cfg RedisConfig, clock clockwork.Clock) (*RedisStore, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "bannerscope:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, clock: clock, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) entryKey(key string) string {
	return s.prefix + "entry:" + key
}

func (s *RedisStore) leaseKey(key string) string {
	return s.prefix + "lease:" + key
}

// Get fetches and decodes the entry for key. Redis TTL handles hard
// expiry, so an expired entry is simply absent.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, s.entryKey(key)).Bytes()
	if err == goredis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// A corrupt entry is unreadable forever; treat it as a miss so
		// the next refresh overwrites it.
		return Entry{}, false, fmt.Errorf("decode cached entry %s: %w", key, err)
	}

	return Entry{Key: key, Value: env.Value, ComputedAt: env.ComputedAt}, true, nil
}

// Set writes the entry with its hard-expiry TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	env := redisEnvelope{
		Value:      value,
		ComputedAt: s.clock.Now(),
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := s.rdb.Set(ctx, s.entryKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// AcquireLease performs the atomic create-if-absent via SET NX.
// Redis expires the key after ttl, which is the lease's self-expiry.
func (s *RedisStore) AcquireLease(ctx context.Context, key, holderID string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.leaseKey(key), holderID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire lease %s: %w", key, err)
	}
	return ok, nil
}

// ReleaseLease deletes the lease iff holderID still owns it.
func (s *RedisStore) ReleaseLease(ctx context.Context, key, holderID string) error {
	res, err := releaseLeaseScript.Run(ctx, s.rdb, []string{s.leaseKey(key)}, holderID).Int64()
	if err != nil {
		return fmt.Errorf("redis release lease %s: %w", key, err)
	}
	if res == 0 {
		return ErrNotHolder
	}
	return nil
}

// LeaseHolder returns the current lease holder, if any.
func (s *RedisStore) LeaseHolder(ctx context.Context, key string) (string, bool, error) {
	holder, err := s.rdb.Get(ctx, s.leaseKey(key)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis lease holder %s: %w", key, err)
	}
	return holder, true, nil
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
