package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/model"
)

// DefaultRedisPrefix namespaces keys written by Redis.
const DefaultRedisPrefix = "travelsearch:"

const scanBatch = 500

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Redis is a Cache backed by Redis. Entries are JSON documents expiring
// server-side after their TTL; reads apply the same staleness check as
// Memory so both backends agree on expiry.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisClient opens a client for cfg and verifies it with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: ping redis at %s", cfg.Address)
	}
	return rdb, nil
}

// NewRedis wraps an existing client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]model.Offer, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache: redis get failed", zap.String("key", ShortKey(key)), zap.Error(err))
		}
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		zap.L().Warn("cache: corrupt redis entry", zap.String("key", ShortKey(key)), zap.Error(err))
		r.client.Del(ctx, r.prefix+key)
		return nil, false
	}

	if e.Expired(r.now()) {
		r.client.Del(ctx, r.prefix+key)
		zap.L().Debug("cache entry expired", zap.String("key", ShortKey(key)))
		return nil, false
	}
	return e.Data, true
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, data []model.Offer, ttl time.Duration) {
	ttl = effectiveTTL(ttl)
	payload, err := json.Marshal(Entry{
		Key:       key,
		Data:      data,
		Timestamp: r.now(),
		TTL:       ttl,
	})
	if err != nil {
		zap.L().Warn("cache: marshal entry", zap.String("key", ShortKey(key)), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, payload, ttl).Err(); err != nil {
		zap.L().Warn("cache: redis set failed", zap.String("key", ShortKey(key)), zap.Error(err))
	}
}

// Clear implements Cache. Only keys under the configured prefix are removed.
func (r *Redis) Clear(ctx context.Context) {
	keys, err := r.scan(ctx)
	if err != nil {
		zap.L().Warn("cache: redis scan failed", zap.Error(err))
		return
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := r.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			zap.L().Warn("cache: redis clear failed", zap.Error(err))
			return
		}
	}
}

// Size implements Cache.
func (r *Redis) Size(ctx context.Context) int {
	keys, err := r.scan(ctx)
	if err != nil {
		zap.L().Warn("cache: redis scan failed", zap.Error(err))
		return 0
	}
	return len(keys)
}

func (r *Redis) scan(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	// SCAN may return a key more than once.
	seen := make(map[string]struct{})
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, eris.Wrap(err, "cache: scan")
		}
		for _, k := range batch {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
