package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces every key written by RedisCache.
	DefaultRedisPrefix = "gotlive:"

	redisOpTimeout = 2 * time.Second
	scanBatch      = 100
)

// RedisCache is a Redis-backed translation cache shared between processes.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	URL       string        // Redis connection URL (e.g., "redis://localhost:6379")
	TTL       time.Duration // 0 = no expiration
	KeyPrefix string        // default: "gotlive:"
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisCacheFromClient(client, cfg.TTL, cfg.KeyPrefix), nil
}

// NewRedisCacheFromClient creates a RedisCache from an existing Redis client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisPrefix
	}
	if ttl < 0 {
		ttl = 0
	}

	return &RedisCache{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis. Connection errors count as a miss.
func (c *RedisCache) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores a value in Redis.
func (c *RedisCache) Set(key string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	return c.client.Set(ctx, c.keyPrefix+key, value, c.ttl).Err()
}

// Clear deletes every key under the cache prefix. Keys written by other
// prefixes on the same server are left alone.
func (c *RedisCache) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 4*redisOpTimeout)
	defer cancel()

	return c.scan(ctx, func(keys []string) error {
		return c.client.Del(ctx, keys...).Err()
	})
}

// Entries returns every key under the prefix with the prefix stripped.
func (c *RedisCache) Entries() (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*redisOpTimeout)
	defer cancel()

	out := make(map[string]string)
	err := c.scan(ctx, func(keys []string) error {
		vals, err := c.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue // expired between SCAN and MGET
			}
			out[keys[i][len(c.keyPrefix):]] = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RedisCache) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", scanBatch).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("scanning %q: %w", c.keyPrefix, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var (
	_ TranslationCache = (*RedisCache)(nil)
	_ Enumerable       = (*RedisCache)(nil)
)
