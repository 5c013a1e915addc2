// internal/infrastructure/cache/store.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/b2b-storefront/internal/config"
)

// Cache is the key-value store the repositories read through and invalidate
// against. Implementations must treat a missing key as (false, nil), never as
// an error, so callers can fall through to the durable store.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	GetRaw(ctx context.Context, key string) (string, error)
	SetRaw(ctx context.Context, key, value string, ttl time.Duration) error
	Stats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) (int64, error)
}

// Stats holds aggregate cache statistics for the admin surface
type Stats struct {
	Keys       int64  `json:"keys"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Evictions  int64  `json:"evictions"`
	UsedMemory string `json:"used_memory"`
}

// RedisStore implements Cache on top of Redis with namespaced keys
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed cache store
func NewRedisStore(client *redis.Client, cfg *config.Config) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: cfg.Cache.KeyPrefix,
	}
}

// Get retrieves a JSON value by key; (false, nil) on miss
func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to decode cached value for %s: %w", key, err)
	}
	return true, nil
}

// Set stores a JSON-encoded value with the given TTL
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	return s.client.Set(ctx, s.buildKey(key), payload, ttl).Err()
}

// Delete removes one or more keys
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.buildKey(k)
	}
	return s.client.Del(ctx, full...).Err()
}

// DeletePattern removes all keys matching a glob pattern (prefix-scoped).
// Uses SCAN rather than KEYS so a large keyspace does not block the server.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64

	iter := s.client.Scan(ctx, 0, s.buildKey(pattern), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	return deleted, nil
}

// GetRaw returns the raw string stored under key; empty string on miss
func (s *RedisStore) GetRaw(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// SetRaw stores a raw string under key; used for diagnostics and cache-warm
func (s *RedisStore) SetRaw(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.buildKey(key), value, ttl).Err()
}

// Stats reports aggregate cache statistics
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	// Count keys in our namespace
	iter := s.client.Scan(ctx, 0, s.buildKey("*"), 500).Iterator()
	for iter.Next(ctx) {
		stats.Keys++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	// Server-wide counters from INFO
	info, err := s.client.Info(ctx, "stats", "memory").Result()
	if err != nil {
		return nil, err
	}
	parseInfoField(info, "keyspace_hits", &stats.Hits)
	parseInfoField(info, "keyspace_misses", &stats.Misses)
	parseInfoField(info, "evicted_keys", &stats.Evictions)
	stats.UsedMemory = parseInfoString(info, "used_memory_human")

	return stats, nil
}

// Clear removes every key in our namespace
func (s *RedisStore) Clear(ctx context.Context) (int64, error) {
	return s.DeletePattern(ctx, "*")
}

func (s *RedisStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

func parseInfoField(info, field string, dest *int64) {
	var v int64
	if _, err := fmt.Sscanf(sectionAfter(info, field+":"), "%d", &v); err == nil {
		*dest = v
	}
}

func parseInfoString(info, field string) string {
	var v string
	fmt.Sscanf(sectionAfter(info, field+":"), "%s", &v)
	return v
}

// sectionAfter returns the substring of an INFO payload starting right after
// the first occurrence of marker, or "" when absent
func sectionAfter(info, marker string) string {
	for i := 0; i+len(marker) <= len(info); i++ {
		if info[i:i+len(marker)] == marker {
			return info[i+len(marker):]
		}
	}
	return ""
}
