// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sapb1

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultCacheTTL applies to cached lookup values. Currency, expense and
// shipping type codes change rarely.
const DefaultCacheTTL = 15 * time.Minute

// RedisKeyPrefix namespaces lookup keys in a shared Redis
const RedisKeyPrefix = "b1link:lookup:"

// LookupCache stores small lookup values by key
type LookupCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a process-local LookupCache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the value if present and not expired
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if c.expired(entry) {
		c.mu.Lock()
		// A Set may have replaced the entry since it was read
		if current, ok := c.entries[key]; ok && c.expired(current) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) expired(entry cacheEntry) bool {
	return !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt)
}

// Set stores value. A ttl of zero keeps it until the process exits.
func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// RedisCache shares lookup values between gateway instances
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a connected client
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedisCache parses a redis:// URL and checks the connection
func DialRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get reads a key. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, RedisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set writes a key with expiry
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, RedisKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Client returns the underlying client so that other Redis users, such as
// the gateway rate limiter, can share its connection pool
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
