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

package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter decides whether a caller may make another request
type RateLimiter interface {
	Allow(ctx context.Context, caller string) (bool, error)
}

// RedisRateLimiter is a sliding one-minute window over a sorted set per
// caller, shared by all gateway instances.
type RedisRateLimiter struct {
	client         *redis.Client
	limitPerMinute int
	now            func() time.Time
}

// NewRedisRateLimiter wraps a connected client
func NewRedisRateLimiter(client *redis.Client, limitPerMinute int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:         client,
		limitPerMinute: limitPerMinute,
		now:            time.Now,
	}
}

// Allow records the request and reports whether the caller is within its
// limit. Redis failures allow the request.
func (l *RedisRateLimiter) Allow(ctx context.Context, caller string) (bool, error) {
	if l.limitPerMinute <= 0 {
		return true, nil
	}

	now := l.now()
	key := fmt.Sprintf("b1link:ratelimit:%s", caller)

	pipe := l.client.Pipeline()

	// Drop entries older than the window
	minScore := now.Add(-time.Minute).UnixNano()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))

	count := pipe.ZCard(ctx, key)

	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[GATEWAY] Rate limit check failed for %s: %v (failing open)", caller, err)
		return true, err
	}

	return count.Val() < int64(l.limitPerMinute), nil
}
