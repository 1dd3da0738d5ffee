// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/croessner/secenh/server/rediscli"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on top of the shared Redis client. Reads go to
// the read handle, writes to the write handle.
type RedisCache struct {
	client rediscli.Client
	prefix string
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache returns a RedisCache using the given client and key prefix.
func NewRedisCache(client rediscli.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// redisKey builds "<prefix><group>:<key>".
func (c *RedisCache) redisKey(group, key string) string {
	return c.prefix + group + ":" + key
}

// Get retrieves a value from Redis. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, group, key string) (string, bool, error) {
	value, err := c.client.GetReadHandle().Get(ctx, c.redisKey(group, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, err
	}

	return value, true, nil
}

// GetMultiple retrieves several values of one group with a single MGET.
func (c *RedisCache) GetMultiple(ctx context.Context, group string, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	redisKeys := make([]string, len(keys))
	for index, key := range keys {
		redisKeys[index] = c.redisKey(group, key)
	}

	values, err := c.client.GetReadHandle().MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(keys))

	for index, value := range values {
		if value == nil {
			continue
		}

		if str, ok := value.(string); ok {
			result[keys[index]] = str
		}
	}

	return result, nil
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, group, key, value string, ttl time.Duration) error {
	return c.client.GetWriteHandle().Set(ctx, c.redisKey(group, key), value, ttl).Err()
}

// Add stores a value only if the key does not exist yet (SETNX semantics).
func (c *RedisCache) Add(ctx context.Context, group, key, value string, ttl time.Duration) (bool, error) {
	return c.client.GetWriteHandle().SetNX(ctx, c.redisKey(group, key), value, ttl).Result()
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, group, key string) error {
	return c.client.GetWriteHandle().Del(ctx, c.redisKey(group, key)).Err()
}

// Increment atomically adds 1 to an integer value. INCR preserves the TTL of
// an existing key, which is what keeps the failure windows sliding.
func (c *RedisCache) Increment(ctx context.Context, group, key string) (int64, error) {
	return c.client.GetWriteHandle().Incr(ctx, c.redisKey(group, key)).Result()
}

// Decrement atomically subtracts 1 from an integer value.
func (c *RedisCache) Decrement(ctx context.Context, group, key string) (int64, error) {
	return c.client.GetWriteHandle().Decr(ctx, c.redisKey(group, key)).Result()
}
