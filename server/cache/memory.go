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
	"strconv"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache used by unit tests. It must never back
// the limiter in production because counters would under-count across
// workers. The clock is injectable so TTL expiry is testable without
// sleeping.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty MemoryCache using the wall clock.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetNowFunc replaces the clock. Only tests call this.
func (c *MemoryCache) SetNowFunc(now func() time.Time) {
	c.mu.Lock()

	defer c.mu.Unlock()

	c.now = now
}

func (c *MemoryCache) memKey(group, key string) string {
	return group + ":" + key
}

// lookup returns the live entry for a key, evicting it when expired. The
// caller must hold the mutex.
func (c *MemoryCache) lookup(group, key string) (memoryEntry, bool) {
	entry, ok := c.entries[c.memKey(group, key)]
	if !ok {
		return memoryEntry{}, false
	}

	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(c.now()) {
		delete(c.entries, c.memKey(group, key))

		return memoryEntry{}, false
	}

	return entry, true
}

// Get retrieves a value.
func (c *MemoryCache) Get(_ context.Context, group, key string) (string, bool, error) {
	c.mu.Lock()

	defer c.mu.Unlock()

	entry, ok := c.lookup(group, key)
	if !ok {
		return "", false, nil
	}

	return entry.value, true, nil
}

// GetMultiple retrieves several values of one group.
func (c *MemoryCache) GetMultiple(_ context.Context, group string, keys []string) (map[string]string, error) {
	c.mu.Lock()

	defer c.mu.Unlock()

	result := make(map[string]string, len(keys))

	for _, key := range keys {
		if entry, ok := c.lookup(group, key); ok {
			result[key] = entry.value
		}
	}

	return result, nil
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(_ context.Context, group, key, value string, ttl time.Duration) error {
	c.mu.Lock()

	defer c.mu.Unlock()

	c.store(group, key, value, ttl)

	return nil
}

// Add stores a value only if the key does not exist yet.
func (c *MemoryCache) Add(_ context.Context, group, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()

	defer c.mu.Unlock()

	if _, ok := c.lookup(group, key); ok {
		return false, nil
	}

	c.store(group, key, value, ttl)

	return true, nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, group, key string) error {
	c.mu.Lock()

	defer c.mu.Unlock()

	delete(c.entries, c.memKey(group, key))

	return nil
}

// Increment atomically adds 1 to an integer value, creating it at 1 with no
// TTL when absent (matching Redis INCR).
func (c *MemoryCache) Increment(_ context.Context, group, key string) (int64, error) {
	return c.addDelta(group, key, 1)
}

// Decrement atomically subtracts 1 from an integer value.
func (c *MemoryCache) Decrement(_ context.Context, group, key string) (int64, error) {
	return c.addDelta(group, key, -1)
}

func (c *MemoryCache) addDelta(group, key string, delta int64) (int64, error) {
	c.mu.Lock()

	defer c.mu.Unlock()

	var current int64

	entry, ok := c.lookup(group, key)
	if ok {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, err
		}

		current = parsed
	}

	current += delta

	expiresAt := entry.expiresAt
	c.entries[c.memKey(group, key)] = memoryEntry{value: strconv.FormatInt(current, 10), expiresAt: expiresAt}

	return current, nil
}

func (c *MemoryCache) store(group, key, value string, ttl time.Duration) {
	var expiresAt time.Time

	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.entries[c.memKey(group, key)] = memoryEntry{value: value, expiresAt: expiresAt}
}
