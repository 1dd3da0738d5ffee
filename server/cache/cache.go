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

// Package cache provides the shared TTL cache used by the ban store, the
// login rate limiter and the geolocation client. The production
// implementation is backed by Redis, which supplies the atomic
// increment/decrement primitives the limiter relies on across workers.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value store scoped by a named group with per-entry TTLs.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key exists.
	Get(ctx context.Context, group, key string) (string, bool, error)

	// GetMultiple retrieves several values of one group at once. Missing
	// keys are absent from the result map.
	GetMultiple(ctx context.Context, group string, keys []string) (map[string]string, error)

	// Set stores a value with the given TTL, overwriting any previous one.
	Set(ctx context.Context, group, key, value string, ttl time.Duration) error

	// Add stores a value only if the key does not exist yet. It returns
	// false when the key was already present.
	Add(ctx context.Context, group, key, value string, ttl time.Duration) (bool, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, group, key string) error

	// Increment atomically adds 1 to an integer value and returns the new
	// value. The key keeps its TTL.
	Increment(ctx context.Context, group, key string) (int64, error)

	// Decrement atomically subtracts 1 from an integer value and returns
	// the new value.
	Decrement(ctx context.Context, group, key string) (int64, error)
}
