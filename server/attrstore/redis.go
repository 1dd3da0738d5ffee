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

package attrstore

import (
	"context"
	"errors"

	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/rediscli"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each user's attributes in one Redis hash and all global
// options in a single hash. None of the keys carry a TTL.
type RedisStore struct {
	client rediscli.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a RedisStore writing keys under the given prefix.
func NewRedisStore(client rediscli.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) userKey(username string) string {
	return s.prefix + definitions.RedisUserAttrPrefix + username
}

func (s *RedisStore) optionKey() string {
	return s.prefix + "options"
}

// GetUserAttr returns one attribute of a user.
func (s *RedisStore) GetUserAttr(ctx context.Context, username, attr string) (string, bool, error) {
	value, err := s.client.GetReadHandle().HGet(ctx, s.userKey(username), attr).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return value, true, nil
}

// SetUserAttr writes one attribute of a user.
func (s *RedisStore) SetUserAttr(ctx context.Context, username, attr, value string) error {
	return s.client.GetWriteHandle().HSet(ctx, s.userKey(username), attr, value).Err()
}

// DeleteUserAttr removes one attribute of a user.
func (s *RedisStore) DeleteUserAttr(ctx context.Context, username, attr string) error {
	return s.client.GetWriteHandle().HDel(ctx, s.userKey(username), attr).Err()
}

// GetOption returns one global option.
func (s *RedisStore) GetOption(ctx context.Context, name string) (string, bool, error) {
	value, err := s.client.GetReadHandle().HGet(ctx, s.optionKey(), name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return value, true, nil
}

// SetOption writes one global option.
func (s *RedisStore) SetOption(ctx context.Context, name, value string) error {
	return s.client.GetWriteHandle().HSet(ctx, s.optionKey(), name, value).Err()
}

// DeleteOption removes one global option.
func (s *RedisStore) DeleteOption(ctx context.Context, name string) error {
	return s.client.GetWriteHandle().HDel(ctx, s.optionKey(), name).Err()
}
