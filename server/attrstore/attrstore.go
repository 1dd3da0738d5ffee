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

// Package attrstore persists per-user attributes and global options. Both
// live outside the TTL cache layer: fingerprint histories and the device
// salt must survive restarts and never expire.
package attrstore

import (
	"context"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store persists string attributes per user plus global options.
type Store interface {
	// GetUserAttr returns one attribute of a user.
	GetUserAttr(ctx context.Context, username, attr string) (string, bool, error)

	// SetUserAttr writes one attribute of a user.
	SetUserAttr(ctx context.Context, username, attr, value string) error

	// DeleteUserAttr removes one attribute of a user.
	DeleteUserAttr(ctx context.Context, username, attr string) error

	// GetOption returns one global option.
	GetOption(ctx context.Context, name string) (string, bool, error)

	// SetOption writes one global option.
	SetOption(ctx context.Context, name, value string) error

	// DeleteOption removes one global option.
	DeleteOption(ctx context.Context, name string) error
}

// GetUserMap reads a JSON-encoded map attribute. An absent attribute yields
// an empty map.
func GetUserMap(ctx context.Context, store Store, username, attr string) (map[string]int64, error) {
	value, found, err := store.GetUserAttr(ctx, username, attr)
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64)

	if !found || value == "" {
		return result, nil
	}

	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return make(map[string]int64), nil
	}

	return result, nil
}

// SetUserMap writes a map attribute JSON-encoded.
func SetUserMap(ctx context.Context, store Store, username, attr string, value map[string]int64) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return store.SetUserAttr(ctx, username, attr, string(encoded))
}
