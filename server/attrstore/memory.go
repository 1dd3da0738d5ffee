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
	"sync"
)

// MemoryStore is the in-process Store used by tests and single-node setups
// that run without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]map[string]string
	options map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]map[string]string),
		options: make(map[string]string),
	}
}

// GetUserAttr returns one attribute of a user.
func (s *MemoryStore) GetUserAttr(_ context.Context, username, attr string) (string, bool, error) {
	s.mu.Lock()

	defer s.mu.Unlock()

	value, found := s.users[username][attr]

	return value, found, nil
}

// SetUserAttr writes one attribute of a user.
func (s *MemoryStore) SetUserAttr(_ context.Context, username, attr, value string) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	if s.users[username] == nil {
		s.users[username] = make(map[string]string)
	}

	s.users[username][attr] = value

	return nil
}

// DeleteUserAttr removes one attribute of a user.
func (s *MemoryStore) DeleteUserAttr(_ context.Context, username, attr string) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	delete(s.users[username], attr)

	return nil
}

// GetOption returns one global option.
func (s *MemoryStore) GetOption(_ context.Context, name string) (string, bool, error) {
	s.mu.Lock()

	defer s.mu.Unlock()

	value, found := s.options[name]

	return value, found, nil
}

// SetOption writes one global option.
func (s *MemoryStore) SetOption(_ context.Context, name, value string) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	s.options[name] = value

	return nil
}

// DeleteOption removes one global option.
func (s *MemoryStore) DeleteOption(_ context.Context, name string) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	delete(s.options, name)

	return nil
}
