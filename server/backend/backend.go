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

// Package backend verifies credentials. The htpasswd store is the default;
// anything able to answer a username/password question can implement
// CredentialStore.
package backend

import (
	"context"
	"io"
	"sync"

	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/log"
	"github.com/go-kit/log/level"
	"github.com/tg123/go-htpasswd"
)

// CredentialStore answers whether a username/password pair is valid.
type CredentialStore interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// HtpasswdStore verifies credentials against an Apache htpasswd file.
type HtpasswdStore struct {
	mu   sync.RWMutex
	file *htpasswd.File
}

var _ CredentialStore = (*HtpasswdStore)(nil)

// NewHtpasswdStore loads the htpasswd file at path. Unparsable lines are
// logged and skipped.
func NewHtpasswdStore(path string) (*HtpasswdStore, error) {
	file, err := htpasswd.New(path, htpasswd.DefaultSystems, badLine)
	if err != nil {
		return nil, err
	}

	return &HtpasswdStore{file: file}, nil
}

// NewHtpasswdStoreFromReader loads htpasswd entries from a reader. Tests and
// embedded setups use this.
func NewHtpasswdStoreFromReader(reader io.Reader) (*HtpasswdStore, error) {
	file, err := htpasswd.NewFromReader(reader, htpasswd.DefaultSystems, badLine)
	if err != nil {
		return nil, err
	}

	return &HtpasswdStore{file: file}, nil
}

// Verify reports whether the credentials match an entry of the file.
func (s *HtpasswdStore) Verify(_ context.Context, username, password string) (bool, error) {
	s.mu.RLock()

	defer s.mu.RUnlock()

	return s.file.Match(username, password), nil
}

// Reload re-reads the htpasswd file, picking up edits without a restart.
func (s *HtpasswdStore) Reload() error {
	s.mu.Lock()

	defer s.mu.Unlock()

	return s.file.Reload(badLine)
}

func badLine(err error) {
	level.Warn(log.Logger).Log(
		definitions.LogKeyMsg, "Skipping unparsable htpasswd line",
		definitions.LogKeyError, err,
	)
}
