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

// Package loginlog keeps a capped journal of login attempts for the admin
// surface. The journal is diagnostic; writing it never fails a login.
package loginlog

import (
	"context"
	"sync"
	"time"

	"github.com/croessner/secenh/server/rediscli"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultKeepEntries caps the journal length.
const DefaultKeepEntries = 1000

// Entry is one recorded login attempt.
type Entry struct {
	GUID      string `json:"guid"`
	Username  string `json:"username"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code,omitempty"`
	Location  string `json:"location,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Journal records login attempts and serves the most recent ones.
type Journal interface {
	Record(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int64) ([]*Entry, error)
}

// RedisJournal keeps the journal in one capped Redis list.
type RedisJournal struct {
	client rediscli.Client
	key    string
	keep   int64
}

var _ Journal = (*RedisJournal)(nil)

// NewRedisJournal returns a journal writing under the given prefix. keep
// bounds the list length; non-positive values select the default.
func NewRedisJournal(client rediscli.Client, prefix string, keep int64) *RedisJournal {
	if keep <= 0 {
		keep = DefaultKeepEntries
	}

	return &RedisJournal{client: client, key: prefix + "loginlog", keep: keep}
}

// Record prepends one entry and trims the journal to its cap.
func (j *RedisJournal) Record(ctx context.Context, entry *Entry) error {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	handle := j.client.GetWriteHandle()

	if err := handle.LPush(ctx, j.key, string(encoded)).Err(); err != nil {
		return err
	}

	return handle.LTrim(ctx, j.key, 0, j.keep-1).Err()
}

// Recent returns up to limit entries, newest first.
func (j *RedisJournal) Recent(ctx context.Context, limit int64) ([]*Entry, error) {
	if limit <= 0 || limit > j.keep {
		limit = j.keep
	}

	values, err := j.client.GetReadHandle().LRange(ctx, j.key, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(values))

	for _, value := range values {
		entry := &Entry{}
		if err := json.Unmarshal([]byte(value), entry); err != nil {
			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// MemoryJournal is the in-process journal used by tests and setups without
// Redis.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []*Entry
	keep    int
}

var _ Journal = (*MemoryJournal)(nil)

// NewMemoryJournal returns an empty journal capped at keep entries.
func NewMemoryJournal(keep int) *MemoryJournal {
	if keep <= 0 {
		keep = DefaultKeepEntries
	}

	return &MemoryJournal{keep: keep}
}

// Record prepends one entry and trims the journal to its cap.
func (j *MemoryJournal) Record(_ context.Context, entry *Entry) error {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}

	j.mu.Lock()

	defer j.mu.Unlock()

	j.entries = append([]*Entry{entry}, j.entries...)

	if len(j.entries) > j.keep {
		j.entries = j.entries[:j.keep]
	}

	return nil
}

// Recent returns up to limit entries, newest first.
func (j *MemoryJournal) Recent(_ context.Context, limit int64) ([]*Entry, error) {
	j.mu.Lock()

	defer j.mu.Unlock()

	if limit <= 0 || limit > int64(len(j.entries)) {
		limit = int64(len(j.entries))
	}

	result := make([]*Entry, limit)

	copy(result, j.entries[:limit])

	return result, nil
}
