// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

// Package synctest provides an in-memory SyncStore for handler and gateway
// tests that need a working backend without Postgres.
package synctest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/refzone/refsync/refserver"
)

// MemStore is an in-memory refserver.SyncStore. Each Upsert that changes a
// payload gets a strictly later updated_at, so cursor-based fetches behave
// like the Postgres implementation.
type MemStore struct {
	mu    sync.Mutex
	kinds map[string]bool
	rows  map[string]map[uuid.UUID]refserver.Row
	now   time.Time
}

// NewMemStore creates a store accepting the given kinds.
func NewMemStore(kinds ...string) *MemStore {
	s := &MemStore{
		kinds: make(map[string]bool, len(kinds)),
		rows:  make(map[string]map[uuid.UUID]refserver.Row),
		now:   time.Now().UTC(),
	}
	for _, kind := range kinds {
		s.kinds[kind] = true
		s.rows[kind] = make(map[uuid.UUID]refserver.Row)
	}
	return s
}

// ValidKind implements refserver.SyncStore.
func (s *MemStore) ValidKind(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kinds[kind]
}

// FetchSince implements refserver.SyncStore.
func (s *MemStore) FetchSince(_ context.Context, kind string, owner uuid.UUID, updatedAfter time.Time, limit int) ([]refserver.Row, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.kinds[kind] {
		return nil, false, fmt.Errorf("unknown kind %q", kind)
	}
	if limit <= 0 {
		limit = 500
	}
	var result []refserver.Row
	for _, row := range s.rows[kind] {
		if row.OwnerID == owner && row.UpdatedAt.After(updatedAfter) {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.Before(result[j].UpdatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	hasMore := len(result) > limit
	if hasMore {
		result = result[:limit]
	}
	return result, hasMore, nil
}

// Upsert implements refserver.SyncStore. Replaying an identical payload keeps
// the existing timestamp.
func (s *MemStore) Upsert(_ context.Context, kind string, row refserver.Row) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.kinds[kind] {
		return time.Time{}, fmt.Errorf("unknown kind %q", kind)
	}
	existing, ok := s.rows[kind][row.ID]
	if ok {
		if existing.OwnerID != row.OwnerID {
			return time.Time{}, fmt.Errorf("row %s belongs to another owner", row.ID)
		}
		if bytes.Equal(existing.Payload, row.Payload) {
			return existing.UpdatedAt, nil
		}
	}
	row.UpdatedAt = s.tick()
	s.rows[kind][row.ID] = row
	return row.UpdatedAt, nil
}

// Delete implements refserver.SyncStore.
func (s *MemStore) Delete(_ context.Context, kind string, owner uuid.UUID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.kinds[kind] {
		return fmt.Errorf("unknown kind %q", kind)
	}
	if row, ok := s.rows[kind][id]; ok && row.OwnerID == owner {
		delete(s.rows[kind], id)
	}
	return nil
}

// Row returns the stored row for direct inspection in tests.
func (s *MemStore) Row(kind string, id uuid.UUID) (refserver.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[kind][id]
	return row, ok
}

// Count returns the number of rows stored for a kind.
func (s *MemStore) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[kind])
}

// Seed inserts a row with an explicit timestamp, bypassing the clock.
func (s *MemStore) Seed(kind string, row refserver.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.UpdatedAt.After(s.now) {
		s.now = row.UpdatedAt
	}
	s.rows[kind][row.ID] = row
}

// tick advances the fake clock so consecutive writes sort deterministically.
func (s *MemStore) tick() time.Time {
	s.now = s.now.Add(time.Millisecond)
	return s.now
}
