// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/refzone/refsync/refsync"
)

// Backlog is the SQLite-backed durable record of pending deletions and
// push-retry metadata for one entity kind. All kinds share the same two
// tables, keyed by kind. Malformed rows are dropped on load instead of
// failing the caller.
type Backlog struct {
	db      *sql.DB
	kind    string
	writeMu sync.Mutex
}

// NewBacklog creates (if needed) the backlog tables and returns a view scoped
// to one entity kind.
func NewBacklog(db *sql.DB, kind string) (*Backlog, error) {
	if !validKindName(kind) {
		return nil, fmt.Errorf("invalid kind name %q", kind)
	}
	if err := initBacklogTables(db); err != nil {
		return nil, err
	}
	return &Backlog{db: db, kind: kind}, nil
}

func initBacklogTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS sync_pending_deletes (
			kind TEXT NOT NULL,
			id   TEXT NOT NULL,
			PRIMARY KEY (kind, id)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_push_retry (
			kind         TEXT NOT NULL,
			id           TEXT NOT NULL,
			retry_count  INTEGER NOT NULL DEFAULT 0,
			next_attempt INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (kind, id)
		)`,
	}
	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create backlog table: %w", err)
		}
	}
	return nil
}

// Load reads the persisted state. Rows that fail to parse are deleted and
// skipped; an unreadable table resets to empty rather than failing.
func (b *Backlog) Load() (*refsync.BacklogState, error) {
	state := &refsync.BacklogState{
		PushRetries: make(map[uuid.UUID]refsync.PushRetry),
	}

	rows, err := b.db.Query(`SELECT id FROM sync_pending_deletes WHERE kind = ?`, b.kind)
	if err != nil {
		// Unreadable state resets to empty; recreate the tables for the
		// writes that follow.
		_ = initBacklogTables(b.db)
		return state, nil
	}
	var malformed []string
	for rows.Next() {
		var idText string
		if err := rows.Scan(&idText); err != nil {
			continue
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			malformed = append(malformed, idText)
			continue
		}
		state.PendingDeletions = append(state.PendingDeletions, id)
	}
	rows.Close()
	for _, idText := range malformed {
		_, _ = b.db.Exec(`DELETE FROM sync_pending_deletes WHERE kind = ? AND id = ?`, b.kind, idText)
	}

	retryRows, err := b.db.Query(`SELECT id, retry_count, next_attempt FROM sync_push_retry WHERE kind = ?`, b.kind)
	if err != nil {
		return state, nil
	}
	malformed = nil
	for retryRows.Next() {
		var idText string
		var count int
		var nextAttempt int64
		if err := retryRows.Scan(&idText, &count, &nextAttempt); err != nil {
			continue
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			malformed = append(malformed, idText)
			continue
		}
		state.PushRetries[id] = refsync.PushRetry{
			RetryCount:  count,
			NextAttempt: time.Unix(0, nextAttempt),
		}
	}
	retryRows.Close()
	for _, idText := range malformed {
		_, _ = b.db.Exec(`DELETE FROM sync_push_retry WHERE kind = ? AND id = ?`, b.kind, idText)
	}

	return state, nil
}

// AddPendingDeletion durably records a deletion intent.
func (b *Backlog) AddPendingDeletion(id uuid.UUID) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err := b.db.Exec(`INSERT OR IGNORE INTO sync_pending_deletes (kind, id) VALUES (?, ?)`,
		b.kind, id.String())
	if err != nil {
		return fmt.Errorf("failed to record pending deletion: %w", err)
	}
	return nil
}

// RemovePendingDeletion discharges a deletion intent.
func (b *Backlog) RemovePendingDeletion(id uuid.UUID) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err := b.db.Exec(`DELETE FROM sync_pending_deletes WHERE kind = ? AND id = ?`,
		b.kind, id.String())
	if err != nil {
		return fmt.Errorf("failed to remove pending deletion: %w", err)
	}
	return nil
}

// PutPushRetry persists retry metadata for a pending push.
func (b *Backlog) PutPushRetry(id uuid.UUID, retry refsync.PushRetry) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err := b.db.Exec(`INSERT INTO sync_push_retry (kind, id, retry_count, next_attempt)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			retry_count = excluded.retry_count,
			next_attempt = excluded.next_attempt`,
		b.kind, id.String(), retry.RetryCount, retry.NextAttempt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to persist push retry: %w", err)
	}
	return nil
}

// RemovePushRetry clears retry metadata after a resolved push.
func (b *Backlog) RemovePushRetry(id uuid.UUID) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err := b.db.Exec(`DELETE FROM sync_push_retry WHERE kind = ? AND id = ?`,
		b.kind, id.String())
	if err != nil {
		return fmt.Errorf("failed to remove push retry: %w", err)
	}
	return nil
}

// Clear drops everything persisted for this kind.
func (b *Backlog) Clear() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := b.db.Exec(`DELETE FROM sync_pending_deletes WHERE kind = ?`, b.kind); err != nil {
		return fmt.Errorf("failed to clear pending deletions: %w", err)
	}
	if _, err := b.db.Exec(`DELETE FROM sync_push_retry WHERE kind = ?`, b.kind); err != nil {
		return fmt.Errorf("failed to clear push retries: %w", err)
	}
	return nil
}
