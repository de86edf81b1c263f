// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/refzone/refsync/refsync"
)

// Store is a SQLite-backed refsync.LocalStore for one entity kind. The
// kind-specific payload is stored as JSON produced by the kind's codec; sync
// metadata lives in dedicated columns. Timestamps are unix nanoseconds.
type Store[T refsync.Entity] struct {
	db      *sql.DB
	codec   refsync.Codec[T]
	table   string
	source  string
	clock   func() time.Time
	writeMu sync.Mutex // serialize writes to avoid SQLite lock contention
}

// StoreOptions tunes a Store.
type StoreOptions struct {
	// SourceDevice is stamped on records saved without an origin tag.
	SourceDevice string
	// Clock overrides wall-clock time, for tests.
	Clock func() time.Time
}

// NewStore creates (if needed) the kind's table and returns the store.
func NewStore[T refsync.Entity](db *sql.DB, codec refsync.Codec[T], opts StoreOptions) (*Store[T], error) {
	kind := codec.Kind()
	if !validKindName(kind) {
		return nil, fmt.Errorf("invalid kind name %q", kind)
	}
	table := kind + "_records"
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id                TEXT PRIMARY KEY,
		owner_id          TEXT NOT NULL DEFAULT '',
		payload           TEXT NOT NULL,
		needs_remote_sync INTEGER NOT NULL DEFAULT 1,
		remote_updated_at INTEGER,
		last_modified_at  INTEGER NOT NULL,
		last_synced_at    INTEGER,
		source_device     TEXT NOT NULL DEFAULT ''
	)`, table)
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store[T]{
		db:     db,
		codec:  codec,
		table:  table,
		source: opts.SourceDevice,
		clock:  clock,
	}, nil
}

// Save persists a local mutation: the record is marked dirty and stamped with
// the current wall-clock time before the write. Never touches the network.
func (s *Store[T]) Save(ctx context.Context, entity T) error {
	meta := entity.SyncMeta()
	if meta.ID == uuid.Nil {
		return errors.New("entity id must be set")
	}
	meta.NeedsRemoteSync = true
	meta.LastModifiedAt = s.clock()
	if meta.SourceDevice == "" {
		meta.SourceDevice = s.source
	}
	payload, err := s.codec.EncodePayload(entity)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	query := fmt.Sprintf(`INSERT INTO %q (id, owner_id, payload, needs_remote_sync, last_modified_at, source_device)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			needs_remote_sync = 1,
			last_modified_at = excluded.last_modified_at,
			owner_id = CASE WHEN excluded.owner_id <> '' THEN excluded.owner_id ELSE owner_id END,
			source_device = CASE WHEN excluded.source_device <> '' THEN excluded.source_device ELSE source_device END`,
		s.table)
	_, err = s.db.ExecContext(ctx, query,
		meta.ID.String(), ownerText(meta.OwnerID), string(payload),
		meta.LastModifiedAt.UnixNano(), meta.SourceDevice)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// ApplyRemote writes a remote-origin record exactly as provided, without
// marking it dirty.
func (s *Store[T]) ApplyRemote(ctx context.Context, entity T) error {
	meta := entity.SyncMeta()
	if meta.ID == uuid.Nil {
		return errors.New("entity id must be set")
	}
	payload, err := s.codec.EncodePayload(entity)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	query := fmt.Sprintf(`INSERT INTO %q (id, owner_id, payload, needs_remote_sync, remote_updated_at, last_modified_at, last_synced_at, source_device)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			payload = excluded.payload,
			needs_remote_sync = excluded.needs_remote_sync,
			remote_updated_at = excluded.remote_updated_at,
			last_modified_at = excluded.last_modified_at,
			last_synced_at = excluded.last_synced_at,
			source_device = CASE WHEN excluded.source_device <> '' THEN excluded.source_device ELSE source_device END`,
		s.table)
	_, err = s.db.ExecContext(ctx, query,
		meta.ID.String(), ownerText(meta.OwnerID), string(payload),
		boolToInt(meta.NeedsRemoteSync), nanosOrNil(meta.RemoteUpdatedAt),
		meta.LastModifiedAt.UnixNano(), nanosOrNil(meta.LastSyncedAt), meta.SourceDevice)
	if err != nil {
		return fmt.Errorf("failed to apply remote record: %w", err)
	}
	return nil
}

// MarkSynced records a remote acknowledgement for id. RemoteUpdatedAt never
// regresses: an older acknowledgement keeps the stored value.
func (s *Store[T]) MarkSynced(ctx context.Context, id uuid.UUID, owner uuid.UUID, remoteUpdatedAt, syncedAt time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	query := fmt.Sprintf(`UPDATE %q SET
			needs_remote_sync = 0,
			owner_id = ?,
			remote_updated_at = MAX(COALESCE(remote_updated_at, 0), ?),
			last_synced_at = ?
		WHERE id = ?`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		ownerText(owner), remoteUpdatedAt.UnixNano(), syncedAt.UnixNano(), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark record synced: %w", err)
	}
	return nil
}

// SetOwner stamps the owner identity on a record. A no-op when the field is
// already correct.
func (s *Store[T]) SetOwner(ctx context.Context, id uuid.UUID, owner uuid.UUID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	query := fmt.Sprintf(`UPDATE %q SET owner_id = ? WHERE id = ? AND owner_id <> ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, ownerText(owner), id.String(), ownerText(owner)); err != nil {
		return fmt.Errorf("failed to set owner: %w", err)
	}
	return nil
}

// Fetch returns the record with the given id.
func (s *Store[T]) Fetch(ctx context.Context, id uuid.UUID) (T, bool, error) {
	var zero T
	query := fmt.Sprintf(`SELECT id, owner_id, payload, needs_remote_sync, remote_updated_at, last_modified_at, last_synced_at, source_device
		FROM %q WHERE id = ?`, s.table)
	row := s.db.QueryRowContext(ctx, query, id.String())
	entity, err := s.scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

// LoadAll returns every record of this kind, oldest local change first.
func (s *Store[T]) LoadAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`SELECT id, owner_id, payload, needs_remote_sync, remote_updated_at, last_modified_at, last_synced_at, source_device
		FROM %q ORDER BY last_modified_at`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var entities []T
	for rows.Next() {
		entity, err := s.scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return entities, nil
}

// Delete removes the record immediately. Deleting an absent id is not an
// error.
func (s *Store[T]) Delete(ctx context.Context, id uuid.UUID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Wipe removes every record of this kind.
func (s *Store[T]) Wipe(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	query := fmt.Sprintf(`DELETE FROM %q`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to wipe records: %w", err)
	}
	return nil
}

func (s *Store[T]) scanRecord(scan func(dest ...any) error) (T, error) {
	var zero T
	var idText, ownerIDText, payload, sourceDevice string
	var needsSync int
	var lastModified int64
	var remoteUpdated, lastSynced sql.NullInt64

	if err := scan(&idText, &ownerIDText, &payload, &needsSync, &remoteUpdated, &lastModified, &lastSynced, &sourceDevice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, err
		}
		return zero, fmt.Errorf("failed to scan record: %w", err)
	}
	id, err := uuid.Parse(idText)
	if err != nil {
		return zero, fmt.Errorf("malformed record id %q: %w", idText, err)
	}
	entity, err := s.codec.DecodePayload([]byte(payload))
	if err != nil {
		return zero, fmt.Errorf("failed to decode payload for %s: %w", idText, err)
	}
	meta := entity.SyncMeta()
	meta.ID = id
	if ownerIDText != "" {
		owner, err := uuid.Parse(ownerIDText)
		if err != nil {
			return zero, fmt.Errorf("malformed owner id %q: %w", ownerIDText, err)
		}
		meta.OwnerID = owner
	}
	meta.NeedsRemoteSync = needsSync != 0
	meta.LastModifiedAt = time.Unix(0, lastModified)
	if remoteUpdated.Valid {
		meta.RemoteUpdatedAt = time.Unix(0, remoteUpdated.Int64)
	}
	if lastSynced.Valid {
		meta.LastSyncedAt = time.Unix(0, lastSynced.Int64)
	}
	meta.SourceDevice = sourceDevice
	return entity, nil
}

func ownerText(owner uuid.UUID) string {
	if owner == uuid.Nil {
		return ""
	}
	return owner.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nanosOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}
