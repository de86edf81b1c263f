// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

// Package refserver implements the backend half of the sync protocol: a
// Postgres-backed store of per-user rows, HTTP handlers exposing fetch,
// upsert and delete per entity kind, and JWT authentication.
package refserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SyncStore is the persistence surface the HTTP handlers run against. The
// production implementation is Service; tests substitute an in-memory fake.
type SyncStore interface {
	// ValidKind reports whether kind names a registered entity kind.
	ValidKind(kind string) bool
	// FetchSince returns up to limit rows owned by owner with updated_at
	// strictly after updatedAfter, ascending, plus whether more remain.
	FetchSince(ctx context.Context, kind string, owner uuid.UUID, updatedAfter time.Time, limit int) ([]Row, bool, error)
	// Upsert writes a whole row and returns its server-side updated_at.
	// Re-sending an identical payload returns the existing timestamp.
	Upsert(ctx context.Context, kind string, row Row) (time.Time, error)
	// Delete removes the row owned by owner. Absent rows are not an error.
	Delete(ctx context.Context, kind string, owner uuid.UUID, id uuid.UUID) error
}

// Service is the Postgres-backed SyncStore.
type Service struct {
	pool   *pgxpool.Pool
	kinds  map[string]bool
	logger *slog.Logger
}

// NewService validates the kind names, creates the schema and per-kind tables
// if needed, and returns the service.
func NewService(ctx context.Context, pool *pgxpool.Pool, kinds []string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		pool:   pool,
		kinds:  make(map[string]bool, len(kinds)),
		logger: logger,
	}
	for _, kind := range kinds {
		if !validKindName(kind) {
			return nil, fmt.Errorf("invalid kind name %q", kind)
		}
		s.kinds[kind] = true
	}
	if err := s.initSchema(ctx, kinds); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidKind reports whether kind was registered at construction.
func (s *Service) ValidKind(kind string) bool {
	return s.kinds[kind]
}

// FetchSince implements SyncStore. Rows come back ordered by (updated_at, id)
// so pagination never skips rows that share a timestamp.
func (s *Service) FetchSince(ctx context.Context, kind string, owner uuid.UUID, updatedAfter time.Time, limit int) ([]Row, bool, error) {
	if !s.kinds[kind] {
		return nil, false, fmt.Errorf("unknown kind %q", kind)
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	query := fmt.Sprintf(`
		SELECT id, owner_id, source_device, payload, updated_at
		FROM refsync.%s
		WHERE owner_id = $1 AND updated_at > $2
		ORDER BY updated_at, id
		LIMIT $3`, tableName(kind))

	// Fetch one extra row to learn whether more remain.
	rows, err := s.pool.Query(ctx, query, owner, updatedAfter, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch %s rows: %w", kind, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.OwnerID, &row.SourceDevice, &row.Payload, &row.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("failed to scan %s row: %w", kind, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating %s rows: %w", kind, err)
	}
	hasMore := len(result) > limit
	if hasMore {
		result = result[:limit]
	}
	return result, hasMore, nil
}

// Upsert implements SyncStore. The row's updated_at advances only when the
// payload actually changed, so replayed pushes observe a stable timestamp.
func (s *Service) Upsert(ctx context.Context, kind string, row Row) (time.Time, error) {
	if !s.kinds[kind] {
		return time.Time{}, fmt.Errorf("unknown kind %q", kind)
	}
	query := fmt.Sprintf(`
		INSERT INTO refsync.%s AS t (id, owner_id, source_device, payload, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			source_device = EXCLUDED.source_device,
			payload = EXCLUDED.payload,
			updated_at = CASE
				WHEN t.payload IS DISTINCT FROM EXCLUDED.payload THEN now()
				ELSE t.updated_at
			END
		WHERE t.owner_id = EXCLUDED.owner_id
		RETURNING updated_at`, tableName(kind))

	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, query, row.ID, row.OwnerID, row.SourceDevice, row.Payload).Scan(&updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, fmt.Errorf("row %s belongs to another owner", row.ID)
		}
		return time.Time{}, fmt.Errorf("failed to upsert %s row: %w", kind, err)
	}
	return updatedAt, nil
}

// Delete implements SyncStore.
func (s *Service) Delete(ctx context.Context, kind string, owner uuid.UUID, id uuid.UUID) error {
	if !s.kinds[kind] {
		return fmt.Errorf("unknown kind %q", kind)
	}
	query := fmt.Sprintf(`DELETE FROM refsync.%s WHERE id = $1 AND owner_id = $2`, tableName(kind))
	if _, err := s.pool.Exec(ctx, query, id, owner); err != nil {
		return fmt.Errorf("failed to delete %s row: %w", kind, err)
	}
	return nil
}
