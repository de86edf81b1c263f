// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LocalStore persists entities of one kind on the device. Implementations
// must never perform network I/O: every method completes synchronously from
// the caller's perspective regardless of connectivity.
type LocalStore[T Entity] interface {
	// LoadAll returns every locally stored entity.
	LoadAll(ctx context.Context) ([]T, error)

	// Fetch returns the entity with the given id, reporting whether it exists.
	Fetch(ctx context.Context, id uuid.UUID) (T, bool, error)

	// Save persists a local mutation. It must set NeedsRemoteSync and stamp
	// LastModifiedAt before writing.
	Save(ctx context.Context, entity T) error

	// ApplyRemote overwrites (or inserts) the local record from a remote row.
	// The entity's metadata is written as provided; implementations must not
	// mark the record dirty.
	ApplyRemote(ctx context.Context, entity T) error

	// MarkSynced records a remote acknowledgement: clears NeedsRemoteSync and
	// advances RemoteUpdatedAt/LastSyncedAt for the given id. A missing id is
	// not an error.
	MarkSynced(ctx context.Context, id uuid.UUID, owner uuid.UUID, remoteUpdatedAt, syncedAt time.Time) error

	// SetOwner stamps the owner identity on a record. Idempotent: calling it
	// when the field is already correct is a no-op.
	SetOwner(ctx context.Context, id uuid.UUID, owner uuid.UUID) error

	// Delete removes the record immediately. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Wipe removes every record of this kind.
	Wipe(ctx context.Context) error
}
