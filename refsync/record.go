// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

// Package refsync provides an offline-first synchronization engine for
// locally-owned entities backed by a remote store.
//
// The engine is written once, parameterized by entity type: a Coordinator
// owns the push/delete queues for one entity kind and drains them against a
// RemoteGateway while a LocalStore keeps every mutation instantly available
// regardless of connectivity. Pending deletions and push-retry metadata
// survive restarts through a Backlog.
package refsync

import (
	"time"

	"github.com/google/uuid"
)

// Meta carries the synchronization metadata attached to every synced record.
//
// Invariants: ID never changes once assigned; RemoteUpdatedAt only advances;
// while NeedsRemoteSync is true the local payload is authoritative over any
// remote row bearing an equal-or-older RemoteUpdatedAt.
type Meta struct {
	// ID is the stable identifier shared between the local and remote
	// representations of the record.
	ID uuid.UUID

	// OwnerID is the authenticated identity the record is scoped to. It is
	// assigned at creation when an identity is known and re-stamped if the
	// identity resolves later.
	OwnerID uuid.UUID

	// NeedsRemoteSync is true while local content has not been confirmed
	// accepted by the remote.
	NeedsRemoteSync bool

	// RemoteUpdatedAt is the last remote-confirmed write time. Zero means the
	// record has never been confirmed by the remote.
	RemoteUpdatedAt time.Time

	// LastModifiedAt is the local wall-clock time of the last local mutation.
	LastModifiedAt time.Time

	// LastSyncedAt is when this device last confirmed the record with the
	// remote, for diagnostics only.
	LastSyncedAt time.Time

	// SourceDevice tags the origin device of the record, when known.
	SourceDevice string
}

// Entity is implemented by every record type the engine can synchronize.
// SyncMeta must return a pointer into the entity so the engine can stamp
// metadata in place.
type Entity interface {
	SyncMeta() *Meta
}
