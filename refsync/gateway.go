// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Remote pairs an entity decoded from a remote row with the server-assigned
// update time of that row.
type Remote[T Entity] struct {
	Entity    T
	UpdatedAt time.Time
}

// RemoteGateway performs fetch-since, upsert and delete against the backend
// for one entity kind. Only the coordinator's drain worker and pull path call
// into it; all methods may block on network I/O.
type RemoteGateway[T Entity] interface {
	// FetchSince returns the owner's rows updated strictly after updatedAfter
	// (zero time means everything), ordered ascending by UpdatedAt so the
	// maximum value seen becomes the new cursor. Rows that fail to decode are
	// skipped by the implementation, not returned as errors.
	FetchSince(ctx context.Context, owner uuid.UUID, updatedAfter time.Time) ([]Remote[T], error)

	// Push upserts the entity keyed by its id and returns the server-assigned
	// update time. Safe to call repeatedly with identical content.
	Push(ctx context.Context, entity T) (time.Time, error)

	// Delete removes the remote row. Deleting an already-absent id is not an
	// error.
	Delete(ctx context.Context, id uuid.UUID) error
}
