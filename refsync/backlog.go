// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"time"

	"github.com/google/uuid"
)

// PushRetry is the durable retry metadata kept per pending push.
type PushRetry struct {
	RetryCount  int
	NextAttempt time.Time
}

// BacklogState is the restart-surviving portion of a coordinator's queues.
type BacklogState struct {
	PendingDeletions []uuid.UUID
	PushRetries      map[uuid.UUID]PushRetry
}

// Backlog durably records pending deletions and push-retry metadata for one
// entity kind. Implementations must tolerate corrupt or unreadable persisted
// state by resetting to empty rather than failing the caller, and must be
// safe for concurrent use without external locking.
type Backlog interface {
	Load() (*BacklogState, error)
	AddPendingDeletion(id uuid.UUID) error
	RemovePendingDeletion(id uuid.UUID) error
	PutPushRetry(id uuid.UUID, retry PushRetry) error
	RemovePushRetry(id uuid.UUID) error
	Clear() error
}
