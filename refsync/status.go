// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import "time"

// Status is a point-in-time snapshot of a coordinator's sync state, delivered
// to an optional listener after every queue or auth transition. Sync failures
// are invisible to callers except through this channel.
type Status struct {
	Kind             string
	SignedIn         bool
	PendingPushes    int
	PendingDeletions int
	// NextRetry is the earliest scheduled push retry, zero when none is
	// pending.
	NextRetry time.Time
	Timestamp time.Time
}

// StatusListener receives status snapshots. Listeners must not call back into
// the coordinator.
type StatusListener func(Status)
