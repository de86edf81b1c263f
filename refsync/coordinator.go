// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config holds tuning for one coordinator.
type Config struct {
	InitialBackoff   time.Duration // first push retry delay
	MaxBackoff       time.Duration // ceiling for push retry delay and retry sleeps
	MaxRetryCount    int           // retry counter cap; past it the delay stays at MaxBackoff
	DeleteRetryDelay time.Duration // fixed pause after a failed remote deletion
	PullInterval     time.Duration // periodic pull cadence while signed in
}

// DefaultConfig mirrors the retry characteristics of the production app:
// 5s initial backoff doubling to a 5 minute ceiling, capped at 10 retries.
func DefaultConfig() *Config {
	return &Config{
		InitialBackoff:   5 * time.Second,
		MaxBackoff:       5 * time.Minute,
		MaxRetryCount:    10,
		DeleteRetryDelay: 1 * time.Second,
		PullInterval:     2 * time.Minute,
	}
}

// Coordinator keeps one entity kind consistent with the remote store. It owns
// in-memory push/delete queues backed by a durable Backlog, drains them with
// a single worker goroutine (deletions before pushes), merges pulled remote
// changes into the LocalStore with a last-writer-wins rule, and reacts to
// signed-in/signed-out transitions.
//
// All caller-facing mutation entry points (Save, Delete) touch only the
// LocalStore and the in-memory queues; network I/O happens exclusively on the
// drain worker and the pull path.
type Coordinator[T Entity] struct {
	// Clock supplies wall-clock time and may be replaced before first use.
	Clock func() time.Time
	// OnStatus, when set, receives a snapshot after every state transition.
	OnStatus StatusListener

	kind    string
	store   LocalStore[T]
	gateway RemoteGateway[T]
	backlog Backlog
	config  *Config
	logger  *slog.Logger

	mu            sync.Mutex
	signedIn      bool
	owner         uuid.UUID
	epoch         uint64
	pendingPush   map[uuid.UUID]struct{}
	pendingDelete map[uuid.UUID]struct{}
	pushRetry     map[uuid.UUID]PushRetry
	remoteCursor  time.Time // in-memory only; a fresh session re-pulls from zero
	draining      bool
	drainDone     chan struct{}
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
}

type drainOp int

const (
	opNone drainOp = iota
	opDelete
	opPush
)

// NewCoordinator builds a coordinator for one entity kind. A nil config uses
// DefaultConfig; a nil logger uses slog.Default.
func NewCoordinator[T Entity](kind string, store LocalStore[T], gateway RemoteGateway[T], backlog Backlog, config *Config, logger *slog.Logger) (*Coordinator[T], error) {
	if kind == "" {
		return nil, fmt.Errorf("kind must be provided")
	}
	if store == nil || gateway == nil || backlog == nil {
		return nil, fmt.Errorf("store, gateway and backlog must be provided")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator[T]{
		Clock:         time.Now,
		kind:          kind,
		store:         store,
		gateway:       gateway,
		backlog:       backlog,
		config:        config,
		logger:        logger.With("kind", kind),
		pendingPush:   make(map[uuid.UUID]struct{}),
		pendingDelete: make(map[uuid.UUID]struct{}),
		pushRetry:     make(map[uuid.UUID]PushRetry),
	}, nil
}

// Kind returns the entity kind this coordinator manages.
func (c *Coordinator[T]) Kind() string { return c.kind }

// LoadAll returns every locally stored entity.
func (c *Coordinator[T]) LoadAll(ctx context.Context) ([]T, error) {
	return c.store.LoadAll(ctx)
}

// Fetch returns the local entity with the given id.
func (c *Coordinator[T]) Fetch(ctx context.Context, id uuid.UUID) (T, bool, error) {
	return c.store.Fetch(ctx, id)
}

// Save persists a local mutation and queues a push. It never blocks on the
// network and succeeds even while signed out; the push waits in the queue
// until an identity is available.
func (c *Coordinator[T]) Save(ctx context.Context, entity T) error {
	if err := c.store.Save(ctx, entity); err != nil {
		return fmt.Errorf("save %s: %w", c.kind, err)
	}
	id := entity.SyncMeta().ID
	c.mu.Lock()
	signedIn, owner := c.signedIn, c.owner
	c.mu.Unlock()
	if signedIn {
		if err := c.store.SetOwner(ctx, id, owner); err != nil {
			c.logger.Warn("owner stamp failed", "id", id, "error", err)
		}
	}
	c.EnqueuePush(id)
	return nil
}

// Delete removes the record locally right away and queues the remote
// deletion. A delete supersedes any queued push for the same id: the engine
// never pushes an entity the user has asked to delete.
func (c *Coordinator[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", c.kind, err)
	}
	c.EnqueueDelete(id)
	return nil
}

// EnqueuePush inserts id into the push queue, ensures retry metadata exists
// with an immediately-eligible next attempt, and wakes the drain worker.
func (c *Coordinator[T]) EnqueuePush(id uuid.UUID) {
	c.mu.Lock()
	if _, deleting := c.pendingDelete[id]; deleting {
		c.mu.Unlock()
		return
	}
	c.pendingPush[id] = struct{}{}
	if _, ok := c.pushRetry[id]; !ok {
		retry := PushRetry{RetryCount: 0, NextAttempt: c.Clock()}
		c.pushRetry[id] = retry
		if err := c.backlog.PutPushRetry(id, retry); err != nil {
			c.logger.Warn("backlog retry write failed", "id", id, "error", err)
		}
	}
	c.wakeLocked()
	c.mu.Unlock()
	c.notifyStatus()
}

// EnqueueDelete removes id from the push queue, records the deletion intent
// in the backlog, and wakes the drain worker.
func (c *Coordinator[T]) EnqueueDelete(id uuid.UUID) {
	c.mu.Lock()
	delete(c.pendingPush, id)
	if _, ok := c.pushRetry[id]; ok {
		delete(c.pushRetry, id)
		if err := c.backlog.RemovePushRetry(id); err != nil {
			c.logger.Warn("backlog retry remove failed", "id", id, "error", err)
		}
	}
	c.pendingDelete[id] = struct{}{}
	if err := c.backlog.AddPendingDeletion(id); err != nil {
		c.logger.Warn("backlog deletion write failed", "id", id, "error", err)
	}
	c.wakeLocked()
	c.mu.Unlock()
	c.notifyStatus()
}

// RetryMetadata exposes the scheduled retry state for a pending push, for
// diagnostics and tests.
func (c *Coordinator[T]) RetryMetadata(id uuid.UUID) (PushRetry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	retry, ok := c.pushRetry[id]
	return retry, ok
}

// Status returns a snapshot of the coordinator's sync state.
func (c *Coordinator[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Coordinator[T]) statusLocked() Status {
	st := Status{
		Kind:             c.kind,
		SignedIn:         c.signedIn,
		PendingPushes:    len(c.pendingPush),
		PendingDeletions: len(c.pendingDelete),
		Timestamp:        c.Clock(),
	}
	for _, retry := range c.pushRetry {
		if st.NextRetry.IsZero() || retry.NextAttempt.Before(st.NextRetry) {
			st.NextRetry = retry.NextAttempt
		}
	}
	return st
}

func (c *Coordinator[T]) notifyStatus() {
	listener := c.OnStatus
	if listener == nil {
		return
	}
	listener(c.Status())
}

// Run consumes the provider's auth-state stream until ctx is cancelled or
// the stream closes. If an identity is already signed in when Run starts, a
// signed-in transition is synthesized from it.
func (c *Coordinator[T]) Run(ctx context.Context, provider AuthStateProvider) error {
	if id, ok := provider.Current(); ok {
		c.HandleSignedIn(ctx, id)
	}
	for {
		select {
		case <-ctx.Done():
			c.suspend()
			return ctx.Err()
		case state, ok := <-provider.States():
			if !ok {
				c.suspend()
				return nil
			}
			if state.SignedIn {
				c.HandleSignedIn(ctx, state.UserID)
			} else {
				c.HandleSignedOut(ctx)
			}
		}
	}
}

// HandleSignedIn starts a sync session for the identity: restores the durable
// backlog, rescans the store for dirty records, and schedules an initial full
// synchronization (flush deletions, push dirty, pull) plus the periodic pull.
// Background work is bound to ctx.
func (c *Coordinator[T]) HandleSignedIn(ctx context.Context, userID uuid.UUID) {
	c.mu.Lock()
	if c.signedIn && c.owner == userID {
		c.mu.Unlock()
		return
	}
	if c.sessionCancel != nil {
		c.sessionCancel()
	}
	c.epoch++
	c.signedIn = true
	c.owner = userID
	c.sessionCtx, c.sessionCancel = context.WithCancel(ctx)
	c.pendingPush = make(map[uuid.UUID]struct{})
	c.pendingDelete = make(map[uuid.UUID]struct{})
	c.pushRetry = make(map[uuid.UUID]PushRetry)
	if state, err := c.backlog.Load(); err != nil {
		c.logger.Warn("backlog load failed, starting empty", "error", err)
	} else {
		for _, id := range state.PendingDeletions {
			c.pendingDelete[id] = struct{}{}
		}
		for id, retry := range state.PushRetries {
			c.pushRetry[id] = retry
			if _, deleting := c.pendingDelete[id]; !deleting {
				c.pendingPush[id] = struct{}{}
			}
		}
	}
	sctx := c.sessionCtx
	c.mu.Unlock()

	c.logger.Info("signed in, scheduling initial sync", "user", userID)
	go c.initialSync(sctx)
	go c.periodicPull(sctx)
	c.notifyStatus()
}

// HandleSignedOut tears the session down: cancels the drain worker and
// periodic pull, clears the in-memory queues and the backlog, wipes the local
// store for this kind, and forgets the cursor and identity. No network calls
// are made.
func (c *Coordinator[T]) HandleSignedOut(ctx context.Context) {
	c.mu.Lock()
	c.epoch++
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCtx, c.sessionCancel = nil, nil
	}
	c.signedIn = false
	c.owner = uuid.Nil
	c.pendingPush = make(map[uuid.UUID]struct{})
	c.pendingDelete = make(map[uuid.UUID]struct{})
	c.pushRetry = make(map[uuid.UUID]PushRetry)
	c.remoteCursor = time.Time{}
	c.mu.Unlock()

	if err := c.backlog.Clear(); err != nil {
		c.logger.Error("backlog clear failed on sign-out", "error", err)
	}
	if err := c.store.Wipe(ctx); err != nil {
		c.logger.Error("local wipe failed on sign-out", "error", err)
	} else {
		c.logger.Info("cleared local cache after sign-out")
	}
	c.notifyStatus()
}

// suspend stops background work without wiping local state; used when the
// surrounding context ends rather than on an explicit sign-out.
func (c *Coordinator[T]) suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCtx, c.sessionCancel = nil, nil
	}
}

// Refresh hard-requires an identity: it flushes pending deletions, pushes all
// dirty records and pulls remote updates before returning.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.signedIn {
		c.mu.Unlock()
		return ErrNotSignedIn
	}
	c.mu.Unlock()

	if err := c.rescanDirty(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.wakeLocked()
	c.mu.Unlock()
	c.waitForDrain(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Pull(ctx)
}

func (c *Coordinator[T]) initialSync(ctx context.Context) {
	if err := c.rescanDirty(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("dirty rescan failed", "error", err)
	}
	c.mu.Lock()
	c.wakeLocked()
	c.mu.Unlock()
	c.waitForDrain(ctx)
	if ctx.Err() != nil {
		return
	}
	if err := c.Pull(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNotSignedIn) {
		c.logger.Error("initial pull failed", "error", err)
	}
}

func (c *Coordinator[T]) periodicPull(ctx context.Context) {
	ticker := time.NewTicker(c.config.PullInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := c.Pull(ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNotSignedIn) {
				c.logger.Error("periodic pull failed", "error", err)
			}
		}
	}
}

// rescanDirty repopulates the push queue from records whose changes were
// never confirmed by the remote, e.g. after a restart.
func (c *Coordinator[T]) rescanDirty(ctx context.Context) error {
	entities, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("rescan %s: %w", c.kind, err)
	}
	for _, entity := range entities {
		meta := entity.SyncMeta()
		if !meta.NeedsRemoteSync {
			continue
		}
		c.mu.Lock()
		signedIn, owner := c.signedIn, c.owner
		c.mu.Unlock()
		if signedIn && meta.OwnerID != owner {
			if err := c.store.SetOwner(ctx, meta.ID, owner); err != nil {
				c.logger.Warn("owner stamp failed", "id", meta.ID, "error", err)
			}
		}
		c.EnqueuePush(meta.ID)
	}
	return nil
}

// wakeLocked starts the drain worker when there is work, an identity, and no
// worker already running. Callers hold c.mu.
func (c *Coordinator[T]) wakeLocked() {
	if c.draining || !c.signedIn || c.sessionCtx == nil {
		return
	}
	if len(c.pendingDelete) == 0 && len(c.pendingPush) == 0 {
		return
	}
	c.draining = true
	c.drainDone = make(chan struct{})
	go c.drain(c.sessionCtx, c.epoch, c.drainDone)
}

// waitForDrain blocks until the current drain worker (and any that restart
// behind it) goes idle or ctx is cancelled.
func (c *Coordinator[T]) waitForDrain(ctx context.Context) {
	for {
		c.mu.Lock()
		if !c.draining {
			c.mu.Unlock()
			return
		}
		done := c.drainDone
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return
		case <-done:
		}
	}
}

// drain is the single worker per entity kind. It repeatedly selects the next
// operation (pending deletions always take priority over pending pushes) and
// processes it, stopping when both queues are empty or no identity is set.
// The next enqueue restarts it.
func (c *Coordinator[T]) drain(ctx context.Context, epoch uint64, done chan struct{}) {
	defer close(done)
	for {
		op, id := c.nextOperation(epoch)
		switch op {
		case opNone:
			return
		case opDelete:
			c.performDelete(ctx, epoch, id)
		case opPush:
			c.performPush(ctx, epoch, id)
		}
		if ctx.Err() != nil {
			c.stopDraining()
			return
		}
	}
}

func (c *Coordinator[T]) nextOperation(epoch uint64) (drainOp, uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || !c.signedIn {
		c.draining = false
		// A new session may already have queued work; let it claim a fresh
		// worker now that the stale one is gone.
		c.wakeLocked()
		return opNone, uuid.Nil
	}
	for id := range c.pendingDelete {
		delete(c.pendingDelete, id)
		return opDelete, id
	}
	for id := range c.pendingPush {
		delete(c.pendingPush, id)
		return opPush, id
	}
	c.draining = false
	return opNone, uuid.Nil
}

// stopDraining releases the drain token when the worker exits on a cancelled
// context. Only the owning worker calls this, so the flag is safe to clear
// unconditionally; wakeLocked lets a newer session claim a fresh worker.
func (c *Coordinator[T]) stopDraining() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = false
	c.wakeLocked()
}

// performDelete calls the gateway and, on failure, reinserts the id and
// pauses briefly. Bounded by loop re-entry, not recursion.
func (c *Coordinator[T]) performDelete(ctx context.Context, epoch uint64, id uuid.UUID) {
	err := c.gateway.Delete(ctx, id)

	c.mu.Lock()
	if epoch != c.epoch {
		// Stale completion from a cancelled session; discard.
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.pendingDelete[id] = struct{}{}
		c.mu.Unlock()
		c.logger.Error("remote delete failed", "id", id, "error", err)
		c.notifyStatus()
		_ = sleepWithContext(ctx, c.config.DeleteRetryDelay)
		return
	}
	c.mu.Unlock()

	if err := c.backlog.RemovePendingDeletion(id); err != nil {
		c.logger.Warn("backlog deletion remove failed", "id", id, "error", err)
	}
	c.notifyStatus()
}

// performPush pushes one entity. The retry schedule is honored by sleeping
// until the attempt is due (clamped to MaxBackoff); a record that no longer
// exists locally resolves the push.
func (c *Coordinator[T]) performPush(ctx context.Context, epoch uint64, id uuid.UUID) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	if _, deleting := c.pendingDelete[id]; deleting {
		c.mu.Unlock()
		return
	}
	retry, ok := c.pushRetry[id]
	if !ok {
		retry = PushRetry{NextAttempt: c.Clock()}
		c.pushRetry[id] = retry
	}
	owner := c.owner
	c.mu.Unlock()

	if wait := retry.NextAttempt.Sub(c.Clock()); wait > 0 {
		if wait > c.config.MaxBackoff {
			wait = c.config.MaxBackoff
		}
		if sleepWithContext(ctx, wait) != nil {
			c.requeuePush(epoch, id)
			return
		}
	}

	// Deletion intent may have arrived while we slept.
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	if _, deleting := c.pendingDelete[id]; deleting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	entity, found, err := c.store.Fetch(ctx, id)
	if err != nil {
		c.logger.Error("local fetch before push failed", "id", id, "error", err)
		c.scheduleRetry(epoch, id)
		return
	}
	if !found {
		// Gone locally; nothing left to push.
		c.clearRetry(epoch, id)
		return
	}
	meta := entity.SyncMeta()
	if !meta.NeedsRemoteSync {
		c.clearRetry(epoch, id)
		return
	}
	if meta.OwnerID != owner {
		meta.OwnerID = owner
		if err := c.store.SetOwner(ctx, id, owner); err != nil {
			c.logger.Warn("owner stamp failed", "id", id, "error", err)
		}
	}

	updatedAt, err := c.gateway.Push(ctx, entity)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		if IsPermanent(err) {
			c.logger.Error("abandoning push of invalid payload", "id", id, "error", err)
			c.clearRetry(epoch, id)
			return
		}
		c.logger.Error("remote push failed", "id", id, "error", err)
		c.scheduleRetry(epoch, id)
		return
	}
	delete(c.pushRetry, id)
	if updatedAt.After(c.remoteCursor) {
		c.remoteCursor = updatedAt
	}
	c.mu.Unlock()

	if err := c.store.MarkSynced(ctx, id, owner, updatedAt, c.Clock()); err != nil {
		c.logger.Warn("synced-state write failed", "id", id, "error", err)
	}
	if err := c.backlog.RemovePushRetry(id); err != nil {
		c.logger.Warn("backlog retry remove failed", "id", id, "error", err)
	}
	c.notifyStatus()
}

func (c *Coordinator[T]) requeuePush(epoch uint64, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	if _, deleting := c.pendingDelete[id]; !deleting {
		c.pendingPush[id] = struct{}{}
	}
}

// scheduleRetry computes the next delay from the current retry count,
// increments the count up to the cap, persists the metadata to the backlog,
// and reinserts the id into the push queue.
func (c *Coordinator[T]) scheduleRetry(epoch uint64, id uuid.UUID) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	previous := c.pushRetry[id]
	delay := c.config.nextDelay(previous.RetryCount)
	count := previous.RetryCount + 1
	if count > c.config.MaxRetryCount {
		count = c.config.MaxRetryCount
	}
	retry := PushRetry{RetryCount: count, NextAttempt: c.Clock().Add(delay)}
	c.pushRetry[id] = retry
	if _, deleting := c.pendingDelete[id]; !deleting {
		c.pendingPush[id] = struct{}{}
	}
	c.mu.Unlock()

	if err := c.backlog.PutPushRetry(id, retry); err != nil {
		c.logger.Warn("backlog retry write failed", "id", id, "error", err)
	}
	c.logger.Info("push retry scheduled", "id", id, "attempt", count, "delay", delay)
	c.notifyStatus()
}

func (c *Coordinator[T]) clearRetry(epoch uint64, id uuid.UUID) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	delete(c.pushRetry, id)
	c.mu.Unlock()
	if err := c.backlog.RemovePushRetry(id); err != nil {
		c.logger.Warn("backlog retry remove failed", "id", id, "error", err)
	}
	c.notifyStatus()
}

// Pull fetches rows updated after the cursor and merges them into the local
// store. Rows whose id has a pending local deletion are skipped: the delete
// intent wins over a stale remote reappearance. The cursor advances to the
// maximum observed update time and never regresses.
func (c *Coordinator[T]) Pull(ctx context.Context) error {
	c.mu.Lock()
	if !c.signedIn {
		c.mu.Unlock()
		return ErrNotSignedIn
	}
	owner, epoch, cursor := c.owner, c.epoch, c.remoteCursor
	c.mu.Unlock()

	rows, err := c.gateway.FetchSince(ctx, owner, cursor)
	if err != nil {
		return fmt.Errorf("pull %s: %w", c.kind, err)
	}

	maxSeen := cursor
	for _, row := range rows {
		if row.UpdatedAt.After(maxSeen) {
			maxSeen = row.UpdatedAt
		}
		id := row.Entity.SyncMeta().ID
		c.mu.Lock()
		if epoch != c.epoch {
			c.mu.Unlock()
			return nil
		}
		_, deleting := c.pendingDelete[id]
		c.mu.Unlock()
		if deleting {
			continue
		}
		if err := c.mergeRemote(ctx, owner, row); err != nil {
			// Degrade gracefully: one bad row must not abort the batch.
			c.logger.Error("remote merge failed", "id", id, "error", err)
		}
	}

	c.mu.Lock()
	if epoch == c.epoch && maxSeen.After(c.remoteCursor) {
		c.remoteCursor = maxSeen
	}
	c.mu.Unlock()
	c.notifyStatus()
	return nil
}

// mergeRemote applies last-writer-wins at whole-record granularity: a remote
// row bearing an equal-or-older update time than the locally confirmed one is
// skipped (a pending push will supersede it); a strictly newer row overwrites
// the local fields and clears the dirty flag.
func (c *Coordinator[T]) mergeRemote(ctx context.Context, owner uuid.UUID, row Remote[T]) error {
	id := row.Entity.SyncMeta().ID
	local, found, err := c.store.Fetch(ctx, id)
	if err != nil {
		return err
	}
	if found && !row.UpdatedAt.After(local.SyncMeta().RemoteUpdatedAt) {
		return nil
	}
	meta := row.Entity.SyncMeta()
	meta.OwnerID = owner
	meta.NeedsRemoteSync = false
	meta.RemoteUpdatedAt = row.UpdatedAt
	meta.LastModifiedAt = row.UpdatedAt
	meta.LastSyncedAt = c.Clock()
	return c.store.ApplyRemote(ctx, row.Entity)
}
