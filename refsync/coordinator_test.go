// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// note is a minimal synced entity for exercising the coordinator.
type note struct {
	Sync Meta
	Text string
}

func (n *note) SyncMeta() *Meta { return &n.Sync }

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*note
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID]*note)}
}

func cloneNote(n *note) *note {
	c := *n
	return &c
}

func (s *memStore) LoadAll(context.Context) ([]*note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*note
	for _, n := range s.rows {
		out = append(out, cloneNote(n))
	}
	return out, nil
}

func (s *memStore) Fetch(_ context.Context, id uuid.UUID) (*note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, false, nil
	}
	return cloneNote(n), true, nil
}

func (s *memStore) Save(_ context.Context, n *note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.Sync.NeedsRemoteSync = true
	n.Sync.LastModifiedAt = time.Now()
	s.rows[n.Sync.ID] = cloneNote(n)
	return nil
}

func (s *memStore) ApplyRemote(_ context.Context, n *note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[n.Sync.ID] = cloneNote(n)
	return nil
}

func (s *memStore) MarkSynced(_ context.Context, id uuid.UUID, owner uuid.UUID, remoteUpdatedAt, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil
	}
	n.Sync.NeedsRemoteSync = false
	n.Sync.OwnerID = owner
	if remoteUpdatedAt.After(n.Sync.RemoteUpdatedAt) {
		n.Sync.RemoteUpdatedAt = remoteUpdatedAt
	}
	n.Sync.LastSyncedAt = syncedAt
	return nil
}

func (s *memStore) SetOwner(_ context.Context, id uuid.UUID, owner uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.rows[id]; ok {
		n.Sync.OwnerID = owner
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memStore) Wipe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[uuid.UUID]*note)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) get(id uuid.UUID) (*note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, false
	}
	return cloneNote(n), true
}

type memBacklog struct {
	mu        sync.Mutex
	deletions map[uuid.UUID]struct{}
	retries   map[uuid.UUID]PushRetry
}

func newMemBacklog() *memBacklog {
	return &memBacklog{
		deletions: make(map[uuid.UUID]struct{}),
		retries:   make(map[uuid.UUID]PushRetry),
	}
}

func (b *memBacklog) Load() (*BacklogState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := &BacklogState{PushRetries: make(map[uuid.UUID]PushRetry, len(b.retries))}
	for id := range b.deletions {
		state.PendingDeletions = append(state.PendingDeletions, id)
	}
	for id, retry := range b.retries {
		state.PushRetries[id] = retry
	}
	return state, nil
}

func (b *memBacklog) AddPendingDeletion(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletions[id] = struct{}{}
	return nil
}

func (b *memBacklog) RemovePendingDeletion(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.deletions, id)
	return nil
}

func (b *memBacklog) PutPushRetry(id uuid.UUID, retry PushRetry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retries[id] = retry
	return nil
}

func (b *memBacklog) RemovePushRetry(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.retries, id)
	return nil
}

func (b *memBacklog) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletions = make(map[uuid.UUID]struct{})
	b.retries = make(map[uuid.UUID]PushRetry)
	return nil
}

func (b *memBacklog) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deletions), len(b.retries)
}

type fakeGateway struct {
	mu           sync.Mutex
	pushErrs     []error
	deleteErrs   []error
	pushed       []uuid.UUID
	deleted      []uuid.UUID
	order        []string
	rows         []Remote[*note]
	fetchSince   []time.Time
	nextUpdated  time.Time
	pushAttempts map[uuid.UUID]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextUpdated:  time.Now(),
		pushAttempts: make(map[uuid.UUID]int),
	}
}

func (g *fakeGateway) FetchSince(_ context.Context, _ uuid.UUID, updatedAfter time.Time) ([]Remote[*note], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchSince = append(g.fetchSince, updatedAfter)
	var out []Remote[*note]
	for _, row := range g.rows {
		if row.UpdatedAt.After(updatedAfter) {
			out = append(out, Remote[*note]{Entity: cloneNote(row.Entity), UpdatedAt: row.UpdatedAt})
		}
	}
	return out, nil
}

func (g *fakeGateway) Push(_ context.Context, n *note) (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := n.Sync.ID
	g.pushAttempts[id]++
	if len(g.pushErrs) > 0 {
		err := g.pushErrs[0]
		g.pushErrs = g.pushErrs[1:]
		if err != nil {
			return time.Time{}, err
		}
	}
	g.pushed = append(g.pushed, id)
	g.order = append(g.order, "push")
	g.nextUpdated = g.nextUpdated.Add(time.Millisecond)
	return g.nextUpdated, nil
}

func (g *fakeGateway) Delete(_ context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.deleteErrs) > 0 {
		err := g.deleteErrs[0]
		g.deleteErrs = g.deleteErrs[1:]
		if err != nil {
			return err
		}
	}
	g.deleted = append(g.deleted, id)
	g.order = append(g.order, "delete")
	return nil
}

func (g *fakeGateway) pushCount(id uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pushAttempts[id]
}

func (g *fakeGateway) pushedIDs() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uuid.UUID(nil), g.pushed...)
}

func (g *fakeGateway) deletedIDs() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uuid.UUID(nil), g.deleted...)
}

func (g *fakeGateway) opOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.order...)
}

func (g *fakeGateway) setRows(rows ...Remote[*note]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = rows
}

func (g *fakeGateway) sinceValues() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]time.Time(nil), g.fetchSince...)
}

func testConfig() *Config {
	return &Config{
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       20 * time.Millisecond,
		MaxRetryCount:    10,
		DeleteRetryDelay: time.Millisecond,
		PullInterval:     time.Hour,
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator[*note], *memStore, *fakeGateway, *memBacklog) {
	t.Helper()
	store := newMemStore()
	gateway := newFakeGateway()
	backlog := newMemBacklog()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewCoordinator[*note]("notes", store, gateway, backlog, testConfig(), logger)
	require.NoError(t, err)
	return c, store, gateway, backlog
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 2*time.Millisecond)
}

func TestSavePushesWhenSignedIn(t *testing.T) {
	c, store, gateway, backlog := newTestCoordinator(t)
	user := uuid.New()
	c.HandleSignedIn(context.Background(), user)

	n := &note{Text: "pregame checklist"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	waitFor(t, func() bool { return gateway.pushCount(n.Sync.ID) >= 1 })
	waitFor(t, func() bool {
		got, ok := store.get(n.Sync.ID)
		return ok && !got.Sync.NeedsRemoteSync && !got.Sync.RemoteUpdatedAt.IsZero()
	})

	got, _ := store.get(n.Sync.ID)
	require.Equal(t, user, got.Sync.OwnerID)
	waitFor(t, func() bool {
		_, retries := backlog.counts()
		return retries == 0
	})
}

func TestSaveWhileSignedOutQueuesUntilSignIn(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)

	n := &note{Text: "offline edit"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, gateway.pushCount(n.Sync.ID))

	c.HandleSignedIn(context.Background(), uuid.New())
	waitFor(t, func() bool { return gateway.pushCount(n.Sync.ID) >= 1 })
}

func TestDeleteSupersedesPendingPush(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)

	n := &note{Text: "soon gone"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))
	require.NoError(t, c.Delete(context.Background(), n.Sync.ID))

	c.HandleSignedIn(context.Background(), uuid.New())
	waitFor(t, func() bool { return len(gateway.deletedIDs()) == 1 })

	require.Equal(t, n.Sync.ID, gateway.deletedIDs()[0])
	require.Zero(t, gateway.pushCount(n.Sync.ID))
}

func TestDeletionsDrainBeforePushes(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)

	kept := &note{Text: "kept"}
	kept.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), kept))

	gone := &note{Text: "gone"}
	gone.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), gone))
	require.NoError(t, c.Delete(context.Background(), gone.Sync.ID))

	c.HandleSignedIn(context.Background(), uuid.New())
	waitFor(t, func() bool { return len(gateway.opOrder()) >= 2 })

	order := gateway.opOrder()
	require.Equal(t, "delete", order[0])
	require.Equal(t, "push", order[1])
}

func TestPushRetriesWithBackoffUntilSuccess(t *testing.T) {
	c, store, gateway, _ := newTestCoordinator(t)
	gateway.mu.Lock()
	gateway.pushErrs = []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
		errors.New("connection refused"),
	}
	gateway.mu.Unlock()

	c.HandleSignedIn(context.Background(), uuid.New())
	n := &note{Text: "eventually lands"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	waitFor(t, func() bool { return len(gateway.pushedIDs()) == 1 })
	require.GreaterOrEqual(t, gateway.pushCount(n.Sync.ID), 4)

	waitFor(t, func() bool {
		got, ok := store.get(n.Sync.ID)
		return ok && !got.Sync.NeedsRemoteSync
	})
	_, tracked := c.RetryMetadata(n.Sync.ID)
	require.False(t, tracked)
}

func TestRetryMetadataGrowsWhilePushKeepsFailing(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)
	gateway.mu.Lock()
	for i := 0; i < 50; i++ {
		gateway.pushErrs = append(gateway.pushErrs, errors.New("still down"))
	}
	gateway.mu.Unlock()

	c.HandleSignedIn(context.Background(), uuid.New())
	n := &note{Text: "stuck"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	waitFor(t, func() bool {
		retry, ok := c.RetryMetadata(n.Sync.ID)
		return ok && retry.RetryCount >= 3
	})
	retry, ok := c.RetryMetadata(n.Sync.ID)
	require.True(t, ok)
	require.False(t, retry.NextAttempt.IsZero())
}

func TestDeleteDuringFailingPushAbandonsRetries(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)
	gateway.mu.Lock()
	// The push never succeeds; the user gives up and deletes the record.
	for i := 0; i < 200; i++ {
		gateway.pushErrs = append(gateway.pushErrs, errors.New("still down"))
	}
	gateway.mu.Unlock()

	c.HandleSignedIn(context.Background(), uuid.New())
	n := &note{Text: "never lands"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	waitFor(t, func() bool { return gateway.pushCount(n.Sync.ID) >= 3 })
	require.NoError(t, c.Delete(context.Background(), n.Sync.ID))

	waitFor(t, func() bool {
		for _, id := range gateway.deletedIDs() {
			if id == n.Sync.ID {
				return true
			}
		}
		return false
	})
	_, tracked := c.RetryMetadata(n.Sync.ID)
	require.False(t, tracked)
}

func TestPermanentPushFailureIsAbandoned(t *testing.T) {
	c, store, gateway, backlog := newTestCoordinator(t)
	gateway.mu.Lock()
	gateway.pushErrs = []error{Permanent(errors.New("payload rejected"))}
	gateway.mu.Unlock()

	c.HandleSignedIn(context.Background(), uuid.New())
	n := &note{Text: "malformed"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	waitFor(t, func() bool {
		_, tracked := c.RetryMetadata(n.Sync.ID)
		return !tracked
	})
	require.Equal(t, 1, gateway.pushCount(n.Sync.ID))

	// The record stays local and dirty; it is the push that is abandoned.
	got, ok := store.get(n.Sync.ID)
	require.True(t, ok)
	require.True(t, got.Sync.NeedsRemoteSync)
	_, retries := backlog.counts()
	require.Zero(t, retries)
}

func TestMissingLocalRecordResolvesPush(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)
	c.HandleSignedIn(context.Background(), uuid.New())

	ghost := uuid.New()
	c.EnqueuePush(ghost)

	waitFor(t, func() bool {
		_, tracked := c.RetryMetadata(ghost)
		return !tracked
	})
	require.Zero(t, gateway.pushCount(ghost))
}

func TestFailedDeleteIsRetried(t *testing.T) {
	c, _, gateway, backlog := newTestCoordinator(t)
	gateway.mu.Lock()
	gateway.deleteErrs = []error{errors.New("gateway timeout")}
	gateway.mu.Unlock()

	c.HandleSignedIn(context.Background(), uuid.New())
	id := uuid.New()
	require.NoError(t, c.Delete(context.Background(), id))

	waitFor(t, func() bool { return len(gateway.deletedIDs()) == 1 })
	waitFor(t, func() bool {
		deletions, _ := backlog.counts()
		return deletions == 0
	})
}

func TestPullAppliesNewerAndSkipsOlderRows(t *testing.T) {
	c, store, gateway, _ := newTestCoordinator(t)
	user := uuid.New()
	c.HandleSignedIn(context.Background(), user)

	base := time.Now()

	// Local record already confirmed at base; a remote row at base-1s must not
	// clobber it, a row at base+1s must.
	stale := &note{Text: "local newer"}
	stale.Sync.ID = uuid.New()
	stale.Sync.RemoteUpdatedAt = base
	require.NoError(t, store.ApplyRemote(context.Background(), stale))

	fresh := &note{Text: "remote newer"}
	fresh.Sync.ID = uuid.New()

	staleRemote := &note{Text: "remote older"}
	staleRemote.Sync.ID = stale.Sync.ID

	gateway.setRows(
		Remote[*note]{Entity: staleRemote, UpdatedAt: base.Add(-time.Second)},
		Remote[*note]{Entity: fresh, UpdatedAt: base.Add(time.Second)},
	)

	require.NoError(t, c.Pull(context.Background()))

	got, ok := store.get(stale.Sync.ID)
	require.True(t, ok)
	require.Equal(t, "local newer", got.Text)

	applied, ok := store.get(fresh.Sync.ID)
	require.True(t, ok)
	require.Equal(t, "remote newer", applied.Text)
	require.False(t, applied.Sync.NeedsRemoteSync)
	require.Equal(t, user, applied.Sync.OwnerID)
	require.Equal(t, base.Add(time.Second), applied.Sync.RemoteUpdatedAt)
}

func TestPullSkipsRowsWithPendingDeletion(t *testing.T) {
	c, store, gateway, _ := newTestCoordinator(t)
	c.HandleSignedIn(context.Background(), uuid.New())

	doomed := uuid.New()
	gateway.mu.Lock()
	// Keep the remote delete failing so the deletion intent stays pending for
	// the duration of the pull.
	for i := 0; i < 200; i++ {
		gateway.deleteErrs = append(gateway.deleteErrs, errors.New("down"))
	}
	gateway.mu.Unlock()
	require.NoError(t, c.Delete(context.Background(), doomed))

	remote := &note{Text: "reappeared"}
	remote.Sync.ID = doomed
	gateway.setRows(Remote[*note]{Entity: remote, UpdatedAt: time.Now()})

	require.NoError(t, c.Pull(context.Background()))
	_, ok := store.get(doomed)
	require.False(t, ok)
}

func TestPullCursorNeverRegresses(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)
	c.HandleSignedIn(context.Background(), uuid.New())

	base := time.Now()
	row := &note{Text: "first"}
	row.Sync.ID = uuid.New()
	gateway.setRows(Remote[*note]{Entity: row, UpdatedAt: base})

	require.NoError(t, c.Pull(context.Background()))
	require.NoError(t, c.Pull(context.Background()))

	sinces := gateway.sinceValues()
	require.GreaterOrEqual(t, len(sinces), 2)
	last := sinces[len(sinces)-1]
	require.Equal(t, base, last)
}

func TestSignOutClearsEverythingWithoutNetwork(t *testing.T) {
	c, store, gateway, backlog := newTestCoordinator(t)
	c.HandleSignedIn(context.Background(), uuid.New())

	n := &note{Text: "cached"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))
	waitFor(t, func() bool { return gateway.pushCount(n.Sync.ID) >= 1 })

	c.HandleSignedOut(context.Background())

	require.Zero(t, store.count())
	deletions, retries := backlog.counts()
	require.Zero(t, deletions)
	require.Zero(t, retries)

	st := c.Status()
	require.False(t, st.SignedIn)
	require.Zero(t, st.PendingPushes)
	require.Zero(t, st.PendingDeletions)
}

func TestRefreshRequiresIdentity(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestRefreshFlushesQueuesAndPulls(t *testing.T) {
	c, store, gateway, _ := newTestCoordinator(t)
	user := uuid.New()

	dirty := &note{Text: "edited offline"}
	dirty.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), dirty))

	removed := &note{Text: "deleted offline"}
	removed.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), removed))
	require.NoError(t, c.Delete(context.Background(), removed.Sync.ID))

	incoming := &note{Text: "from another device"}
	incoming.Sync.ID = uuid.New()
	gateway.setRows(Remote[*note]{Entity: incoming, UpdatedAt: time.Now().Add(time.Second)})

	c.HandleSignedIn(context.Background(), user)
	require.NoError(t, c.Refresh(context.Background()))

	require.Contains(t, gateway.deletedIDs(), removed.Sync.ID)
	require.Contains(t, gateway.pushedIDs(), dirty.Sync.ID)

	got, ok := store.get(incoming.Sync.ID)
	require.True(t, ok)
	require.Equal(t, "from another device", got.Text)
}

func TestRunSynthesizesSignedInFromCurrent(t *testing.T) {
	c, _, gateway, _ := newTestCoordinator(t)
	feed := NewAuthFeed()
	user := uuid.New()
	feed.SignIn(user)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, feed.Subscribe())
	}()

	n := &note{Text: "streamed"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))
	waitFor(t, func() bool { return gateway.pushCount(n.Sync.ID) >= 1 })

	cancel()
	<-done
}

func TestRunReactsToAuthTransitions(t *testing.T) {
	c, store, _, _ := newTestCoordinator(t)
	feed := NewAuthFeed()
	sub := feed.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, sub)
	}()

	feed.SignIn(uuid.New())
	waitFor(t, func() bool { return c.Status().SignedIn })

	n := &note{Text: "session data"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	feed.SignOut()
	waitFor(t, func() bool { return !c.Status().SignedIn })
	require.Zero(t, store.count())

	feed.Close()
	<-done
}

func TestStatusListenerObservesQueueChanges(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	var mu sync.Mutex
	var statuses []Status
	c.OnStatus = func(st Status) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	}

	c.HandleSignedIn(context.Background(), uuid.New())
	n := &note{Text: "observed"}
	n.Sync.ID = uuid.New()
	require.NoError(t, c.Save(context.Background(), n))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) > 0
	})
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "notes", statuses[0].Kind)
}
