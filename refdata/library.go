// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/refzone/refsync/refhttp"
	"github.com/refzone/refsync/refsqlite"
	"github.com/refzone/refsync/refsync"
)

// LibraryConfig configures a Library.
type LibraryConfig struct {
	// DBPath is the SQLite file holding all local entity tables and the sync
	// backlog. Use ":memory:" for tests.
	DBPath string
	// BaseURL is the sync backend, e.g. "https://api.refzone.example".
	BaseURL string
	// Token supplies the bearer token for backend requests.
	Token refhttp.TokenSource
	// SourceDevice tags records created on this device.
	SourceDevice string
	// Sync overrides the retry/pull tuning. Nil means defaults.
	Sync *refsync.Config
	// HTTPClient overrides the gateway's HTTP client.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Library owns one coordinator per entity kind, all sharing a single device
// database and backend connection.
type Library struct {
	db *sql.DB

	Teams        *refsync.Coordinator[*Team]
	Venues       *refsync.Coordinator[*Venue]
	Competitions *refsync.Coordinator[*Competition]
	Schedules    *refsync.Coordinator[*ScheduledMatch]
	MatchHistory *refsync.Coordinator[*CompletedMatch]
	Journal      *refsync.Coordinator[*JournalEntry]
}

// NewLibrary opens the device database and builds the per-kind coordinators.
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	db, err := refsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	lib := &Library{db: db}

	if lib.Teams, err = buildCoordinator(db, cfg, TeamCodec()); err != nil {
		db.Close()
		return nil, err
	}
	if lib.Venues, err = buildCoordinator(db, cfg, VenueCodec()); err != nil {
		db.Close()
		return nil, err
	}
	if lib.Competitions, err = buildCoordinator(db, cfg, CompetitionCodec()); err != nil {
		db.Close()
		return nil, err
	}
	if lib.Schedules, err = buildCoordinator(db, cfg, ScheduleCodec()); err != nil {
		db.Close()
		return nil, err
	}
	if lib.MatchHistory, err = buildCoordinator(db, cfg, MatchHistoryCodec()); err != nil {
		db.Close()
		return nil, err
	}
	if lib.Journal, err = buildCoordinator(db, cfg, JournalCodec()); err != nil {
		db.Close()
		return nil, err
	}
	return lib, nil
}

func buildCoordinator[T refsync.Entity](db *sql.DB, cfg LibraryConfig, codec refsync.Codec[T]) (*refsync.Coordinator[T], error) {
	store, err := refsqlite.NewStore(db, codec, refsqlite.StoreOptions{SourceDevice: cfg.SourceDevice})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s store: %w", codec.Kind(), err)
	}
	backlog, err := refsqlite.NewBacklog(db, codec.Kind())
	if err != nil {
		return nil, fmt.Errorf("failed to build %s backlog: %w", codec.Kind(), err)
	}
	gateway := refhttp.NewGateway(cfg.BaseURL, cfg.Token, codec, refhttp.Options{
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	return refsync.NewCoordinator(codec.Kind(), store, gateway, backlog, cfg.Sync, cfg.Logger)
}

// Run subscribes every coordinator to the auth feed and blocks until ctx is
// cancelled or the feed closes. It returns ctx's error on cancellation.
func (l *Library) Run(ctx context.Context, feed *refsync.AuthFeed) error {
	g, ctx := errgroup.WithContext(ctx)
	runCoordinator(ctx, g, feed, l.Teams)
	runCoordinator(ctx, g, feed, l.Venues)
	runCoordinator(ctx, g, feed, l.Competitions)
	runCoordinator(ctx, g, feed, l.Schedules)
	runCoordinator(ctx, g, feed, l.MatchHistory)
	runCoordinator(ctx, g, feed, l.Journal)
	return g.Wait()
}

func runCoordinator[T refsync.Entity](ctx context.Context, g *errgroup.Group, feed *refsync.AuthFeed, c *refsync.Coordinator[T]) {
	sub := feed.Subscribe()
	g.Go(func() error {
		return c.Run(ctx, sub)
	})
}

// Close releases the device database.
func (l *Library) Close() error {
	return l.db.Close()
}
