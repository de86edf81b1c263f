// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

// Package refsqlite provides the SQLite-backed collaborators of the sync
// engine: a LocalStore that keeps one table per entity kind, and the durable
// Backlog holding pending deletions and push-retry metadata.
package refsqlite

import (
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
)

var kindNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Open opens (creating if needed) the device database at path and applies
// the pragmas every connection needs. Use ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initDB(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

func validKindName(kind string) bool {
	return kindNamePattern.MatchString(kind)
}
