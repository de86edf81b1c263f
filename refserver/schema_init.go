// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refserver

import (
	"context"
	"fmt"
	"regexp"
)

const defaultFetchLimit = 500

var kindNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validKindName(kind string) bool {
	return kindNamePattern.MatchString(kind)
}

func tableName(kind string) string {
	return kind + "_rows"
}

func (s *Service) initSchema(ctx context.Context, kinds []string) error {
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS refsync`); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	for _, kind := range kinds {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS refsync.%s (
				id            UUID PRIMARY KEY,
				owner_id      UUID NOT NULL,
				source_device TEXT NOT NULL DEFAULT '',
				payload       JSONB NOT NULL,
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tableName(kind))
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create table for kind %s: %w", kind, err)
		}
		idx := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_owner_updated_idx
			ON refsync.%s (owner_id, updated_at)`, tableName(kind), tableName(kind))
		if _, err := s.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index for kind %s: %w", kind, err)
		}
	}
	s.logger.Info("sync schema ready", "kinds", kinds)
	return nil
}
