// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refdata

import (
	"encoding/json"
	"fmt"

	"github.com/refzone/refsync/refsync"
)

// jsonCodec serializes an entity's payload fields as JSON. The Sync metadata
// field is tagged out of the payload, so bytes on the wire and in the local
// table stay free of device-local state.
type jsonCodec[T any, PT interface {
	*T
	refsync.Entity
}] struct {
	kind string
}

func (c jsonCodec[T, PT]) Kind() string { return c.kind }

func (c jsonCodec[T, PT]) EncodePayload(entity PT) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", c.kind, err)
	}
	return data, nil
}

func (c jsonCodec[T, PT]) DecodePayload(data []byte) (PT, error) {
	entity := PT(new(T))
	if err := json.Unmarshal(data, entity); err != nil {
		var zero PT
		return zero, fmt.Errorf("failed to decode %s payload: %w", c.kind, err)
	}
	return entity, nil
}

// TeamCodec returns the payload codec for teams.
func TeamCodec() refsync.Codec[*Team] {
	return jsonCodec[Team, *Team]{kind: KindTeams}
}

// VenueCodec returns the payload codec for venues.
func VenueCodec() refsync.Codec[*Venue] {
	return jsonCodec[Venue, *Venue]{kind: KindVenues}
}

// CompetitionCodec returns the payload codec for competitions.
func CompetitionCodec() refsync.Codec[*Competition] {
	return jsonCodec[Competition, *Competition]{kind: KindCompetitions}
}

// ScheduleCodec returns the payload codec for scheduled matches.
func ScheduleCodec() refsync.Codec[*ScheduledMatch] {
	return jsonCodec[ScheduledMatch, *ScheduledMatch]{kind: KindSchedules}
}

// MatchHistoryCodec returns the payload codec for completed matches.
func MatchHistoryCodec() refsync.Codec[*CompletedMatch] {
	return jsonCodec[CompletedMatch, *CompletedMatch]{kind: KindMatchHistory}
}

// JournalCodec returns the payload codec for journal entries.
func JournalCodec() refsync.Codec[*JournalEntry] {
	return jsonCodec[JournalEntry, *JournalEntry]{kind: KindJournal}
}
