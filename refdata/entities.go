// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

// Package refdata defines the officiating domain entities that sync between
// devices, their payload codecs, and a Library bundling one sync coordinator
// per entity kind over a shared device database.
package refdata

import (
	"time"

	"github.com/google/uuid"

	"github.com/refzone/refsync/refsync"
)

// Entity kind names. They double as local table prefixes and remote route
// segments, so they never change once shipped.
const (
	KindTeams        = "teams"
	KindVenues       = "venues"
	KindCompetitions = "competitions"
	KindSchedules    = "schedules"
	KindMatchHistory = "match_history"
	KindJournal      = "journal"
)

// Kinds lists every entity kind the app syncs.
func Kinds() []string {
	return []string{
		KindTeams, KindVenues, KindCompetitions,
		KindSchedules, KindMatchHistory, KindJournal,
	}
}

// Player is one roster entry on a team.
type Player struct {
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
}

// Team is a club or squad the official regularly encounters.
type Team struct {
	Sync refsync.Meta `json:"-"`

	Name      string   `json:"name"`
	ShortName string   `json:"short_name,omitempty"`
	Division  string   `json:"division,omitempty"`
	Colors    string   `json:"colors,omitempty"`
	Players   []Player `json:"players,omitempty"`
	Officials []string `json:"officials,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

func (t *Team) SyncMeta() *refsync.Meta { return &t.Sync }

// Venue is a ground or hall where matches take place.
type Venue struct {
	Sync refsync.Meta `json:"-"`

	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	City      string  `json:"city,omitempty"`
	Surface   string  `json:"surface,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

func (v *Venue) SyncMeta() *refsync.Meta { return &v.Sync }

// MatchFormat captures the timing rules a competition plays under.
type MatchFormat struct {
	PeriodCount      int  `json:"period_count"`
	PeriodMinutes    int  `json:"period_minutes"`
	BreakMinutes     int  `json:"break_minutes,omitempty"`
	ExtraTimeAllowed bool `json:"extra_time_allowed,omitempty"`
	PenaltiesAllowed bool `json:"penalties_allowed,omitempty"`
}

// Competition is a league or tournament with its match format.
type Competition struct {
	Sync refsync.Meta `json:"-"`

	Name      string      `json:"name"`
	Organizer string      `json:"organizer,omitempty"`
	AgeGroup  string      `json:"age_group,omitempty"`
	Level     string      `json:"level,omitempty"`
	Format    MatchFormat `json:"format"`
}

func (c *Competition) SyncMeta() *refsync.Meta { return &c.Sync }

// ScheduledMatch is an upcoming appointment.
type ScheduledMatch struct {
	Sync refsync.Meta `json:"-"`

	HomeTeam      string     `json:"home_team"`
	AwayTeam      string     `json:"away_team"`
	CompetitionID *uuid.UUID `json:"competition_id,omitempty"`
	VenueID       *uuid.UUID `json:"venue_id,omitempty"`
	KickOff       time.Time  `json:"kick_off"`
	Role          string     `json:"role,omitempty"`
	Status        string     `json:"status,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func (m *ScheduledMatch) SyncMeta() *refsync.Meta { return &m.Sync }

// MatchEvent is one logged incident within a completed match.
type MatchEvent struct {
	Minute int    `json:"minute"`
	Kind   string `json:"kind"`
	Team   string `json:"team,omitempty"`
	Player string `json:"player,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// CompletedMatch is the record of an officiated match.
type CompletedMatch struct {
	Sync refsync.Meta `json:"-"`

	HomeTeam    string       `json:"home_team"`
	AwayTeam    string       `json:"away_team"`
	HomeScore   int          `json:"home_score"`
	AwayScore   int          `json:"away_score"`
	Competition string       `json:"competition,omitempty"`
	Venue       string       `json:"venue,omitempty"`
	PlayedAt    time.Time    `json:"played_at"`
	Events      []MatchEvent `json:"events,omitempty"`
	Notes       string       `json:"notes,omitempty"`
}

func (m *CompletedMatch) SyncMeta() *refsync.Meta { return &m.Sync }

// JournalEntry is a self-review note, optionally tied to a match.
type JournalEntry struct {
	Sync refsync.Meta `json:"-"`

	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	MatchID   *uuid.UUID `json:"match_id,omitempty"`
	Mood      string     `json:"mood,omitempty"`
	WrittenAt time.Time  `json:"written_at"`
}

func (j *JournalEntry) SyncMeta() *refsync.Meta { return &j.Sync }
