// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refserver

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Row is the wire representation of one synced record. Payload carries the
// kind-specific fields; everything else is envelope.
type Row struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	SourceDevice string          `json:"source_device,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FetchResponse is returned by GET /sync/{kind}. Rows are ordered ascending
// by updated_at so the maximum value seen becomes the client's new cursor.
type FetchResponse struct {
	Rows    []Row `json:"rows"`
	HasMore bool  `json:"has_more"`
}

// UpsertResponse is returned by POST /sync/{kind}.
type UpsertResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
