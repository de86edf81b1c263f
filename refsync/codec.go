// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

// Codec translates between an entity and its payload bytes as stored locally
// and sent over the wire. Payloads carry only the kind-specific fields; sync
// metadata travels separately.
type Codec[T Entity] interface {
	// Kind is the stable lowercase name of the entity kind (e.g. "teams").
	// It doubles as the table and route segment for this kind.
	Kind() string

	// EncodePayload serializes the entity's payload fields.
	EncodePayload(entity T) ([]byte, error)

	// DecodePayload builds a fresh entity from payload bytes. Metadata fields
	// are left zeroed for the caller to fill in.
	DecodePayload(data []byte) (T, error)
}
