// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refhttp

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is what a client can learn about itself from its own bearer token.
type Identity struct {
	UserID   uuid.UUID
	DeviceID string
}

// ParseIdentity extracts the user and device ids from a JWT without verifying
// its signature. Clients hold tokens issued to them by the backend and only
// need the embedded identity; verification is the server's job.
func ParseIdentity(token string) (Identity, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("token has no sub claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, fmt.Errorf("sub claim is not a UUID: %w", err)
	}
	identity := Identity{UserID: userID}
	if did, ok := claims["did"].(string); ok {
		identity.DeviceID = did
	}
	return identity, nil
}
