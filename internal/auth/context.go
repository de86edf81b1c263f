// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides request-context helpers for authenticated identities.
package auth

import (
	"context"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	sourceIDKey contextKey = "source_id"
)

// SetUserID stores the authenticated user id in the context.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the authenticated user id from the context.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// SetSourceID stores the originating device id in the context.
func SetSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, sourceIDKey, sourceID)
}

// GetSourceID retrieves the originating device id from the context.
func GetSourceID(ctx context.Context) (string, bool) {
	sourceID, ok := ctx.Value(sourceIDKey).(string)
	return sourceID, ok
}
