// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refsync

import (
	"sync"

	"github.com/google/uuid"
)

// AuthState is one of exactly two transition kinds published by the
// authentication collaborator: signed-in (with the identity) or signed-out.
type AuthState struct {
	SignedIn bool
	UserID   uuid.UUID
}

// SignedIn builds a signed-in transition for the given identity.
func SignedIn(userID uuid.UUID) AuthState {
	return AuthState{SignedIn: true, UserID: userID}
}

// SignedOut builds a signed-out transition.
func SignedOut() AuthState {
	return AuthState{}
}

// AuthStateProvider exposes the current identity and a stream of auth-state
// transitions. The engine only consumes this stream; token management and
// session refresh belong to the provider.
type AuthStateProvider interface {
	// Current returns the currently signed-in identity, if any.
	Current() (uuid.UUID, bool)

	// States returns the transition stream. The channel is closed when the
	// provider shuts down.
	States() <-chan AuthState
}

// AuthFeed is a small fan-out implementation of the auth-state stream: one
// publisher (the app's auth layer), many subscribers (one coordinator per
// entity kind).
type AuthFeed struct {
	mu       sync.Mutex
	signedIn bool
	userID   uuid.UUID
	subs     []chan AuthState
	closed   bool
}

// NewAuthFeed returns a feed with no signed-in identity.
func NewAuthFeed() *AuthFeed {
	return &AuthFeed{}
}

// SignIn publishes a signed-in transition to all subscribers.
func (f *AuthFeed) SignIn(userID uuid.UUID) {
	f.publish(SignedIn(userID))
}

// SignOut publishes a signed-out transition to all subscribers.
func (f *AuthFeed) SignOut() {
	f.publish(SignedOut())
}

func (f *AuthFeed) publish(state AuthState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.signedIn = state.SignedIn
	f.userID = state.UserID
	for _, ch := range f.subs {
		ch <- state
	}
}

// Close closes every subscriber channel. The feed cannot be reused.
func (f *AuthFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

// Subscribe registers a new consumer of the transition stream. Subscribers
// must drain their channel promptly; publishes block on slow consumers so no
// transition is ever dropped.
func (f *AuthFeed) Subscribe() AuthStateProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan AuthState, 16)
	if !f.closed {
		f.subs = append(f.subs, ch)
	} else {
		close(ch)
	}
	return &feedSubscription{feed: f, ch: ch}
}

type feedSubscription struct {
	feed *AuthFeed
	ch   chan AuthState
}

func (s *feedSubscription) Current() (uuid.UUID, bool) {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	return s.feed.userID, s.feed.signedIn
}

func (s *feedSubscription) States() <-chan AuthState {
	return s.ch
}
