// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package refserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/refzone/refsync/internal/auth"
)

// ClientAuthenticator authenticates sync requests and exposes the identities
// via the request context.
type ClientAuthenticator interface {
	Middleware(next http.Handler) http.Handler
}

// Handlers exposes the sync protocol over HTTP:
//
//	GET    /sync/{kind}?updated_after=...&limit=...  fetch changed rows
//	POST   /sync/{kind}                              upsert one row
//	DELETE /sync/{kind}/{id}                         delete one row
type Handlers struct {
	store  SyncStore
	authn  ClientAuthenticator
	logger *slog.Logger
}

// NewHandlers wires the HTTP surface over a SyncStore.
func NewHandlers(store SyncStore, authn ClientAuthenticator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, authn: authn, logger: logger}
}

// Register attaches the sync routes to mux, wrapped in authentication.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.Handle("GET /sync/{kind}", h.authn.Middleware(http.HandlerFunc(h.handleFetch)))
	mux.Handle("POST /sync/{kind}", h.authn.Middleware(http.HandlerFunc(h.handleUpsert)))
	mux.Handle("DELETE /sync/{kind}/{id}", h.authn.Middleware(http.HandlerFunc(h.handleDelete)))
}

func (h *Handlers) handleFetch(w http.ResponseWriter, r *http.Request) {
	kind, owner, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var updatedAfter time.Time
	if raw := r.URL.Query().Get("updated_after"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bad_request", "updated_after must be RFC 3339")
			return
		}
		updatedAfter = t
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, hasMore, err := h.store.FetchSince(r.Context(), kind, owner, updatedAfter, limit)
	if err != nil {
		h.logger.Error("fetch failed", "kind", kind, "user_id", owner, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch rows")
		return
	}
	if rows == nil {
		rows = []Row{}
	}
	h.writeJSON(w, http.StatusOK, FetchResponse{Rows: rows, HasMore: hasMore})
}

func (h *Handlers) handleUpsert(w http.ResponseWriter, r *http.Request) {
	kind, owner, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var row Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	if row.ID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "row id is required")
		return
	}
	if len(row.Payload) == 0 {
		h.writeError(w, http.StatusBadRequest, "bad_request", "row payload is required")
		return
	}
	// The token decides ownership and origin, not the body.
	row.OwnerID = owner
	if sourceID, ok := auth.GetSourceID(r.Context()); ok && sourceID != "" {
		row.SourceDevice = sourceID
	}

	updatedAt, err := h.store.Upsert(r.Context(), kind, row)
	if err != nil {
		h.logger.Error("upsert failed", "kind", kind, "id", row.ID, "user_id", owner, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to upsert row")
		return
	}
	h.writeJSON(w, http.StatusOK, UpsertResponse{UpdatedAt: updatedAt})
}

func (h *Handlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, owner, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid row id")
		return
	}

	if err := h.store.Delete(r.Context(), kind, owner, id); err != nil {
		h.logger.Error("delete failed", "kind", kind, "id", id, "user_id", owner, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete row")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestScope resolves the kind path segment and authenticated owner, writing
// the error response itself when either is invalid.
func (h *Handlers) requestScope(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	kind := r.PathValue("kind")
	if !h.store.ValidKind(kind) {
		h.writeError(w, http.StatusNotFound, "unknown_kind", fmt.Sprintf("unknown entity kind %q", kind))
		return "", uuid.Nil, false
	}
	userID, ok := auth.GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing authenticated user")
		return "", uuid.Nil, false
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "user id is not a UUID")
		return "", uuid.Nil, false
	}
	return kind, owner, true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
