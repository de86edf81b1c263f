// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

// Package refhttp is the HTTP client side of the sync protocol: a
// RemoteGateway implementation speaking to the refserver endpoints with a
// bearer token.
package refhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/refzone/refsync/refserver"
	"github.com/refzone/refsync/refsync"
)

const defaultPageLimit = 200

// TokenSource supplies the current bearer token for outgoing requests. It is
// called per request so refreshed tokens take effect without rebuilding the
// gateway.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// Options tunes a Gateway.
type Options struct {
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
	// PageLimit caps rows per fetch page. Zero means the default.
	PageLimit int
	Logger    *slog.Logger
}

// Gateway is an HTTP refsync.RemoteGateway for one entity kind.
type Gateway[T refsync.Entity] struct {
	baseURL   string
	kind      string
	token     TokenSource
	codec     refsync.Codec[T]
	client    *http.Client
	pageLimit int
	logger    *slog.Logger
}

// NewGateway builds a gateway for the codec's kind against baseURL.
func NewGateway[T refsync.Entity](baseURL string, token TokenSource, codec refsync.Codec[T], opts Options) *Gateway[T] {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := opts.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway[T]{
		baseURL:   baseURL,
		kind:      codec.Kind(),
		token:     token,
		codec:     codec,
		client:    client,
		pageLimit: limit,
		logger:    logger.With("kind", codec.Kind()),
	}
}

// FetchSince implements refsync.RemoteGateway. It drains every page the
// server reports, skipping rows whose payload fails to decode.
func (g *Gateway[T]) FetchSince(ctx context.Context, owner uuid.UUID, updatedAfter time.Time) ([]refsync.Remote[T], error) {
	_ = owner // ownership is scoped by the bearer token server-side
	var result []refsync.Remote[T]
	cursor := updatedAfter
	for {
		page, hasMore, err := g.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, row := range page {
			entity, err := g.codec.DecodePayload(row.Payload)
			if err != nil {
				g.logger.Warn("skipping undecodable remote row", "id", row.ID, "error", err)
				continue
			}
			meta := entity.SyncMeta()
			meta.ID = row.ID
			meta.OwnerID = row.OwnerID
			meta.SourceDevice = row.SourceDevice
			result = append(result, refsync.Remote[T]{Entity: entity, UpdatedAt: row.UpdatedAt})
		}
		if !hasMore || len(page) == 0 {
			return result, nil
		}
		cursor = page[len(page)-1].UpdatedAt
	}
}

func (g *Gateway[T]) fetchPage(ctx context.Context, updatedAfter time.Time) ([]refserver.Row, bool, error) {
	endpoint := fmt.Sprintf("%s/sync/%s", g.baseURL, g.kind)
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", g.pageLimit))
	if !updatedAfter.IsZero() {
		params.Set("updated_after", updatedAfter.Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build fetch request: %w", err)
	}
	body, err := g.do(req)
	if err != nil {
		return nil, false, err
	}

	var resp refserver.FetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to decode fetch response: %w", err)
	}
	return resp.Rows, resp.HasMore, nil
}

// Push implements refsync.RemoteGateway.
func (g *Gateway[T]) Push(ctx context.Context, entity T) (time.Time, error) {
	meta := entity.SyncMeta()
	payload, err := g.codec.EncodePayload(entity)
	if err != nil {
		// A payload that cannot even be encoded will never succeed.
		return time.Time{}, refsync.Permanent(fmt.Errorf("failed to encode payload: %w", err))
	}
	row := refserver.Row{
		ID:           meta.ID,
		OwnerID:      meta.OwnerID,
		SourceDevice: meta.SourceDevice,
		Payload:      payload,
	}
	reqBody, err := json.Marshal(row)
	if err != nil {
		return time.Time{}, refsync.Permanent(fmt.Errorf("failed to encode row: %w", err))
	}

	endpoint := fmt.Sprintf("%s/sync/%s", g.baseURL, g.kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := g.do(req)
	if err != nil {
		return time.Time{}, err
	}

	var resp refserver.UpsertResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode push response: %w", err)
	}
	return resp.UpdatedAt, nil
}

// Delete implements refsync.RemoteGateway.
func (g *Gateway[T]) Delete(ctx context.Context, id uuid.UUID) error {
	endpoint := fmt.Sprintf("%s/sync/%s/%s", g.baseURL, g.kind, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	_, err = g.do(req)
	return err
}

// do executes an authenticated request and returns the response body, mapping
// non-2xx statuses to HTTPError (permanently wrapped when retrying is
// pointless).
func (g *Gateway[T]) do(req *http.Request) ([]byte, error) {
	token, err := g.token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	httpErr := &HTTPError{StatusCode: resp.StatusCode}
	var errResp refserver.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		httpErr.Message = errResp.Message
	} else {
		httpErr.Message = http.StatusText(resp.StatusCode)
	}
	if permanentStatus(resp.StatusCode) {
		return nil, refsync.Permanent(httpErr)
	}
	return nil, httpErr
}

// HTTPError is a non-2xx response from the sync backend.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sync backend returned %d: %s", e.StatusCode, e.Message)
}

// permanentStatus reports whether a status indicates the request itself is
// unacceptable. Auth failures, timeouts and throttling stay retryable: tokens
// refresh and load subsides.
func permanentStatus(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden,
		http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}
