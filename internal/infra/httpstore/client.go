// Package httpstore is a ProgressStore and HistoryLog backed by a remote
// studyquest server. It is what a client-side replica syncs against.
//
// The server never reports NotFound for a snapshot: a user with no stored
// record gets the defaults, which the replica then treats like any pull.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// Client talks to the /api endpoints with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// ─── Progress Snapshots ─────────────────────────────────────────────────────

func (c *Client) GetSnapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	var s domain.ProgressSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/progress", nil, &s); err != nil {
		return domain.ProgressSnapshot{}, err
	}
	if s.UserID != userID {
		return domain.ProgressSnapshot{}, fmt.Errorf("%w: token is for %q, not %q", domain.ErrUnauthorized, s.UserID, userID)
	}
	return s, nil
}

func (c *Client) UpsertSnapshot(ctx context.Context, s domain.ProgressSnapshot) error {
	if s.UserID == "" {
		return fmt.Errorf("%w: snapshot without user id", domain.ErrValidation)
	}
	return c.do(ctx, http.MethodPut, "/api/progress", s, nil)
}

// ─── History ────────────────────────────────────────────────────────────────

func (c *Client) AppendHistory(ctx context.Context, e domain.HistoryEntry) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: history entry needs a user id", domain.ErrValidation)
	}
	return c.do(ctx, http.MethodPost, "/api/history", e, nil)
}

func (c *Client) ListHistory(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	q := url.Values{}
	if f.Kind != "" {
		q.Set("kind", string(f.Kind))
	}
	if !f.Since.IsZero() {
		q.Set("since", f.Since.Format(time.RFC3339Nano))
	}
	if !f.Until.IsZero() {
		q.Set("until", f.Until.Format(time.RFC3339Nano))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/api/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var body struct {
		Entries []domain.HistoryEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, 0, len(body.Entries))
	for _, e := range body.Entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Ping checks that the server answers /health.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ─── Transport ──────────────────────────────────────────────────────────────

// apiError is the server's error envelope.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response back into the domain sentinel the
// server started from.
func decodeError(status int, raw []byte) error {
	var e apiError
	if json.Unmarshal(raw, &e) != nil || e.Error.Message == "" {
		e.Error.Message = strings.TrimSpace(string(raw))
	}
	if sentinel := domain.ErrorForCode(e.Error.Type); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, e.Error.Message)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, e.Error.Message)
	}
	return fmt.Errorf("server returned %d: %s", status, e.Error.Message)
}
