// Package biliapi contains minimal helpers to interact with the Bilibili live APIs
// for chat history polling and best-effort avatar lookup.
package biliapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultHistoryURL = "https://api.live.bilibili.com/xlive/web-room/v1/dM/gethistory"
	defaultProfileURL = "http://api.bilibili.com/x/space/acc/info"
)

// Entry is one chat message in a history snapshot.
type Entry struct {
	Text     string `json:"text"`
	UID      int64  `json:"uid"`
	Nickname string `json:"nickname"`
	Timeline string `json:"timeline"`
}

// Snapshot is the decoded payload of one gethistory response. Room holds the
// ordered recent-history window; Admin holds the moderator subset and is not
// consumed by the poller.
type Snapshot struct {
	Admin []Entry `json:"admin"`
	Room  []Entry `json:"room"`
}

// Client provides the minimal Bilibili live API surface the service needs.
type Client struct {
	RoomID     string
	HTTPClient *http.Client

	// HistoryURL and ProfileURL default to the public endpoints; tests override them.
	HistoryURL string
	ProfileURL string
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) historyURL() string {
	if c.HistoryURL != "" {
		return c.HistoryURL
	}
	return defaultHistoryURL
}

func (c *Client) profileURL() string {
	if c.ProfileURL != "" {
		return c.ProfileURL
	}
	return defaultProfileURL
}

// FetchHistoryRaw fetches the recent chat history window for the configured room
// and returns the undecoded response body. The endpoint is a plain form POST; the
// three auxiliary tokens are sent empty.
func (c *Client) FetchHistoryRaw(ctx context.Context) ([]byte, error) {
	if c.RoomID == "" {
		return nil, fmt.Errorf("room id empty")
	}
	form := url.Values{}
	form.Set("roomid", c.RoomID)
	form.Set("csrf_token", "")
	form.Set("csrf", "")
	form.Set("visit_id", "")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.historyURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("history request failed: %s: %s", resp.Status, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// ParseSnapshot decodes a gethistory response body into a Snapshot.
func ParseSnapshot(b []byte) (*Snapshot, error) {
	var body struct {
		Code    int       `json:"code"`
		Message string    `json:"message"`
		Data    *Snapshot `json:"data"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, fmt.Errorf("decode history payload: %w", err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("history request rejected: code %d: %s", body.Code, body.Message)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("history payload missing data")
	}
	return body.Data, nil
}

// GetHistory fetches and decodes the recent chat history window.
func (c *Client) GetHistory(ctx context.Context) (*Snapshot, error) {
	raw, err := c.FetchHistoryRaw(ctx)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(raw)
}

// GetFace resolves a numeric user identity to their avatar image URL.
// The profile payload is not decoded; the URL is cut out between literal
// markers, and any shape mismatch yields absence rather than an error.
func (c *Client) GetFace(ctx context.Context, uid int64) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?mid=%d", c.profileURL(), uid), nil)
	if err != nil {
		return "", false
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return "", false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false
	}
	const marker = `"face":"`
	body := string(b)
	start := strings.Index(body, marker)
	if start < 0 {
		return "", false
	}
	rest := body[start+len(marker):]
	end := strings.Index(rest, `"`)
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}
