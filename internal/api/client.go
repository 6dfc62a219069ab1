package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pulpit/internal/assistant"
)

// ErrDaemonUnavailable marks connection failures to the daemon API.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
}

// NewClient builds a client for the daemon listening on bind. A bare
// host:port gets an http scheme.
func NewClient(bind, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// WithHTTPClient replaces the transport, for tests.
func (c *Client) WithHTTPClient(doer HTTPDoer) *Client {
	c.http = doer
	return c
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// ListVideos lists videos, optionally filtered by status.
func (c *Client) ListVideos(ctx context.Context, statuses ...string) ([]Video, error) {
	path := "/api/videos"
	if len(statuses) > 0 {
		q := url.Values{}
		for _, s := range statuses {
			q.Add("status", s)
		}
		path += "?" + q.Encode()
	}
	var out VideoListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Videos, nil
}

// Video fetches one video with its annotations.
func (c *Client) Video(ctx context.Context, id int64) (VideoDetail, error) {
	var out VideoDetail
	err := c.do(ctx, http.MethodGet, "/api/videos/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

// Enqueue submits a video for ingestion.
func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResponse, error) {
	var out EnqueueResponse
	err := c.do(ctx, http.MethodPost, "/api/videos", req, &out)
	return out, err
}

// Reingest resets a video to pending.
func (c *Client) Reingest(ctx context.Context, id int64) (Video, error) {
	var out Video
	err := c.do(ctx, http.MethodPost, "/api/videos/"+strconv.FormatInt(id, 10)+"/reingest", nil, &out)
	return out, err
}

// SearchPassage lists videos touching an OSIS reference.
func (c *Client) SearchPassage(ctx context.Context, ref string) (PassageSearchResponse, error) {
	var out PassageSearchResponse
	err := c.do(ctx, http.MethodGet, "/api/passages?ref="+url.QueryEscape(ref), nil, &out)
	return out, err
}

// Ask sends a question to the assistant.
func (c *Client) Ask(ctx context.Context, req AskRequest) (assistant.Answer, error) {
	var out assistant.Answer
	err := c.do(ctx, http.MethodPost, "/api/ask", req, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: api bind not configured", ErrDaemonUnavailable)
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
