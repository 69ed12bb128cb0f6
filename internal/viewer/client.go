package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel kinds for feed errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrMalformedItem    = errors.New("malformed feed item")
)

const maxItemBytes = 64 << 10

// Client reads the latest-status feed over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRequestTimeout bounds each feed request.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: 800 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the newest entry for gate. found is false when the server
// answers null.
func (c *Client) Latest(ctx context.Context, gate string) (Item, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/api/attendance/latest?gate_id=" + url.QueryEscape(gate)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return Item{}, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Item{}, false, fmt.Errorf("get latest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxItemBytes))
		return Item{}, false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var it *Item
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxItemBytes)).Decode(&it); err != nil {
		return Item{}, false, fmt.Errorf("%w: %w", ErrMalformedItem, err)
	}
	if it == nil {
		return Item{}, false, nil
	}
	if it.Timestamp.IsZero() || it.Status == "" {
		return Item{}, false, fmt.Errorf("%w: missing status or timestamp", ErrMalformedItem)
	}
	return *it, true, nil
}
