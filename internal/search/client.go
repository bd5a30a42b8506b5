package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/topicmap/internal/failure"
)

// Client queries a search index over HTTP.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a search client for the index at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether an index URL is set.
func (c *Client) IsConfigured() bool {
	return c != nil && c.BaseURL != ""
}

// Search posts query to {BaseURL}/search. Network failures and 5xx replies
// are transient; any other non-200 reply is permanent.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]int64, error) {
	data, err := json.Marshal(map[string]any{
		"q":    query,
		"rows": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/search", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &failure.TransientError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &failure.TransientError{
			Op:  "search",
			Err: fmt.Errorf("index returned %d: %s", resp.StatusCode, string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search index returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		StoryIDs []int64 `json:"story_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return result.StoryIDs, nil
}
