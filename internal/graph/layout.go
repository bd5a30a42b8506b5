package graph

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

// Position is a 2D node coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layouter computes node positions for a graph. Implementations return an
// error wrapping failure.ErrLayoutUnavailable when no layout can be made.
type Layouter interface {
	Layout(ctx context.Context, nodes []int64, edges []Edge) (map[int64]Position, error)
}

// LayoutClient requests layouts from an HTTP layout service.
type LayoutClient struct {
	BaseURL string
	client  *http.Client
}

// NewLayoutClient creates a client for the layout service at baseURL.
func NewLayoutClient(baseURL string, timeout time.Duration) *LayoutClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &LayoutClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type layoutNode struct {
	ID int64 `json:"id"`
}

type layoutEdge struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
	Weight int   `json:"weight"`
}

type layoutPosition struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Layout posts the graph to {BaseURL}/layout. Every failure is reported as
// layout unavailable.
func (c *LayoutClient) Layout(ctx context.Context, nodes []int64, edges []Edge) (map[int64]Position, error) {
	if c == nil || c.BaseURL == "" {
		return nil, fmt.Errorf("%w: no layout service configured", failure.ErrLayoutUnavailable)
	}

	body := struct {
		Nodes []layoutNode `json:"nodes"`
		Edges []layoutEdge `json:"edges"`
	}{}
	for _, n := range nodes {
		body.Nodes = append(body.Nodes, layoutNode{ID: n})
	}
	for _, e := range edges {
		body.Edges = append(body.Edges, layoutEdge{Source: e.Source, Target: e.Target, Weight: e.Weight})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", failure.ErrLayoutUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/layout", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", failure.ErrLayoutUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrLayoutUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: layout service returned %d: %s", failure.ErrLayoutUnavailable, resp.StatusCode, string(msg))
	}

	var result struct {
		Positions []layoutPosition `json:"positions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", failure.ErrLayoutUnavailable, err)
	}

	positions := make(map[int64]Position, len(result.Positions))
	for _, p := range result.Positions {
		positions[p.ID] = Position{X: p.X, Y: p.Y}
	}
	return positions, nil
}
