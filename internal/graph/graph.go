// Package graph reduces a timespan's medium link graph to a bounded,
// connected subgraph and writes it as GEXF.
package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/TobiSchelling/topicmap/internal/colors"
	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/failure"
	"github.com/TobiSchelling/topicmap/internal/metrics"
)

// Options controls graph reduction and rendering.
type Options struct {
	MaxSources        int
	ColorField        string
	IncludeWeights    bool
	MaxLinksPerSource int
	ExcludeSourceIDs  []int64
	MinNodeSize       float64
	MaxNodeSize       float64
	LayoutMaxNodes    int
}

// DefaultOptions returns the export defaults.
func DefaultOptions() Options {
	return Options{
		MaxSources:     500,
		ColorField:     "partisan_code",
		IncludeWeights: true,
		MinNodeSize:    2,
		MaxNodeSize:    20,
		LayoutMaxNodes: 2000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxSources <= 0 {
		o.MaxSources = d.MaxSources
	}
	if o.ColorField == "" {
		o.ColorField = d.ColorField
	}
	if o.MinNodeSize <= 0 {
		o.MinNodeSize = d.MinNodeSize
	}
	if o.MaxNodeSize <= 0 {
		o.MaxNodeSize = d.MaxNodeSize
	}
	if o.MaxNodeSize < o.MinNodeSize {
		o.MaxNodeSize = o.MinNodeSize
	}
	if o.LayoutMaxNodes <= 0 {
		o.LayoutMaxNodes = d.LayoutMaxNodes
	}
	return o
}

// Input is everything stored for one timespan that the export reads.
type Input struct {
	Topic     database.Topic
	Timespan  database.Timespan
	FocusName string
	Media     map[int64]database.Medium
	Counts    []database.MediumLinkCount
	Links     []database.MediumLink
	Tags      map[int64]map[string]string
}

// Node is one medium in the reduced graph.
type Node struct {
	ID       int64
	Label    string
	URL      string
	Counts   database.MediumLinkCount
	Tags     map[string]string
	Color    colors.RGB
	Size     float64
	Position Position
}

// Graph is the reduced, annotated graph of one timespan.
type Graph struct {
	Description string
	TagSets     []string
	Nodes       []Node
	Edges       []Edge
}

// Exporter builds and serializes timespan graphs.
type Exporter struct {
	Colors *colors.Assigner
	Layout Layouter
}

// Export builds the reduced graph and renders it as GEXF.
func (e *Exporter) Export(ctx context.Context, in Input, opts Options) ([]byte, error) {
	g, err := e.Build(ctx, in, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteGEXF(&buf, g, opts.IncludeWeights); err != nil {
		return nil, fmt.Errorf("writing gexf: %w", err)
	}
	return buf.Bytes(), nil
}

// Build selects the top media, builds capped edges, keeps the giant
// component and annotates the surviving nodes with color, size and position.
func (e *Exporter) Build(ctx context.Context, in Input, opts Options) (*Graph, error) {
	opts = opts.withDefaults()

	exclude := make(map[int64]bool, len(opts.ExcludeSourceIDs))
	for _, id := range opts.ExcludeSourceIDs {
		exclude[id] = true
	}

	selected := SelectSources(in.Counts, opts.MaxSources, exclude)
	counts := make(map[int64]database.MediumLinkCount, len(selected))
	inlinks := make(map[int64]int, len(selected))
	ids := make([]int64, 0, len(selected))
	isSelected := make(map[int64]bool, len(selected))
	for _, c := range selected {
		counts[c.MediumID] = c
		inlinks[c.MediumID] = c.InlinkCount
		ids = append(ids, c.MediumID)
		isSelected[c.MediumID] = true
	}

	edges := BuildEdges(in.Links, isSelected, inlinks, opts.MaxLinksPerSource)
	nodeIDs, edges := GiantComponent(ids, edges)

	g := &Graph{
		Description: Description(in.Topic, in.Timespan, in.FocusName),
		Edges:       edges,
	}

	sizeInputs := make([]int, len(nodeIDs))
	for i, id := range nodeIDs {
		sizeInputs[i] = counts[id].InlinkCount
	}
	sizes := ScaleSizes(sizeInputs, opts.MinNodeSize, opts.MaxNodeSize)

	tagSets := make(map[string]bool)
	ns := colors.For(in.Topic.ID, opts.ColorField)
	for i, id := range nodeIDs {
		m := in.Media[id]
		tags := in.Tags[id]
		for set := range tags {
			tagSets[set] = true
		}

		n := Node{
			ID:     id,
			Label:  m.Name,
			URL:    m.URL,
			Counts: counts[id],
			Tags:   tags,
			Size:   sizes[i],
		}
		if n.Label == "" {
			n.Label = fmt.Sprintf("medium %d", id)
		}
		if e.Colors != nil {
			value := colorValue(tags, opts.ColorField)
			c, err := e.Colors.ColorFor(ns, value)
			if err != nil {
				return nil, fmt.Errorf("coloring medium %d: %w", id, err)
			}
			n.Color = c
		}
		g.Nodes = append(g.Nodes, n)
	}
	for set := range tagSets {
		g.TagSets = append(g.TagSets, set)
	}
	sort.Strings(g.TagSets)

	e.applyLayout(ctx, g, opts)
	metrics.GraphExported(len(g.Nodes))
	return g, nil
}

// applyLayout fills node positions. Failures leave every node at the origin.
func (e *Exporter) applyLayout(ctx context.Context, g *Graph, opts Options) {
	if e.Layout == nil || len(g.Nodes) == 0 {
		return
	}
	if len(g.Nodes) >= opts.LayoutMaxNodes {
		log.Printf("Graph too large to lay out (%d nodes, limit %d); using default positions",
			len(g.Nodes), opts.LayoutMaxNodes)
		metrics.Layout("skipped")
		return
	}

	ids := make([]int64, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	positions, err := e.Layout.Layout(ctx, ids, g.Edges)
	if err != nil {
		if !errors.Is(err, failure.ErrLayoutUnavailable) {
			err = fmt.Errorf("%w: %v", failure.ErrLayoutUnavailable, err)
		}
		log.Printf("Warning: %v; using default positions", err)
		metrics.Layout("unavailable")
		return
	}
	for i := range g.Nodes {
		g.Nodes[i].Position = positions[g.Nodes[i].ID]
	}
	metrics.Layout("ok")
}

func colorValue(tags map[string]string, field string) string {
	if v, ok := tags[field]; ok && v != "" {
		return v
	}
	return "null"
}

// Description renders the human-readable summary stored in the export.
func Description(topic database.Topic, ts database.Timespan, focusName string) string {
	d := fmt.Sprintf("%s topic: %s timespan from %s to %s", topic.Name, ts.Period,
		ts.StartDate.Format("2006-01-02"), ts.EndDate.Format("2006-01-02"))
	if focusName != "" {
		d += fmt.Sprintf(" (focus %s)", focusName)
	}
	return d
}
