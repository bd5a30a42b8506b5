package graph

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	gexfNamespace = "http://www.gexf.net/1.2draft"
	vizNamespace  = "http://www.gexf.net/1.2draft/viz"
)

type gexfDoc struct {
	XMLName xml.Name  `xml:"gexf"`
	Xmlns   string    `xml:"xmlns,attr"`
	XmlnsV  string    `xml:"xmlns:viz,attr"`
	Version string    `xml:"version,attr"`
	Meta    gexfMeta  `xml:"meta"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfMeta struct {
	LastModified string `xml:"lastmodifieddate,attr"`
	Creator      string `xml:"creator"`
	Description  string `xml:"description"`
}

type gexfGraph struct {
	Mode       string         `xml:"mode,attr"`
	EdgeType   string         `xml:"defaultedgetype,attr"`
	Attributes gexfAttributes `xml:"attributes"`
	Nodes      []gexfNode     `xml:"nodes>node"`
	Edges      []gexfEdge     `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class string          `xml:"class,attr"`
	Attrs []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID       string         `xml:"id,attr"`
	Label    string         `xml:"label,attr"`
	Values   []gexfAttValue `xml:"attvalues>attvalue"`
	Color    gexfColor      `xml:"viz:color"`
	Size     gexfSize       `xml:"viz:size"`
	Position gexfPosition   `xml:"viz:position"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfColor struct {
	R uint8 `xml:"r,attr"`
	G uint8 `xml:"g,attr"`
	B uint8 `xml:"b,attr"`
}

type gexfSize struct {
	Value string `xml:"value,attr"`
}

type gexfPosition struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
	Z string `xml:"z,attr"`
}

type gexfEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
	Weight string `xml:"weight,attr,omitempty"`
}

// nodeAttributes are written for every node, before the tag sets.
var nodeAttributes = []struct {
	title string
	typ   string
	value func(n Node) string
}{
	{"label", "string", func(n Node) string { return n.Label }},
	{"url", "string", func(n Node) string { return n.URL }},
	{"media_id", "integer", func(n Node) string { return strconv.FormatInt(n.ID, 10) }},
	{"type", "string", func(n Node) string { return "media" }},
	{"inlink_count", "integer", func(n Node) string { return strconv.Itoa(n.Counts.InlinkCount) }},
	{"outlink_count", "integer", func(n Node) string { return strconv.Itoa(n.Counts.OutlinkCount) }},
	{"story_count", "integer", func(n Node) string { return strconv.Itoa(n.Counts.StoryCount) }},
	{"media_inlink_count", "integer", func(n Node) string { return strconv.Itoa(n.Counts.MediaInlinkCount) }},
	{"simple_tweet_count", "integer", func(n Node) string { return strconv.Itoa(n.Counts.SimpleTweetCount) }},
	{"normalized_tweet_count", "float", func(n Node) string { return formatFloat(n.Counts.NormalizedTweetCount) }},
}

// WriteGEXF writes g as a directed GEXF 1.2 document with viz extensions.
func WriteGEXF(w io.Writer, g *Graph, includeWeights bool) error {
	doc := gexfDoc{
		Xmlns:   gexfNamespace,
		XmlnsV:  vizNamespace,
		Version: "1.2",
		Meta: gexfMeta{
			LastModified: time.Now().UTC().Format("2006-01-02"),
			Creator:      "topicmap",
			Description:  g.Description,
		},
		Graph: gexfGraph{
			Mode:       "static",
			EdgeType:   "directed",
			Attributes: gexfAttributes{Class: "node"},
		},
	}

	for i, a := range nodeAttributes {
		doc.Graph.Attributes.Attrs = append(doc.Graph.Attributes.Attrs,
			gexfAttribute{ID: strconv.Itoa(i), Title: a.title, Type: a.typ})
	}
	tagBase := len(nodeAttributes)
	for i, set := range g.TagSets {
		doc.Graph.Attributes.Attrs = append(doc.Graph.Attributes.Attrs,
			gexfAttribute{ID: strconv.Itoa(tagBase + i), Title: set, Type: "string"})
	}

	for _, n := range g.Nodes {
		gn := gexfNode{
			ID:       strconv.FormatInt(n.ID, 10),
			Label:    n.Label,
			Color:    gexfColor{R: n.Color.R, G: n.Color.G, B: n.Color.B},
			Size:     gexfSize{Value: formatFloat(n.Size)},
			Position: gexfPosition{X: formatFloat(n.Position.X), Y: formatFloat(n.Position.Y), Z: "0"},
		}
		for i, a := range nodeAttributes {
			gn.Values = append(gn.Values, gexfAttValue{For: strconv.Itoa(i), Value: a.value(n)})
		}
		for i, set := range g.TagSets {
			if v, ok := n.Tags[set]; ok {
				gn.Values = append(gn.Values, gexfAttValue{For: strconv.Itoa(tagBase + i), Value: v})
			}
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, gn)
	}

	for i, e := range g.Edges {
		ge := gexfEdge{
			ID:     strconv.Itoa(i),
			Source: strconv.FormatInt(e.Source, 10),
			Target: strconv.FormatInt(e.Target, 10),
		}
		if includeWeights {
			ge.Weight = strconv.Itoa(e.Weight)
		}
		doc.Graph.Edges = append(doc.Graph.Edges, ge)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding gexf: %w", err)
	}
	return enc.Flush()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
