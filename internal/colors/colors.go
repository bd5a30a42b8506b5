// Package colors assigns stable colors to categorical node attributes.
package colors

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
)

// GlobalCategories share one color mapping across all topics.
var GlobalCategories = []string{"partisan_code", "partisan_retweet", "fake_news", "media_type"}

// Namespace identifies the mapping a color belongs to: either a global
// category or a category scoped to one topic.
type Namespace struct {
	global   bool
	topicID  int64
	category string
}

// Global returns the cross-topic namespace of category.
func Global(category string) Namespace {
	return Namespace{global: true, category: category}
}

// TopicScoped returns the namespace of category within one topic.
func TopicScoped(topicID int64, category string) Namespace {
	return Namespace{topicID: topicID, category: category}
}

// For returns the global namespace for the fixed cross-topic categories and a
// topic-scoped one for everything else.
func For(topicID int64, category string) Namespace {
	for _, g := range GlobalCategories {
		if g == category {
			return Global(category)
		}
	}
	return TopicScoped(topicID, category)
}

// IsGlobal reports whether the namespace is shared across topics.
func (n Namespace) IsGlobal() bool { return n.global }

// Category returns the attribute the namespace colors.
func (n Namespace) Category() string { return n.category }

// Set returns the name the mapping is stored under.
func (n Namespace) Set() string {
	if n.global {
		return n.category
	}
	return fmt.Sprintf("topic_%d_%s", n.topicID, n.category)
}

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex renders the color as six lowercase hex digits.
func (c RGB) Hex() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses "rrggbb", with or without a leading '#'.
func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// palette holds the colors handed out to new category values.
var palette = []string{
	"1f77b4", "ff7f0e", "2ca02c", "d62728", "9467bd",
	"8c564b", "e377c2", "7f7f7f", "bcbd22", "17becf",
	"aec7e8", "ffbb78", "98df8a", "ff9896", "c5b0d5",
	"c49c94", "f7b6d2", "c7c7c7", "dbdb8d", "9edae5",
}

// partisanColors pins the partisan spectrum to a blue-to-red scale.
var partisanColors = map[string]string{
	"left":         "1f3bb4",
	"center_left":  "9aa8e8",
	"center":       "8c8c8c",
	"center_right": "f0a0a0",
	"right":        "c8102e",
	"null":         "dddddd",
}

// Store persists color assignments. AssignColor keeps the first color
// stored for a key and returns whichever color is now stored.
type Store interface {
	ColorSet(set string) (map[string]string, error)
	AssignColor(set, key, color string) (string, error)
}

// Assigner hands out colors that stay stable across calls and runs.
type Assigner struct {
	store Store
	mu    sync.Mutex
}

// NewAssigner creates an assigner backed by store.
func NewAssigner(store Store) *Assigner {
	return &Assigner{store: store}
}

// ColorFor returns the color of key within ns. Partisan categories use a fixed
// scale; any other key gets its stored color or, failing that, the first
// unused palette color starting from a hash of the key.
func (a *Assigner) ColorFor(ns Namespace, key string) (RGB, error) {
	if strings.HasPrefix(ns.category, "partisan") {
		if hex, ok := partisanColors[normalizeKey(key)]; ok {
			return ParseHex(hex)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	set, err := a.store.ColorSet(ns.Set())
	if err != nil {
		return RGB{}, fmt.Errorf("loading color set %s: %w", ns.Set(), err)
	}
	if hex, ok := set[key]; ok {
		return ParseHex(hex)
	}

	used := make(map[string]bool, len(set))
	for _, hex := range set {
		used[hex] = true
	}
	start := int(hashKey(key) % uint32(len(palette)))
	choice := palette[start]
	for i := range palette {
		cand := palette[(start+i)%len(palette)]
		if !used[cand] {
			choice = cand
			break
		}
	}

	stored, err := a.store.AssignColor(ns.Set(), key, choice)
	if err != nil {
		return RGB{}, fmt.Errorf("storing color for %s/%s: %w", ns.Set(), key, err)
	}
	return ParseHex(stored)
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "-", "_")
	return strings.ReplaceAll(key, " ", "_")
}

func hashKey(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}
