package graph

import (
	"math"
	"sort"

	"github.com/TobiSchelling/topicmap/internal/database"
)

// Edge is a weighted directed medium-to-medium edge.
type Edge struct {
	Source int64
	Target int64
	Weight int
}

// SelectSources returns the top n media by media_inlink_count, skipping
// excluded ids. Ties fall back to inlink_count, then to the lower id.
// n <= 0 keeps everything.
func SelectSources(counts []database.MediumLinkCount, n int, exclude map[int64]bool) []database.MediumLinkCount {
	out := make([]database.MediumLinkCount, 0, len(counts))
	for _, c := range counts {
		if !exclude[c.MediumID] {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MediaInlinkCount != b.MediaInlinkCount {
			return a.MediaInlinkCount > b.MediaInlinkCount
		}
		if a.InlinkCount != b.InlinkCount {
			return a.InlinkCount > b.InlinkCount
		}
		return a.MediumID < b.MediumID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// BuildEdges turns medium links into edges between selected media. With
// maxPerSource > 0 each source keeps only its top outgoing edges, ranked by
// weight, then by the target's inlink count, then by target id.
func BuildEdges(links []database.MediumLink, selected map[int64]bool, inlinks map[int64]int, maxPerSource int) []Edge {
	bySource := make(map[int64][]Edge)
	for _, l := range links {
		if l.SourceMediumID == l.RefMediumID {
			continue
		}
		if !selected[l.SourceMediumID] || !selected[l.RefMediumID] {
			continue
		}
		bySource[l.SourceMediumID] = append(bySource[l.SourceMediumID],
			Edge{Source: l.SourceMediumID, Target: l.RefMediumID, Weight: l.LinkCount})
	}

	sources := make([]int64, 0, len(bySource))
	for id := range bySource {
		sources = append(sources, id)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	var edges []Edge
	for _, src := range sources {
		out := bySource[src]
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.Weight != b.Weight {
				return a.Weight > b.Weight
			}
			if inlinks[a.Target] != inlinks[b.Target] {
				return inlinks[a.Target] > inlinks[b.Target]
			}
			return a.Target < b.Target
		})
		if maxPerSource > 0 && len(out) > maxPerSource {
			out = out[:maxPerSource]
		}
		edges = append(edges, out...)
	}
	return edges
}

// GiantComponent keeps the largest connected component of the undirected
// view of nodes and edges. Components are ranked by edge count, then node
// count; remaining ties go to the component holding the lowest node id.
func GiantComponent(nodes []int64, edges []Edge) ([]int64, []Edge) {
	if len(nodes) == 0 {
		return nil, nil
	}
	uf := newUnionFind()
	for _, n := range nodes {
		uf.add(n)
	}
	for _, e := range edges {
		uf.add(e.Source)
		uf.add(e.Target)
		uf.union(e.Source, e.Target)
	}

	size := make(map[int64]int)
	minID := make(map[int64]int64)
	for n := range uf.parent {
		root := uf.find(n)
		size[root]++
		if m, ok := minID[root]; !ok || n < m {
			minID[root] = n
		}
	}

	edgeCount := make(map[int64]int)
	for _, e := range edges {
		edgeCount[uf.find(e.Source)]++
	}

	var best int64
	found := false
	for root := range size {
		if !found || larger(root, best, edgeCount, size, minID) {
			best, found = root, true
		}
	}

	var keptNodes []int64
	for n := range uf.parent {
		if uf.find(n) == best {
			keptNodes = append(keptNodes, n)
		}
	}
	sort.Slice(keptNodes, func(i, j int) bool { return keptNodes[i] < keptNodes[j] })

	var keptEdges []Edge
	for _, e := range edges {
		if uf.find(e.Source) == best && uf.find(e.Target) == best {
			keptEdges = append(keptEdges, e)
		}
	}
	return keptNodes, keptEdges
}

func larger(a, b int64, edgeCount, size map[int64]int, minID map[int64]int64) bool {
	if edgeCount[a] != edgeCount[b] {
		return edgeCount[a] > edgeCount[b]
	}
	if size[a] != size[b] {
		return size[a] > size[b]
	}
	return minID[a] < minID[b]
}

type unionFind struct {
	parent map[int64]int64
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[int64]int64)}
}

func (u *unionFind) add(n int64) {
	if _, ok := u.parent[n]; !ok {
		u.parent[n] = n
	}
}

func (u *unionFind) find(n int64) int64 {
	for u.parent[n] != n {
		u.parent[n] = u.parent[u.parent[n]]
		n = u.parent[n]
	}
	return n
}

func (u *unionFind) union(a, b int64) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Lower root id wins so roots are stable across runs.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}

// ScaleSizes maps inlink counts to node sizes. Each count becomes count+1 and
// is scaled so the largest lands exactly on maxSize. A size that would fall
// below minSize is floored to an integer plus one, then raised to minSize.
func ScaleSizes(inlinks []int, minSize, maxSize float64) []float64 {
	sizes := make([]float64, len(inlinks))
	if len(inlinks) == 0 {
		return sizes
	}
	maxRaw := 0
	for _, n := range inlinks {
		if n+1 > maxRaw {
			maxRaw = n + 1
		}
	}
	scale := maxSize / float64(maxRaw)
	for i, n := range inlinks {
		s := float64(n+1) * scale
		if s < minSize {
			s = math.Floor(s) + 1
			if s < minSize {
				s = minSize
			}
		}
		sizes[i] = s
	}
	return sizes
}
