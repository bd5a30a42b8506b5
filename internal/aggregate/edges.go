package aggregate

import (
	"sort"

	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/period"
)

// EdgeBuilder derives the story-to-story edges of a timespan.
type EdgeBuilder interface {
	Name() string
	Edges(c *database.Corpus, members map[int64]bool, w period.Window) []database.StoryLink
}

// EdgeBuilderFor picks the edge strategy for a topic.
func EdgeBuilderFor(topic database.Topic) EdgeBuilder {
	if topic.IsSocial {
		return CoShareEdges{}
	}
	return LinkEdges{}
}

// LinkEdges keeps topic links between member stories of different media.
// Syndicated copies are left out on either end.
type LinkEdges struct{}

func (LinkEdges) Name() string { return "links" }

func (LinkEdges) Edges(c *database.Corpus, members map[int64]bool, _ period.Window) []database.StoryLink {
	seen := make(map[database.StoryLink]bool)
	for _, l := range c.Links {
		if !members[l.SourceStoryID] || !members[l.RefStoryID] {
			continue
		}
		src, ok1 := c.Stories[l.SourceStoryID]
		ref, ok2 := c.Stories[l.RefStoryID]
		if !ok1 || !ok2 || src.MediumID == ref.MediumID {
			continue
		}
		if src.Syndicated || ref.Syndicated {
			continue
		}
		seen[database.StoryLink{SourceStoryID: l.SourceStoryID, RefStoryID: l.RefStoryID}] = true
	}
	return sortedEdges(seen)
}

// CoShareEdges links two stories of different media whenever one user
// tweeted both on the same calendar day.
type CoShareEdges struct{}

func (CoShareEdges) Name() string { return "co-share" }

func (CoShareEdges) Edges(c *database.Corpus, members map[int64]bool, w period.Window) []database.StoryLink {
	type userDay struct {
		user string
		day  string
	}
	groups := make(map[userDay]map[int64]bool)
	for _, t := range tweetsInScope(c, members, w) {
		k := userDay{user: t.UserHandle, day: t.PublishDate.UTC().Format("2006-01-02")}
		if groups[k] == nil {
			groups[k] = make(map[int64]bool)
		}
		groups[k][t.StoryID] = true
	}

	seen := make(map[database.StoryLink]bool)
	for _, stories := range groups {
		if len(stories) < 2 {
			continue
		}
		for a := range stories {
			for b := range stories {
				if a == b || c.Stories[a].MediumID == c.Stories[b].MediumID {
					continue
				}
				seen[database.StoryLink{SourceStoryID: a, RefStoryID: b}] = true
			}
		}
	}
	return sortedEdges(seen)
}

// tweetsInScope returns tweets of member stories posted inside w.
func tweetsInScope(c *database.Corpus, members map[int64]bool, w period.Window) []database.Tweet {
	var out []database.Tweet
	for _, t := range c.Tweets {
		if members[t.StoryID] && w.Contains(t.PublishDate) {
			out = append(out, t)
		}
	}
	return out
}

func sortedEdges(set map[database.StoryLink]bool) []database.StoryLink {
	edges := make([]database.StoryLink, 0, len(set))
	for e := range set {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SourceStoryID != edges[j].SourceStoryID {
			return edges[i].SourceStoryID < edges[j].SourceStoryID
		}
		return edges[i].RefStoryID < edges[j].RefStoryID
	})
	return edges
}
