// Package membership decides which stories belong to a timespan.
package membership

import (
	"context"
	"log"
	"sort"

	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/failure"
	"github.com/TobiSchelling/topicmap/internal/period"
	"github.com/TobiSchelling/topicmap/internal/search"
)

// Strategy computes the base membership set of a window.
type Strategy interface {
	Name() string
	Members(c *database.Corpus, w period.Window) map[int64]bool
}

// OverallStrategy puts every story of the topic in scope, ignoring dates.
type OverallStrategy struct{}

func (OverallStrategy) Name() string { return "overall" }

func (OverallStrategy) Members(c *database.Corpus, _ period.Window) map[int64]bool {
	members := make(map[int64]bool, len(c.Stories))
	for id := range c.Stories {
		members[id] = true
	}
	return members
}

// LinkDateStrategy selects stories dated inside the window, plus stories
// linked to by a story dated inside the window. Undateable stories never
// qualify by their own date.
type LinkDateStrategy struct{}

func (LinkDateStrategy) Name() string { return "link_date" }

func (LinkDateStrategy) Members(c *database.Corpus, w period.Window) map[int64]bool {
	members := make(map[int64]bool)
	inWindow := func(id int64) bool {
		s, ok := c.Stories[id]
		return ok && s.Dateable() && w.ContainsInclusive(s.PublishDate)
	}
	for id := range c.Stories {
		if inWindow(id) {
			members[id] = true
		}
	}
	for _, l := range c.Links {
		if _, ok := c.Stories[l.RefStoryID]; !ok {
			continue
		}
		if inWindow(l.SourceStoryID) {
			members[l.RefStoryID] = true
		}
	}
	return members
}

// TweetStrategy selects stories shared by at least one tweet posted inside
// the window.
type TweetStrategy struct{}

func (TweetStrategy) Name() string { return "tweet" }

func (TweetStrategy) Members(c *database.Corpus, w period.Window) map[int64]bool {
	members := make(map[int64]bool)
	for _, t := range c.Tweets {
		if _, ok := c.Stories[t.StoryID]; !ok {
			continue
		}
		if w.Contains(t.PublishDate) {
			members[t.StoryID] = true
		}
	}
	return members
}

// StrategyFor picks the membership strategy for a topic and period kind.
func StrategyFor(topic database.Topic, kind period.Kind) Strategy {
	switch {
	case kind == period.Overall:
		return OverallStrategy{}
	case topic.IsSocial:
		return TweetStrategy{}
	default:
		return LinkDateStrategy{}
	}
}

// Focus is the query filter of a focused timespan.
type Focus struct {
	ID    int64
	Name  string
	Query string
}

// Resolver resolves timespan membership, restricting focused timespans
// through a search index.
type Resolver struct {
	Searcher search.Searcher
	Policy   search.RetryPolicy
}

// Resolve returns the sorted story IDs in scope for window. A nil focus means
// no restriction. The focus query is validated before any work is done.
func (r *Resolver) Resolve(ctx context.Context, c *database.Corpus, kind period.Kind, w period.Window, focus *Focus) ([]int64, error) {
	if focus != nil {
		if err := search.ValidateQuery(focus.Query); err != nil {
			return nil, err
		}
	}

	strategy := StrategyFor(c.Topic, kind)
	members := strategy.Members(c, w)
	ids := sortedIDs(members)

	if focus == nil || len(ids) == 0 {
		return ids, nil
	}
	if r.Searcher == nil {
		return nil, failure.Configf("search.url", "focus %q needs a search index but none is configured", focus.Name)
	}

	restricted, err := search.Restrict(ctx, r.Searcher, focus.Query, ids, r.Policy)
	if err != nil {
		return nil, err
	}
	log.Printf("Focus %q kept %d of %d stories (%s, %s)", focus.Name, len(restricted), len(ids), strategy.Name(), w)
	return restricted, nil
}

// Set converts a sorted id list back into a lookup set.
func Set(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
