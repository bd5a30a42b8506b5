// Package aggregate derives a timespan's link and tweet counts from its
// membership set. Everything here is a pure function of the corpus.
package aggregate

import (
	"sort"

	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/period"
)

// Aggregate computes story links, per-story counts, per-medium roll-ups and
// medium-to-medium links for the member stories of one window.
func Aggregate(c *database.Corpus, members map[int64]bool, w period.Window, b EdgeBuilder) *database.TimespanAggregates {
	edges := b.Edges(c, members, w)

	inlinks := make(map[int64]map[int64]bool)
	outlinks := make(map[int64]map[int64]bool)
	mediaIn := make(map[int64]map[int64]bool)
	pairLinks := make(map[[2]int64]int)
	mediumIn := make(map[int64]map[int64]bool)

	for _, e := range edges {
		src := c.Stories[e.SourceStoryID]
		ref := c.Stories[e.RefStoryID]
		addTo(inlinks, e.RefStoryID, e.SourceStoryID)
		addTo(outlinks, e.SourceStoryID, e.RefStoryID)
		addTo(mediaIn, e.RefStoryID, src.MediumID)
		addTo(mediumIn, ref.MediumID, src.MediumID)
		pairLinks[[2]int64{src.MediumID, ref.MediumID}]++
	}

	tweets := tweetsInScope(c, members, w)
	simple, normalized := tweetCounts(tweets)

	agg := &database.TimespanAggregates{
		StoryLinks: edges,
		TweetCount: len(tweets),
	}

	media := make(map[int64]*database.MediumLinkCount)
	for _, id := range sortedKeys(members) {
		s, ok := c.Stories[id]
		if !ok {
			continue
		}
		sc := database.StoryLinkCount{
			StoryID:              id,
			InlinkCount:          len(inlinks[id]),
			OutlinkCount:         len(outlinks[id]),
			MediaInlinkCount:     len(mediaIn[id]),
			SimpleTweetCount:     simple[id],
			NormalizedTweetCount: normalized[id],
		}
		agg.StoryCounts = append(agg.StoryCounts, sc)

		mc := media[s.MediumID]
		if mc == nil {
			mc = &database.MediumLinkCount{MediumID: s.MediumID}
			media[s.MediumID] = mc
		}
		mc.StoryCount++
		mc.InlinkCount += sc.InlinkCount
		mc.OutlinkCount += sc.OutlinkCount
		mc.SimpleTweetCount += sc.SimpleTweetCount
		mc.NormalizedTweetCount += sc.NormalizedTweetCount
	}

	for id, mc := range media {
		mc.MediaInlinkCount = len(mediumIn[id])
	}
	ids := make([]int64, 0, len(media))
	for id := range media {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		agg.MediumCounts = append(agg.MediumCounts, *media[id])
	}

	for pair, n := range pairLinks {
		agg.MediumLinks = append(agg.MediumLinks, database.MediumLink{
			SourceMediumID: pair[0],
			RefMediumID:    pair[1],
			LinkCount:      n,
		})
	}
	sort.Slice(agg.MediumLinks, func(i, j int) bool {
		a, b := agg.MediumLinks[i], agg.MediumLinks[j]
		if a.SourceMediumID != b.SourceMediumID {
			return a.SourceMediumID < b.SourceMediumID
		}
		return a.RefMediumID < b.RefMediumID
	})

	return agg
}

// tweetCounts returns distinct posting users per story and the damped
// popularity weight: for each user, (tweets of the story + 1) over
// (tweets of any story in scope + 1), summed per story.
func tweetCounts(tweets []database.Tweet) (map[int64]int, map[int64]float64) {
	perUserStory := make(map[string]map[int64]int)
	perUser := make(map[string]int)
	for _, t := range tweets {
		if perUserStory[t.UserHandle] == nil {
			perUserStory[t.UserHandle] = make(map[int64]int)
		}
		perUserStory[t.UserHandle][t.StoryID]++
		perUser[t.UserHandle]++
	}

	simple := make(map[int64]int)
	normalized := make(map[int64]float64)
	users := make([]string, 0, len(perUser))
	for u := range perUser {
		users = append(users, u)
	}
	// Fixed summation order keeps float results identical across runs.
	sort.Strings(users)
	for _, u := range users {
		total := float64(perUser[u] + 1)
		for story, n := range perUserStory[u] {
			simple[story]++
			normalized[story] += float64(n+1) / total
		}
	}
	return simple, normalized
}

func addTo(m map[int64]map[int64]bool, key, val int64) {
	if m[key] == nil {
		m[key] = make(map[int64]bool)
	}
	m[key][val] = true
}

func sortedKeys(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id, ok := range set {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
