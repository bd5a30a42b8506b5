package aggregate

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/period"
)

var january = period.Window{
	Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
}

func jan(d, h int) time.Time {
	return time.Date(2020, 1, d, h, 0, 0, 0, time.UTC)
}

func linkCorpus() *database.Corpus {
	return &database.Corpus{
		Stories: map[int64]database.Story{
			1: {ID: 1, MediumID: 10},
			2: {ID: 2, MediumID: 20},
			3: {ID: 3, MediumID: 20},
			4: {ID: 4, MediumID: 30},
			5: {ID: 5, MediumID: 10, Syndicated: true},
		},
		Links: []database.Link{
			{SourceStoryID: 1, RefStoryID: 2},
			{SourceStoryID: 1, RefStoryID: 3},
			{SourceStoryID: 1, RefStoryID: 4},
			{SourceStoryID: 4, RefStoryID: 2},
			{SourceStoryID: 2, RefStoryID: 3}, // same medium
			{SourceStoryID: 5, RefStoryID: 2}, // syndicated
		},
	}
}

func all(ids ...int64) map[int64]bool {
	m := make(map[int64]bool)
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func storyCount(t *testing.T, agg *database.TimespanAggregates, id int64) database.StoryLinkCount {
	t.Helper()
	for _, sc := range agg.StoryCounts {
		if sc.StoryID == id {
			return sc
		}
	}
	t.Fatalf("no counts for story %d", id)
	return database.StoryLinkCount{}
}

func mediumCount(t *testing.T, agg *database.TimespanAggregates, id int64) database.MediumLinkCount {
	t.Helper()
	for _, mc := range agg.MediumCounts {
		if mc.MediumID == id {
			return mc
		}
	}
	t.Fatalf("no counts for medium %d", id)
	return database.MediumLinkCount{}
}

func TestLinkEdgesSkipSameMediumAndSyndicated(t *testing.T) {
	edges := LinkEdges{}.Edges(linkCorpus(), all(1, 2, 3, 4, 5), january)
	want := []database.StoryLink{
		{SourceStoryID: 1, RefStoryID: 2},
		{SourceStoryID: 1, RefStoryID: 3},
		{SourceStoryID: 1, RefStoryID: 4},
		{SourceStoryID: 4, RefStoryID: 2},
	}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("expected %v, got %v", want, edges)
	}
}

func TestLinkEdgesNeedBothEndpointsInScope(t *testing.T) {
	edges := LinkEdges{}.Edges(linkCorpus(), all(1, 2), january)
	if len(edges) != 1 || edges[0].RefStoryID != 2 {
		t.Errorf("expected only 1->2, got %v", edges)
	}
}

func TestAggregateCounts(t *testing.T) {
	agg := Aggregate(linkCorpus(), all(1, 2, 3, 4, 5), january, LinkEdges{})

	if len(agg.StoryCounts) != 5 {
		t.Fatalf("expected a row per member story, got %d", len(agg.StoryCounts))
	}

	s2 := storyCount(t, agg, 2)
	if s2.InlinkCount != 2 || s2.MediaInlinkCount != 2 || s2.OutlinkCount != 0 {
		t.Errorf("unexpected story 2 counts %+v", s2)
	}
	s1 := storyCount(t, agg, 1)
	if s1.OutlinkCount != 3 || s1.InlinkCount != 0 {
		t.Errorf("unexpected story 1 counts %+v", s1)
	}
	if s3 := storyCount(t, agg, 3); s3.InlinkCount != 1 {
		t.Errorf("same-medium link was counted: %+v", s3)
	}

	m10 := mediumCount(t, agg, 10)
	if m10.StoryCount != 2 || m10.OutlinkCount != 3 || m10.MediaInlinkCount != 0 {
		t.Errorf("unexpected medium 10 counts %+v", m10)
	}
	m20 := mediumCount(t, agg, 20)
	if m20.StoryCount != 2 || m20.InlinkCount != 3 || m20.MediaInlinkCount != 2 {
		t.Errorf("unexpected medium 20 counts %+v", m20)
	}

	wantLinks := []database.MediumLink{
		{SourceMediumID: 10, RefMediumID: 20, LinkCount: 2},
		{SourceMediumID: 10, RefMediumID: 30, LinkCount: 1},
		{SourceMediumID: 30, RefMediumID: 20, LinkCount: 1},
	}
	if !reflect.DeepEqual(agg.MediumLinks, wantLinks) {
		t.Errorf("expected medium links %v, got %v", wantLinks, agg.MediumLinks)
	}
}

func TestAggregateOnlyReferencesMembers(t *testing.T) {
	agg := Aggregate(linkCorpus(), all(1, 2), january, LinkEdges{})
	for _, sc := range agg.StoryCounts {
		if sc.StoryID != 1 && sc.StoryID != 2 {
			t.Errorf("non-member story %d in counts", sc.StoryID)
		}
	}
	for _, mc := range agg.MediumCounts {
		if mc.MediumID != 10 && mc.MediumID != 20 {
			t.Errorf("non-member medium %d in counts", mc.MediumID)
		}
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	c := socialCorpus()
	a := Aggregate(c, all(1, 2, 3), january, CoShareEdges{})
	b := Aggregate(c, all(1, 2, 3), january, CoShareEdges{})
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical aggregates for identical input")
	}
}

func socialCorpus() *database.Corpus {
	return &database.Corpus{
		Topic: database.Topic{IsSocial: true},
		Stories: map[int64]database.Story{
			1: {ID: 1, MediumID: 10},
			2: {ID: 2, MediumID: 20},
			3: {ID: 3, MediumID: 10},
		},
		Tweets: []database.Tweet{
			{UserHandle: "u1", StoryID: 1, PublishDate: jan(5, 10)},
			{UserHandle: "u1", StoryID: 2, PublishDate: jan(5, 18)},
			{UserHandle: "u2", StoryID: 1, PublishDate: jan(5, 9)},
			{UserHandle: "u2", StoryID: 2, PublishDate: jan(6, 9)},
			{UserHandle: "u3", StoryID: 3, PublishDate: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestCoShareEdges(t *testing.T) {
	edges := CoShareEdges{}.Edges(socialCorpus(), all(1, 2, 3), january)
	want := []database.StoryLink{
		{SourceStoryID: 1, RefStoryID: 2},
		{SourceStoryID: 2, RefStoryID: 1},
	}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("expected %v, got %v", want, edges)
	}
}

func TestTweetMetrics(t *testing.T) {
	agg := Aggregate(socialCorpus(), all(1, 2, 3), january, CoShareEdges{})

	if agg.TweetCount != 4 {
		t.Errorf("expected 4 tweets in window, got %d", agg.TweetCount)
	}
	s1 := storyCount(t, agg, 1)
	if s1.SimpleTweetCount != 2 {
		t.Errorf("expected 2 distinct users, got %d", s1.SimpleTweetCount)
	}
	// Each user: (1+1)/(2+1) for story 1.
	if math.Abs(s1.NormalizedTweetCount-4.0/3.0) > 1e-9 {
		t.Errorf("expected normalized 4/3, got %f", s1.NormalizedTweetCount)
	}
	if s3 := storyCount(t, agg, 3); s3.SimpleTweetCount != 0 {
		t.Errorf("tweet outside the window was counted: %+v", s3)
	}
	m10 := mediumCount(t, agg, 10)
	if m10.SimpleTweetCount != 2 || m10.MediaInlinkCount != 1 {
		t.Errorf("unexpected medium 10 counts %+v", m10)
	}
}

func TestEdgeBuilderFor(t *testing.T) {
	if EdgeBuilderFor(database.Topic{IsSocial: true}).Name() != "co-share" {
		t.Error("expected co-share edges for social topics")
	}
	if EdgeBuilderFor(database.Topic{}).Name() != "links" {
		t.Error("expected link edges for other topics")
	}
}
