package database

import (
	"fmt"
	"sort"
	"time"
)

// Topic is a research subject with a bounded collection period.
type Topic struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsSocial  bool
	BotPolicy string // "no_bots", "only_bots" or "all"
	Notes     *string
	CreatedAt *string
}

// TopicDateRange is a custom timespan window configured for a topic.
type TopicDateRange struct {
	ID        int64
	TopicID   int64
	StartDate time.Time
	EndDate   time.Time
}

// Medium is a content source owning stories.
type Medium struct {
	ID   int64
	Name string
	URL  string
}

// Story is a content item collected for a topic.
type Story struct {
	ID          int64
	MediumID    int64
	URL         string
	Title       string
	PublishDate time.Time // zero when unknown
	Undateable  bool
	Syndicated  bool
}

// Dateable reports whether the story's own date may place it in a timespan.
func (s Story) Dateable() bool {
	return !s.Undateable && !s.PublishDate.IsZero()
}

// Link is a directed reference from one topic story to another.
type Link struct {
	SourceStoryID int64
	RefStoryID    int64
}

// Tweet associates a posted tweet with the story it shares.
type Tweet struct {
	ID             int64
	TopicID        int64
	StoryID        int64
	UserHandle     string
	PublishDate    time.Time
	UserTweetCount int
	UserCreatedAt  time.Time
}

// AccountAgeDays is the age of the posting account when the tweet was posted.
func (t Tweet) AccountAgeDays() float64 {
	if t.UserCreatedAt.IsZero() {
		return 0
	}
	return t.PublishDate.Sub(t.UserCreatedAt).Hours() / 24
}

// FocalSet groups foci of one topic.
type FocalSet struct {
	ID      int64
	TopicID int64
	Name    string
}

// Focus is a named query filter applied to a timespan.
type Focus struct {
	ID           int64
	FocalSetID   int64
	FocalSetName string
	Name         string
	Query        string
}

// Snapshot is one computation run over a topic.
type Snapshot struct {
	ID            int64
	TopicID       int64
	SnapshotDate  string
	State         string
	Message       *string
	TimespanCount int
}

// Snapshot states.
const (
	SnapshotRunning   = "running"
	SnapshotCompleted = "completed"
	SnapshotError     = "error"
)

// TimespanKey is the identity of a timespan within a snapshot.
type TimespanKey struct {
	SnapshotID int64
	Period     string
	StartDate  time.Time
	EndDate    time.Time
	FocusID    int64 // 0 when no focus applies
}

func (k TimespanKey) String() string {
	s := fmt.Sprintf("snapshot=%d period=%s %s..%s", k.SnapshotID, k.Period,
		k.StartDate.Format(dateLayout), k.EndDate.Format(dateLayout))
	if k.FocusID != 0 {
		s += fmt.Sprintf(" focus=%d", k.FocusID)
	}
	return s
}

// Timespan is a date-windowed, optionally focused slice of a snapshot.
type Timespan struct {
	ID              int64
	SnapshotID      int64
	Period          string
	StartDate       time.Time
	EndDate         time.Time
	FocusID         int64
	StoryCount      int
	StoryLinkCount  int
	MediumCount     int
	MediumLinkCount int
	TweetCount      int
	State           string
}

// Key returns the timespan's identity tuple.
func (t Timespan) Key() TimespanKey {
	return TimespanKey{
		SnapshotID: t.SnapshotID,
		Period:     t.Period,
		StartDate:  t.StartDate,
		EndDate:    t.EndDate,
		FocusID:    t.FocusID,
	}
}

// Timespan states.
const (
	TimespanPending   = "pending"
	TimespanCompleted = "completed"
)

// StoryLink is a story-to-story edge inside one timespan.
type StoryLink struct {
	SourceStoryID int64
	RefStoryID    int64
}

// StoryLinkCount holds per-story link and tweet counts for a timespan.
type StoryLinkCount struct {
	StoryID              int64
	MediaInlinkCount     int
	InlinkCount          int
	OutlinkCount         int
	SimpleTweetCount     int
	NormalizedTweetCount float64
}

// MediumLinkCount holds per-medium roll-ups for a timespan.
type MediumLinkCount struct {
	MediumID             int64
	MediaInlinkCount     int
	InlinkCount          int
	OutlinkCount         int
	StoryCount           int
	SimpleTweetCount     int
	NormalizedTweetCount float64
}

// MediumLink is a weighted medium-to-medium edge for a timespan.
type MediumLink struct {
	SourceMediumID int64
	RefMediumID    int64
	LinkCount      int
}

// TimespanAggregates is everything derived for one timespan.
type TimespanAggregates struct {
	StoryLinks   []StoryLink
	StoryCounts  []StoryLinkCount
	MediumCounts []MediumLinkCount
	MediumLinks  []MediumLink
	TweetCount   int
}

// MediumRow joins a medium with its counts for tabular export.
type MediumRow struct {
	Medium
	MediumLinkCount
	Tags map[string]string
}

// Corpus is everything one topic has collected, loaded in a single read.
type Corpus struct {
	Topic   Topic
	Stories map[int64]Story
	Media   map[int64]Medium
	Links   []Link
	Tweets  []Tweet
}

// StoryIDs returns all story ids in ascending order.
func (c *Corpus) StoryIDs() []int64 {
	ids := make([]int64, 0, len(c.Stories))
	for id := range c.Stories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FilterTweets returns a copy of the corpus keeping only tweets for which
// keep returns true. Stories, media and links are shared.
func (c *Corpus) FilterTweets(keep func(Tweet) bool) *Corpus {
	out := *c
	out.Tweets = make([]Tweet, 0, len(c.Tweets))
	for _, t := range c.Tweets {
		if keep(t) {
			out.Tweets = append(out.Tweets, t)
		}
	}
	return &out
}

// Stats contains aggregate database statistics.
type Stats struct {
	Topics    int
	Media     int
	Stories   int
	Links     int
	Tweets    int
	Snapshots int
	Timespans int
	Foci      int
}
