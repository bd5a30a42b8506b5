package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/topicmap/internal/config"
	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/failure"
	"github.com/TobiSchelling/topicmap/internal/graph"
	"github.com/TobiSchelling/topicmap/internal/period"
)

type stubSearcher struct {
	match []int64
	err   error
	calls int
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]int64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.match, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var january = period.Window{Start: day(2020, 1, 1), End: day(2020, 2, 1)}

type fixture struct {
	db      *database.DB
	cfg     *config.Config
	topicID int64
	stories []int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Snapshot.Periods = []string{"overall", "monthly", "weekly"}
	cfg.Snapshot.Concurrency = 2
	cfg.Search.Backoff = time.Millisecond
	cfg.Search.MaxBackoff = time.Millisecond
	cfg.Search.MaxRetries = 1

	topicID, err := db.InsertTopic("election", day(2020, 1, 1), day(2020, 2, 1), false, "all")
	if err != nil {
		t.Fatalf("InsertTopic: %v", err)
	}

	f := &fixture{db: db, cfg: cfg, topicID: topicID}
	media := make([]int64, 3)
	for i, name := range []string{"alpha", "beta", "gamma"} {
		media[i], _ = db.UpsertMedium(name, "https://"+name+".example")
	}
	db.SetMediumTag(media[0], "partisan_code", "left")

	dates := []time.Time{day(2020, 1, 3), day(2020, 1, 10), day(2020, 1, 20), day(2019, 12, 1)}
	for i, d := range dates {
		id, err := db.InsertStory(topicID, database.Story{
			MediumID:    media[i%3],
			URL:         "https://example.com/story/" + string(rune('a'+i)),
			Title:       "story",
			PublishDate: d,
		})
		if err != nil {
			t.Fatalf("InsertStory: %v", err)
		}
		f.stories = append(f.stories, id)
	}
	db.InsertTopicLink(topicID, f.stories[0], f.stories[1])
	db.InsertTopicLink(topicID, f.stories[1], f.stories[2])
	db.InsertTopicLink(topicID, f.stories[2], f.stories[3])
	return f
}

func TestComputeTimespanIsIdempotent(t *testing.T) {
	f := setup(t)
	p := NewWith(f.cfg, f.db, &stubSearcher{}, nil)
	snap, _ := f.db.CreateSnapshot(f.topicID)

	ts1, err := p.ComputeTimespan(context.Background(), snap, period.Monthly, january, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts2, err := p.ComputeTimespan(context.Background(), snap, period.Monthly, january, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts1.ID != ts2.ID {
		t.Errorf("expected same timespan, got %d and %d", ts1.ID, ts2.ID)
	}
	if ts1.StoryCount != 4 {
		t.Errorf("expected 4 stories (three dated, one linked), got %d", ts1.StoryCount)
	}
	if ts1.StoryLinkCount != 3 {
		t.Errorf("expected 3 story links, got %d", ts1.StoryLinkCount)
	}

	stories, media, _ := f.db.CountTimespanRows(ts1.ID)
	if stories != ts1.StoryCount || media != ts1.MediumCount {
		t.Errorf("aggregate rows duplicated: %d stories, %d media", stories, media)
	}
	all, _ := f.db.GetTimespansForSnapshot(snap)
	if len(all) != 1 {
		t.Errorf("expected one timespan row, got %d", len(all))
	}
}

func TestComputeTimespanWithFocus(t *testing.T) {
	f := setup(t)
	s := &stubSearcher{match: []int64{f.stories[0], f.stories[1]}}
	p := NewWith(f.cfg, f.db, s, nil)
	snap, _ := f.db.CreateSnapshot(f.topicID)
	fs, _ := f.db.InsertFocalSet(f.topicID, "candidates")
	fid, _ := f.db.InsertFocus(fs, "sanders", "sanders")
	focus, _ := f.db.GetFocus(fid)

	ts, err := p.ComputeTimespan(context.Background(), snap, period.Overall, january, focus)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.FocusID != fid {
		t.Errorf("expected focus id %d, got %d", fid, ts.FocusID)
	}
	if ts.StoryCount != 2 || ts.StoryLinkCount != 1 {
		t.Errorf("expected 2 stories and 1 link, got %+v", ts)
	}
	if s.calls != 1 {
		t.Errorf("expected one search call, got %d", s.calls)
	}
}

func TestRunSnapshot(t *testing.T) {
	f := setup(t)
	fs, _ := f.db.InsertFocalSet(f.topicID, "candidates")
	f.db.InsertFocus(fs, "sanders", "sanders")
	s := &stubSearcher{match: f.stories}
	p := NewWith(f.cfg, f.db, s, nil)

	r, err := p.RunSnapshot(context.Background(), f.topicID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// overall 1 + monthly 1 + weekly 5 windows, each unfocused and focused.
	timespans, _ := f.db.GetTimespansForSnapshot(r.SnapshotID)
	if len(timespans) != 14 {
		t.Errorf("expected 14 timespans, got %d", len(timespans))
	}
	snap, _ := f.db.GetSnapshot(r.SnapshotID)
	if snap.State != database.SnapshotCompleted || snap.TimespanCount != 14 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	for _, ts := range timespans {
		if ts.State != database.TimespanCompleted {
			t.Errorf("timespan %d left %s", ts.ID, ts.State)
		}
	}
	if len(r.Steps) != 4 {
		t.Errorf("expected load step plus one per period, got %d", len(r.Steps))
	}
}

func TestRunSnapshotRejectsBlankFocusBeforeWork(t *testing.T) {
	f := setup(t)
	fs, _ := f.db.InsertFocalSet(f.topicID, "candidates")
	f.db.InsertFocus(fs, "empty", "   ")
	s := &stubSearcher{}
	p := NewWith(f.cfg, f.db, s, nil)

	_, err := p.RunSnapshot(context.Background(), f.topicID)
	var ce *failure.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	snaps, _ := f.db.GetSnapshots(f.topicID)
	if len(snaps) != 0 {
		t.Error("expected no snapshot to be created")
	}
	if s.calls != 0 {
		t.Error("expected no search calls")
	}
}

func TestRunSnapshotFailsWhenSearchKeepsFailing(t *testing.T) {
	f := setup(t)
	fs, _ := f.db.InsertFocalSet(f.topicID, "candidates")
	f.db.InsertFocus(fs, "sanders", "sanders")
	s := &stubSearcher{err: &failure.TransientError{Op: "search", Err: errors.New("down")}}
	p := NewWith(f.cfg, f.db, s, nil)

	r, err := p.RunSnapshot(context.Background(), f.topicID)
	var fe *failure.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if fe.Timespan == "" {
		t.Error("expected the failing timespan to be named")
	}
	snap, _ := f.db.GetSnapshot(r.SnapshotID)
	if snap == nil || snap.State != database.SnapshotError || snap.Message == nil {
		t.Errorf("expected snapshot marked as error, got %+v", snap)
	}
}

func TestBotPolicyFiltersTweets(t *testing.T) {
	f := setup(t)
	social, _ := f.db.InsertTopic("social", day(2020, 1, 1), day(2020, 2, 1), true, "no_bots")
	m, _ := f.db.UpsertMedium("delta", "https://delta.example")
	story, _ := f.db.InsertStory(social, database.Story{MediumID: m, URL: "https://delta.example/1", Title: "s", PublishDate: day(2020, 1, 2)})

	// 600 tweets over a 2 day old account is a bot; 10 over a year is not.
	f.db.InsertTweet(database.Tweet{TopicID: social, StoryID: story, UserHandle: "bot",
		PublishDate: day(2020, 1, 5), UserTweetCount: 600, UserCreatedAt: day(2020, 1, 3)})
	f.db.InsertTweet(database.Tweet{TopicID: social, StoryID: story, UserHandle: "human",
		PublishDate: day(2020, 1, 5), UserTweetCount: 10, UserCreatedAt: day(2019, 1, 1)})

	p := NewWith(f.cfg, f.db, &stubSearcher{}, nil)
	snap, _ := f.db.CreateSnapshot(social)
	ts, err := p.ComputeTimespan(context.Background(), snap, period.Monthly, january, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.TweetCount != 1 {
		t.Errorf("expected bot tweet to be filtered, got %d tweets", ts.TweetCount)
	}
	if ts.StoryCount != 1 {
		t.Errorf("expected story shared by the human to be in scope, got %d", ts.StoryCount)
	}
}

func TestBotPolicyIgnoredForLinkTopics(t *testing.T) {
	f := setup(t)
	topic, _ := f.db.InsertTopic("links", day(2020, 1, 1), day(2020, 2, 1), false, "no_bots")
	m, _ := f.db.UpsertMedium("delta", "https://delta.example")
	story, _ := f.db.InsertStory(topic, database.Story{MediumID: m, URL: "https://delta.example/1", Title: "s", PublishDate: day(2020, 1, 2)})
	f.db.InsertTweet(database.Tweet{TopicID: topic, StoryID: story, UserHandle: "bot",
		PublishDate: day(2020, 1, 5), UserTweetCount: 600, UserCreatedAt: day(2020, 1, 3)})

	p := NewWith(f.cfg, f.db, &stubSearcher{}, nil)
	snap, _ := f.db.CreateSnapshot(topic)
	ts, err := p.ComputeTimespan(context.Background(), snap, period.Monthly, january, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.TweetCount != 1 {
		t.Errorf("expected the bot's tweet kept on a non-social topic, got %d tweets", ts.TweetCount)
	}
}

func TestExports(t *testing.T) {
	f := setup(t)
	p := NewWith(f.cfg, f.db, &stubSearcher{}, nil)
	snap, _ := f.db.CreateSnapshot(f.topicID)
	ts, err := p.ComputeTimespan(context.Background(), snap, period.Monthly, january, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gexf, err := p.ExportGraph(context.Background(), ts.ID, graph.DefaultOptions())
	if err != nil {
		t.Fatalf("ExportGraph: %v", err)
	}
	if !strings.Contains(string(gexf), "election topic: monthly timespan from 2020-01-01 to 2020-02-01") {
		t.Error("expected description in graph export")
	}
	if !strings.Contains(string(gexf), `label="alpha"`) {
		t.Error("expected medium node in graph export")
	}

	var buf bytes.Buffer
	if err := p.ExportMediaTable(context.Background(), &buf, ts.ID); err != nil {
		t.Fatalf("ExportMediaTable: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 || !strings.HasSuffix(lines[0], ",partisan_code") {
		t.Errorf("unexpected media table:\n%s", buf.String())
	}

	if _, err := p.ExportGraph(context.Background(), 9999, graph.DefaultOptions()); !errors.Is(err, ErrTimespanNotFound) {
		t.Errorf("expected ErrTimespanNotFound, got %v", err)
	}
}

func TestDryRun(t *testing.T) {
	f := setup(t)
	p := NewWith(f.cfg, f.db, &stubSearcher{}, nil)
	r, err := p.DryRun(f.topicID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Steps) != 3 || !strings.Contains(r.Steps[2].Summary, "5 windows") {
		t.Errorf("unexpected dry run %+v", r.Steps)
	}
	snaps, _ := f.db.GetSnapshots(f.topicID)
	if len(snaps) != 0 {
		t.Error("dry run must not create a snapshot")
	}
}
