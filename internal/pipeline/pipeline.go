package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/topicmap/internal/aggregate"
	"github.com/TobiSchelling/topicmap/internal/botpolicy"
	"github.com/TobiSchelling/topicmap/internal/colors"
	"github.com/TobiSchelling/topicmap/internal/config"
	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/export"
	"github.com/TobiSchelling/topicmap/internal/failure"
	"github.com/TobiSchelling/topicmap/internal/graph"
	"github.com/TobiSchelling/topicmap/internal/membership"
	"github.com/TobiSchelling/topicmap/internal/metrics"
	"github.com/TobiSchelling/topicmap/internal/period"
	"github.com/TobiSchelling/topicmap/internal/search"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a snapshot run.
type Result struct {
	SnapshotID int64
	Steps      []StepResult
}

// Pipeline computes snapshots and exports their timespans.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	resolver *membership.Resolver
	exporter *graph.Exporter
}

// New creates a pipeline talking to the search index and layout service
// named in cfg.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	var searcher search.Searcher
	if c := search.NewClient(cfg.Search.URL, cfg.Search.Timeout); c.IsConfigured() {
		searcher = c
	}
	var layouter graph.Layouter
	if cfg.Layout.URL != "" {
		layouter = graph.NewLayoutClient(cfg.Layout.URL, cfg.Layout.Timeout)
	}
	return NewWith(cfg, db, searcher, layouter)
}

// NewWith creates a pipeline with explicit collaborators. A nil searcher
// makes focused timespans fail with a configuration error; a nil layouter
// exports graphs without positions.
func NewWith(cfg *config.Config, db *database.DB, searcher search.Searcher, layouter graph.Layouter) *Pipeline {
	policy := cfg.RetryPolicy()
	policy.OnRetry = func(int, error) { metrics.SearchRetry() }

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		resolver: &membership.Resolver{Searcher: searcher, Policy: policy},
		exporter: &graph.Exporter{Colors: colors.NewAssigner(db), Layout: layouter},
	}
}

// unit is one timespan to compute within a snapshot.
type unit struct {
	kind   period.Kind
	window period.Window
	focus  *database.Focus
}

// RunSnapshot creates a snapshot of a topic and computes every timespan of
// the configured period kinds, unfocused and for each focus, in parallel.
// The first fatal error cancels the remaining timespans and marks the
// snapshot as failed.
func (p *Pipeline) RunSnapshot(ctx context.Context, topicID int64) (*Result, error) {
	r := &Result{}

	topic, units, err := p.plan(topicID)
	if err != nil {
		return r, err
	}
	corpus, err := p.loadCorpus(topic)
	if err != nil {
		return r, failure.Fatal("load", "", err)
	}
	r.Steps = append(r.Steps, StepResult{
		Name: "Load",
		Summary: fmt.Sprintf("Loaded %d stories, %d links, %d tweets (bot policy %s)",
			len(corpus.Stories), len(corpus.Links), len(corpus.Tweets), topic.BotPolicy),
	})

	snapshotID, err := p.db.CreateSnapshot(topic.ID)
	if err != nil {
		return r, failure.Fatal("snapshot", "", err)
	}
	r.SnapshotID = snapshotID
	log.Printf("Snapshot %d: computing %d timespans for topic %q", snapshotID, len(units), topic.Name)

	results := make([]*database.Timespan, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Snapshot.Concurrency)
	for i, u := range units {
		g.Go(func() error {
			ts, err := p.computeTimespan(gctx, snapshotID, corpus, u.kind, u.window, u.focus)
			if err != nil {
				return err
			}
			results[i] = ts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		done := 0
		for _, ts := range results {
			if ts != nil {
				done++
			}
		}
		if ferr := p.db.FinishSnapshot(snapshotID, database.SnapshotError, err.Error(), done); ferr != nil {
			log.Printf("Warning: could not mark snapshot %d as failed: %v", snapshotID, ferr)
		}
		r.Steps = append(r.Steps, StepResult{Name: "Timespans", Err: err})
		return r, err
	}

	if err := p.db.FinishSnapshot(snapshotID, database.SnapshotCompleted, "", len(units)); err != nil {
		return r, failure.Fatal("snapshot", "", err)
	}

	for _, kind := range p.cfg.PeriodKinds() {
		var count, focused, stories int
		for i, u := range units {
			if u.kind != kind {
				continue
			}
			count++
			if u.focus != nil {
				focused++
			}
			stories += results[i].StoryCount
		}
		r.Steps = append(r.Steps, StepResult{
			Name:    string(kind),
			Summary: fmt.Sprintf("%d timespans (%d focused), %d story rows", count, focused, stories),
		})
	}
	return r, nil
}

// DryRun reports the timespans a snapshot run would compute.
func (p *Pipeline) DryRun(topicID int64) (*Result, error) {
	r := &Result{}
	_, units, err := p.plan(topicID)
	if err != nil {
		return r, err
	}
	for _, kind := range p.cfg.PeriodKinds() {
		var windows, focused int
		for _, u := range units {
			if u.kind != kind {
				continue
			}
			if u.focus == nil {
				windows++
			} else {
				focused++
			}
		}
		r.Steps = append(r.Steps, StepResult{
			Name:    string(kind),
			Summary: fmt.Sprintf("[dry-run] %d windows, %d focused timespans", windows, focused),
		})
	}
	return r, nil
}

// plan validates the topic and its foci and expands every timespan to compute.
// It does no writes, so configuration errors surface before any work starts.
func (p *Pipeline) plan(topicID int64) (*database.Topic, []unit, error) {
	topic, err := p.db.GetTopic(topicID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading topic %d: %w", topicID, err)
	}
	if topic == nil {
		return nil, nil, failure.Configf("topic", "topic %d not found", topicID)
	}
	if _, err := botpolicy.ParsePolicy(topic.BotPolicy); err != nil {
		return nil, nil, err
	}

	foci, err := p.db.GetTopicFoci(topicID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading foci: %w", err)
	}
	for _, f := range foci {
		if err := search.ValidateQuery(f.Query); err != nil {
			return nil, nil, failure.Configf("focus "+f.Name, "query must contain a non-whitespace character")
		}
	}

	ranges, err := p.db.GetTopicDateRanges(topicID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading date ranges: %w", err)
	}
	custom := make([]period.Window, len(ranges))
	for i, dr := range ranges {
		custom[i] = period.Window{Start: dr.StartDate, End: dr.EndDate}
	}

	var units []unit
	for _, kind := range p.cfg.PeriodKinds() {
		windows, err := period.Windows(kind, topic.StartDate, topic.EndDate, custom)
		if err != nil {
			return nil, nil, err
		}
		for _, w := range windows {
			units = append(units, unit{kind: kind, window: w})
			for i := range foci {
				units = append(units, unit{kind: kind, window: w, focus: &foci[i]})
			}
		}
	}
	return topic, units, nil
}

// loadCorpus reads a topic's corpus. Social-media topics also get their bot
// policy applied to tweets.
func (p *Pipeline) loadCorpus(topic *database.Topic) (*database.Corpus, error) {
	corpus, err := p.db.LoadCorpus(topic.ID)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	policy, err := botpolicy.ParsePolicy(topic.BotPolicy)
	if err != nil {
		return nil, err
	}
	if !topic.IsSocial || policy == botpolicy.All {
		return corpus, nil
	}
	filtered := corpus.FilterTweets(func(t database.Tweet) bool {
		return policy.Include(t.UserTweetCount, t.AccountAgeDays())
	})
	log.Printf("Bot policy %s kept %d of %d tweets", policy, len(filtered.Tweets), len(corpus.Tweets))
	return filtered, nil
}

// ComputeTimespan computes one timespan of a snapshot. A completed timespan
// with the same identity is returned as is.
func (p *Pipeline) ComputeTimespan(ctx context.Context, snapshotID int64, kind period.Kind, w period.Window, focus *database.Focus) (*database.Timespan, error) {
	snap, err := p.db.GetSnapshot(snapshotID)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %d: %w", snapshotID, err)
	}
	if snap == nil {
		return nil, failure.Configf("snapshot", "snapshot %d not found", snapshotID)
	}
	topic, err := p.db.GetTopic(snap.TopicID)
	if err != nil {
		return nil, fmt.Errorf("loading topic %d: %w", snap.TopicID, err)
	}
	if topic == nil {
		return nil, failure.Configf("topic", "topic %d not found", snap.TopicID)
	}
	corpus, err := p.loadCorpus(topic)
	if err != nil {
		return nil, failure.Fatal("load", "", err)
	}
	return p.computeTimespan(ctx, snapshotID, corpus, kind, w, focus)
}

func (p *Pipeline) computeTimespan(ctx context.Context, snapshotID int64, c *database.Corpus, kind period.Kind, w period.Window, focus *database.Focus) (*database.Timespan, error) {
	key := database.TimespanKey{
		SnapshotID: snapshotID,
		Period:     string(kind),
		StartDate:  w.Start,
		EndDate:    w.End,
	}
	var mf *membership.Focus
	if focus != nil {
		key.FocusID = focus.ID
		mf = &membership.Focus{ID: focus.ID, Name: focus.Name, Query: focus.Query}
	}
	id := key.String()
	started := time.Now()

	existing, err := p.db.FindTimespan(key)
	if err != nil {
		return nil, failure.Fatal("lookup", id, err)
	}
	if existing != nil && existing.State == database.TimespanCompleted {
		metrics.TimespanDone(key.Period, "reused", 0)
		return existing, nil
	}

	ids, err := p.resolver.Resolve(ctx, c, kind, w, mf)
	if err != nil {
		metrics.TimespanDone(key.Period, "error", 0)
		return nil, failure.Fatal("membership", id, err)
	}

	ts, err := p.db.EnsureTimespan(key)
	if err != nil {
		return nil, failure.Fatal("create", id, err)
	}

	agg := aggregate.Aggregate(c, membership.Set(ids), w, aggregate.EdgeBuilderFor(c.Topic))
	if err := p.db.WriteTimespanAggregates(ts.ID, agg); err != nil {
		metrics.TimespanDone(key.Period, "error", 0)
		return nil, failure.Fatal("store", id, err)
	}

	stored, err := p.verify(ts.ID, agg)
	if err != nil {
		metrics.TimespanDone(key.Period, "error", 0)
		return nil, failure.Fatal("verify", id, err)
	}

	metrics.TimespanDone(key.Period, "computed", time.Since(started))
	log.Printf("Timespan %s: %d stories, %d story links, %d media, %d medium links",
		id, stored.StoryCount, stored.StoryLinkCount, stored.MediumCount, stored.MediumLinkCount)
	return stored, nil
}

// verify re-reads a written timespan and checks it against what was written.
func (p *Pipeline) verify(timespanID int64, agg *database.TimespanAggregates) (*database.Timespan, error) {
	ts, err := p.db.GetTimespan(timespanID)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, &failure.IntegrityError{Table: "timespans", Msg: fmt.Sprintf("timespan %d missing after write", timespanID)}
	}
	if ts.State != database.TimespanCompleted {
		return nil, &failure.IntegrityError{Table: "timespans", Msg: fmt.Sprintf("timespan %d left in state %s", timespanID, ts.State)}
	}
	if ts.StoryCount != len(agg.StoryCounts) || ts.MediumCount != len(agg.MediumCounts) ||
		ts.StoryLinkCount != len(agg.StoryLinks) || ts.MediumLinkCount != len(agg.MediumLinks) {
		return nil, &failure.IntegrityError{Table: "timespans", Msg: fmt.Sprintf("timespan %d counters do not match aggregates", timespanID)}
	}

	stories, media, err := p.db.CountTimespanRows(timespanID)
	if err != nil {
		return nil, err
	}
	if stories != len(agg.StoryCounts) {
		return nil, &failure.IntegrityError{Table: "story_link_counts",
			Msg: fmt.Sprintf("expected %d rows, found %d", len(agg.StoryCounts), stories)}
	}
	if media != len(agg.MediumCounts) {
		return nil, &failure.IntegrityError{Table: "medium_link_counts",
			Msg: fmt.Sprintf("expected %d rows, found %d", len(agg.MediumCounts), media)}
	}
	return ts, nil
}

// ErrTimespanNotFound is returned by the exports for unknown timespan IDs.
var ErrTimespanNotFound = errors.New("timespan not found")

// ExportGraph renders a completed timespan's reduced medium graph as GEXF.
func (p *Pipeline) ExportGraph(ctx context.Context, timespanID int64, opts graph.Options) ([]byte, error) {
	in, err := p.graphInput(timespanID)
	if err != nil {
		return nil, err
	}
	out, err := p.exporter.Export(ctx, *in, opts)
	if err != nil {
		return nil, failure.Fatal("export", in.Timespan.Key().String(), err)
	}
	return out, nil
}

func (p *Pipeline) graphInput(timespanID int64) (*graph.Input, error) {
	ts, err := p.completedTimespan(timespanID)
	if err != nil {
		return nil, err
	}
	snap, err := p.db.GetSnapshot(ts.SnapshotID)
	if err != nil || snap == nil {
		return nil, fmt.Errorf("loading snapshot %d: %w", ts.SnapshotID, errOrMissing(err))
	}
	topic, err := p.db.GetTopic(snap.TopicID)
	if err != nil || topic == nil {
		return nil, fmt.Errorf("loading topic %d: %w", snap.TopicID, errOrMissing(err))
	}

	in := &graph.Input{Topic: *topic, Timespan: *ts}
	if ts.FocusID != 0 {
		f, err := p.db.GetFocus(ts.FocusID)
		if err != nil {
			return nil, fmt.Errorf("loading focus %d: %w", ts.FocusID, err)
		}
		if f != nil {
			in.FocusName = f.Name
		}
	}

	if in.Counts, err = p.db.GetMediumLinkCounts(ts.ID); err != nil {
		return nil, fmt.Errorf("loading medium counts: %w", err)
	}
	if in.Links, err = p.db.GetMediumLinks(ts.ID); err != nil {
		return nil, fmt.Errorf("loading medium links: %w", err)
	}
	ids := make([]int64, len(in.Counts))
	for i, c := range in.Counts {
		ids[i] = c.MediumID
	}
	if in.Media, err = p.db.GetMedia(ids); err != nil {
		return nil, fmt.Errorf("loading media: %w", err)
	}
	if in.Tags, err = p.db.GetMediaTags(ids); err != nil {
		return nil, fmt.Errorf("loading media tags: %w", err)
	}
	return in, nil
}

// ExportMediaTable writes a completed timespan's per-medium counts as CSV.
func (p *Pipeline) ExportMediaTable(_ context.Context, w io.Writer, timespanID int64) error {
	ts, err := p.completedTimespan(timespanID)
	if err != nil {
		return err
	}
	rows, err := p.db.GetMediumRows(ts.ID)
	if err != nil {
		return fmt.Errorf("loading media rows: %w", err)
	}
	tagSets, err := p.db.GetTagSets()
	if err != nil {
		return fmt.Errorf("loading tag sets: %w", err)
	}
	if err := export.WriteMediaTable(w, rows, tagSets); err != nil {
		return failure.Fatal("export", ts.Key().String(), err)
	}
	return nil
}

func (p *Pipeline) completedTimespan(timespanID int64) (*database.Timespan, error) {
	ts, err := p.db.GetTimespan(timespanID)
	if err != nil {
		return nil, fmt.Errorf("loading timespan %d: %w", timespanID, err)
	}
	if ts == nil {
		return nil, fmt.Errorf("%w: %d", ErrTimespanNotFound, timespanID)
	}
	if ts.State != database.TimespanCompleted {
		return nil, &failure.IntegrityError{Table: "timespans", Msg: fmt.Sprintf("timespan %d is not completed", timespanID)}
	}
	return ts, nil
}

func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return errors.New("not found")
}
