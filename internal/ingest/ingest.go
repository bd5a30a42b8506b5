// Package ingest loads published feeds into a topic: one medium per feed,
// one story per item, and a topic link wherever a story's content links to
// another story of the same topic.
package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/TobiSchelling/topicmap/internal/config"
	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/failure"
)

// Result holds the results of an ingest run.
type Result struct {
	Feeds       int
	FailedFeeds int
	Found       int
	Stories     int
	OutOfRange  int
	Undateable  int
	PageDated   int
	Fetched     int
	FetchFailed int
	Links       int
	Sources     map[string]int
}

// Ingester loads configured feeds into topics.
type Ingester struct {
	db      *database.DB
	feeds   func(topic string) []config.Feed
	parser  *FeedParser
	fetcher *Fetcher
}

// New creates an ingester for the feeds in cfg. Pages are fetched for link
// discovery only when ingest.fetch_content is set.
func New(cfg *config.Config, db *database.DB) *Ingester {
	in := &Ingester{
		db:     db,
		feeds:  cfg.FeedsForTopic,
		parser: NewFeedParser(),
	}
	if cfg.Ingest.FetchContent {
		in.fetcher = NewFetcher(cfg.Ingest.Timeout)
	}
	return in
}

type pending struct {
	storyID int64
	url     string
	html    string
	dated   bool
}

// Ingest parses every feed configured for the topic, stores items published
// inside the topic's date range and records links between them.
func (in *Ingester) Ingest(ctx context.Context, topicID int64) (*Result, error) {
	topic, err := in.db.GetTopic(topicID)
	if err != nil {
		return nil, fmt.Errorf("loading topic: %w", err)
	}
	if topic == nil {
		return nil, fmt.Errorf("topic %d not found", topicID)
	}
	feeds := in.feeds(topic.Name)
	if len(feeds) == 0 {
		return nil, failure.Configf("ingest.feeds", "no feeds configured for topic %q", topic.Name)
	}

	r := &Result{Sources: make(map[string]int)}
	var stories []pending

	for _, fc := range feeds {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		r.Feeds++
		fr, err := in.parser.Parse(ctx, fc)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			r.FailedFeeds++
			continue
		}
		added, err := in.storeFeed(topic, fr, r)
		if err != nil {
			return r, err
		}
		stories = append(stories, added...)
		log.Printf("Parsed %d entries from %s", len(fr.Entries), fr.MediumName)
	}

	if err := in.linkStories(ctx, topic.ID, stories, r); err != nil {
		return r, err
	}

	log.Printf("Ingest complete: %d found, %d stored (%d undateable), %d out of range, %d links",
		r.Found, r.Stories, r.Undateable, r.OutOfRange, r.Links)
	return r, nil
}

func (in *Ingester) storeFeed(topic *database.Topic, fr *FeedResult, r *Result) ([]pending, error) {
	mediumID, err := in.db.UpsertMedium(fr.MediumName, fr.MediumURL)
	if err != nil {
		return nil, fmt.Errorf("storing medium %s: %w", fr.MediumName, err)
	}

	var added []pending
	for _, e := range fr.Entries {
		r.Found++
		dated := !e.PublishDate.IsZero()
		if dated && (e.PublishDate.Before(topic.StartDate) || !e.PublishDate.Before(topic.EndDate)) {
			r.OutOfRange++
			continue
		}

		id, err := in.db.InsertStory(topic.ID, database.Story{
			MediumID:    mediumID,
			URL:         e.URL,
			Title:       e.Title,
			PublishDate: e.PublishDate,
			Undateable:  !dated,
		})
		if err != nil {
			return nil, fmt.Errorf("storing story %s: %w", e.URL, err)
		}
		r.Stories++
		r.Sources[fr.MediumName]++
		if !dated {
			r.Undateable++
		}
		added = append(added, pending{storyID: id, url: e.URL, html: e.HTML, dated: dated})
	}
	return added, nil
}

// linkStories resolves every anchor in the new stories against all stories
// of the topic, including ones stored by earlier runs. Undated items take the
// publish date of their fetched page when it declares one.
func (in *Ingester) linkStories(ctx context.Context, topicID int64, stories []pending, r *Result) error {
	corpus, err := in.db.LoadCorpus(topicID)
	if err != nil {
		return fmt.Errorf("loading topic stories: %w", err)
	}
	byURL := make(map[string]int64, len(corpus.Stories))
	for id, s := range corpus.Stories {
		byURL[normalizeURL(s.URL)] = id
	}

	failedDomains := make(map[string]struct{})
	for _, p := range stories {
		if err := ctx.Err(); err != nil {
			return err
		}
		base, _ := url.Parse(p.url)
		html := p.html

		if in.fetcher != nil && base != nil {
			domain := strings.ToLower(base.Host)
			if _, failed := failedDomains[domain]; !failed {
				page, err := in.fetcher.Fetch(ctx, p.url)
				if err != nil {
					r.FetchFailed++
					failedDomains[domain] = struct{}{}
					log.Printf("Fetch failed for %s (%v); skipping remaining pages from %s", p.url, err, domain)
				} else {
					if page.HTML != "" {
						r.Fetched++
						html = page.HTML
					}
					if !p.dated && !page.PublishDate.IsZero() {
						if err := in.db.SetStoryPublishDate(p.storyID, page.PublishDate); err != nil {
							return fmt.Errorf("dating story %s: %w", p.url, err)
						}
						r.PageDated++
						r.Undateable--
					}
				}
			}
		}

		links, err := ExtractLinks(html, base)
		if err != nil {
			log.Printf("Could not parse content of %s: %v", p.url, err)
			continue
		}
		for _, link := range links {
			ref, ok := byURL[link]
			if !ok || ref == p.storyID {
				continue
			}
			added, err := in.db.InsertTopicLink(topicID, p.storyID, ref)
			if err != nil {
				return fmt.Errorf("storing link %d -> %d: %w", p.storyID, ref, err)
			}
			if added {
				r.Links++
			}
		}
	}
	return nil
}
