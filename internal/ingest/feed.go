package ingest

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/topicmap/internal/config"
)

const maxPerFeed = 200

// Entry is one parsed feed item.
type Entry struct {
	URL         string
	Title       string
	PublishDate time.Time // zero when the feed gives no date
	HTML        string    // item content or description, unmodified
}

// FeedResult is a parsed feed with the medium it belongs to.
type FeedResult struct {
	MediumName string
	MediumURL  string
	Entries    []Entry
}

// FeedParser parses RSS/Atom feeds.
type FeedParser struct {
	parser *gofeed.Parser
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser() *FeedParser {
	return &FeedParser{parser: gofeed.NewParser()}
}

// Parse fetches and parses one configured feed.
func (fp *FeedParser) Parse(ctx context.Context, fc config.Feed) (*FeedResult, error) {
	feed, err := fp.parser.ParseURLWithContext(fc.URL, ctx)
	if err != nil {
		return nil, err
	}
	return feedResult(feed, fc), nil
}

// ParseString parses feed XML already in memory.
func (fp *FeedParser) ParseString(data string, fc config.Feed) (*FeedResult, error) {
	feed, err := fp.parser.ParseString(data)
	if err != nil {
		return nil, err
	}
	return feedResult(feed, fc), nil
}

func feedResult(feed *gofeed.Feed, fc config.Feed) *FeedResult {
	r := &FeedResult{MediumName: fc.Name, MediumURL: siteURL(feed.Link, fc.URL)}
	if r.MediumName == "" {
		r.MediumName = strings.TrimSpace(feed.Title)
	}
	if r.MediumName == "" {
		r.MediumName = extractSourceName(fc.URL)
	}

	for _, item := range feed.Items {
		if len(r.Entries) >= maxPerFeed {
			break
		}
		if e := parseItem(item); e != nil {
			r.Entries = append(r.Entries, *e)
		}
	}
	return r
}

func parseItem(item *gofeed.Item) *Entry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	itemURL = normalizeURL(itemURL)
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	html := item.Content
	if html == "" {
		html = item.Description
	}

	return &Entry{
		URL:         itemURL,
		Title:       title,
		PublishDate: published,
		HTML:        html,
	}
}

// siteURL is the medium's home page: the feed's own link when present,
// otherwise the scheme and host of the feed URL.
func siteURL(link, feedURL string) string {
	if u := normalizeURL(link); u != "" {
		return u
	}
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Scheme + "://" + u.Host
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
