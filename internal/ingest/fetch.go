package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Page is the readable part of a fetched story page.
type Page struct {
	HTML        string
	PublishDate time.Time // zero when the page does not declare one
}

// Fetcher downloads story pages and extracts their main content, so links in
// navigation and footers do not count as citations.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a new fetcher.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch downloads pageURL and returns its main content.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "topicmap/1.0 (link ingest)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &httpError{code: resp.StatusCode}
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	page := &Page{HTML: article.Content}
	if article.PublishedTime != nil {
		page.PublishDate = article.PublishedTime.UTC()
	}
	return page, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}
