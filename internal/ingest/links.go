package ingest

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns the absolute http(s) URLs of all anchors in an HTML
// fragment, resolved against base, in document order without duplicates.
func ExtractLinks(html string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		link := normalizeURL(ref.String())
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links, nil
}

// normalizeURL drops fragments and rejects anything that is not an absolute
// http(s) URL. Returns "" for rejected input.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
