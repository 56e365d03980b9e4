package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DefaultSearchURL is the DuckDuckGo HTML endpoint.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// SearchResult is one organic search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Search queries the DuckDuckGo HTML endpoint at baseURL.
func (f *Fetcher) Search(ctx context.Context, baseURL, query string, max int) ([]SearchResult, error) {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	body, _, err := f.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return ParseDuckDuckGo(body, max)
}

// ParseDuckDuckGo extracts up to max results from a DuckDuckGo HTML page.
// Snippets are taken from the enclosing result block when present.
func ParseDuckDuckGo(doc []byte, max int) ([]SearchResult, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if max <= 0 {
		max = 5
	}

	var out []SearchResult
	add := func(link *html.Node, block *html.Node) {
		href := Attr(link, "href")
		title := Text(link)
		if href == "" || title == "" {
			return
		}
		r := SearchResult{Title: title, URL: normalizeResultURL(href)}
		if block != nil {
			if s := Find(block, ElementWithClass("", "result__snippet")); s != nil {
				r.Snippet = Text(s)
			}
		}
		out = append(out, r)
	}

	blocks := FindAll(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && HasClass(n, "result") && !HasClass(n, "result--ad")
	})
	for _, b := range blocks {
		if len(out) >= max {
			break
		}
		if link := Find(b, ElementWithClass("a", "result__a")); link != nil {
			add(link, b)
		}
	}
	if len(blocks) == 0 {
		for _, link := range FindAll(root, ElementWithClass("a", "result__a")) {
			if len(out) >= max {
				break
			}
			add(link, nil)
		}
	}
	return out, nil
}

// normalizeResultURL unwraps DuckDuckGo redirect links (/l/?uddg=<encoded>).
func normalizeResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}
