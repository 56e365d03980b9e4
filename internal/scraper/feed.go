package scraper

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedItem is one entry of an RSS, Atom or JSON feed.
type FeedItem struct {
	Source    string // feed title
	Title     string
	Link      string
	Summary   string // description with markup removed
	Published time.Time
}

// Feed fetches and parses the feed at rawURL. See ParseFeed for max and since.
func (f *Fetcher) Feed(ctx context.Context, rawURL string, max int, since time.Time) (string, []FeedItem, error) {
	body, _, err := f.Get(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}
	title, items, err := ParseFeed(body, max, since)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	return title, items, nil
}

// ParseFeed reads a feed document and returns its title and up to max items
// in feed order. Items dated before since are dropped; undated items are
// kept. Zero max means no limit.
func ParseFeed(doc []byte, max int, since time.Time) (string, []FeedItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(doc))
	if err != nil {
		return "", nil, fmt.Errorf("invalid feed: %w", err)
	}
	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = "Unknown Source"
	}

	var items []FeedItem
	for _, it := range feed.Items {
		if max > 0 && len(items) == max {
			break
		}
		item := FeedItem{
			Source:  source,
			Title:   strings.TrimSpace(it.Title),
			Link:    strings.TrimSpace(it.Link),
			Summary: markupText(firstNonEmpty(it.Description, it.Content)),
		}
		if item.Title == "" {
			item.Title = "No Title"
		}
		switch {
		case it.PublishedParsed != nil:
			item.Published = *it.PublishedParsed
		case it.UpdatedParsed != nil:
			item.Published = *it.UpdatedParsed
		}
		if !since.IsZero() && !item.Published.IsZero() && item.Published.Before(since) {
			continue
		}
		items = append(items, item)
	}
	return source, items, nil
}

// SortNewest orders items newest first; undated items go last.
func SortNewest(items []FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Published, items[j].Published
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}

func markupText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	_, text, err := PageText([]byte(s))
	if err != nil {
		return collapse(s)
	}
	return collapse(text)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
