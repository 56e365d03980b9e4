package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeffryhq/jeffry/internal/news"
	"github.com/jeffryhq/jeffry/internal/scraper"
)

// LongRunning is implemented by tools that need more time than the
// executor's per-call timeout.
type LongRunning interface {
	Timeout() time.Duration
}

// RSSFeed reads RSS and Atom feeds, optionally keeping only items that
// mention one of a set of terms.
type RSSFeed struct {
	fetcher  *scraper.Fetcher
	defaults []string
	now      func() time.Time
}

// NewRSSFeed creates the feed reader. defaults are read when the model
// names no feed.
func NewRSSFeed(f *scraper.Fetcher, defaults []string, now func() time.Time) *RSSFeed {
	if now == nil {
		now = time.Now
	}
	return &RSSFeed{fetcher: f, defaults: defaults, now: now}
}

func (t *RSSFeed) Name() string {
	return "rss_feed"
}

func (t *RSSFeed) Category() Category {
	return CategorySearch
}

func (t *RSSFeed) Description() string {
	desc := `Read the newest items of RSS or Atom feeds, newest first. Feeds are URLs or one of: ` +
		strings.Join(feedNames(), ", ") + `. Pass search terms to keep only matching items.`
	if len(t.defaults) > 0 {
		desc += " Without feeds, reads: " + strings.Join(t.defaults, ", ") + "."
	}
	return desc
}

func (t *RSSFeed) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"feeds": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Feed URLs or names (optional)"
			},
			"search": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Keep items whose title or summary contains any of these terms (optional)"
			},
			"max_items": {
				"type": "integer",
				"description": "Items per feed (default: 10, max: 25)"
			},
			"hours": {
				"type": "integer",
				"description": "Only items from the last N hours (default: 24, 48 when searching)"
			}
		}
	}`)
}

type rssFeedParams struct {
	Feeds    []string `json:"feeds"`
	Search   []string `json:"search"`
	MaxItems int      `json:"max_items"`
	Hours    int      `json:"hours"`
}

type feedResult struct {
	url   string
	items []scraper.FeedItem
	err   error
}

func (t *RSSFeed) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p rssFeedParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}

	names := p.Feeds
	if len(names) == 0 {
		names = t.defaults
	}
	if len(names) == 0 {
		return &Result{Content: "No feed given and no default feeds configured", IsError: true}, nil
	}
	urls, unknown := resolveFeeds(names)
	if len(urls) == 0 {
		return &Result{Content: fmt.Sprintf("Unknown feeds %v. Use a URL or one of: %s", unknown, strings.Join(feedNames(), ", ")), IsError: true}, nil
	}

	var terms []string
	for _, term := range p.Search {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			terms = append(terms, term)
		}
	}
	max := p.MaxItems
	if max <= 0 {
		max = 10
	}
	if max > 25 {
		max = 25
	}
	hours := p.Hours
	if hours <= 0 {
		hours = 24
		if len(terms) > 0 {
			hours = 48
		}
	}
	since := t.now().Add(-time.Duration(hours) * time.Hour)

	results := make([]feedResult, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, items, err := t.fetcher.Feed(ctx, u, 0, since)
			results[i] = feedResult{url: u, items: items, err: err}
		}()
	}
	wg.Wait()

	var items []scraper.FeedItem
	var sb strings.Builder
	failures := 0
	for _, r := range results {
		if r.err != nil {
			failures++
			fmt.Fprintf(&sb, "%s: could not read feed (%v)\n", r.url, r.err)
			continue
		}
		kept := 0
		for _, it := range r.items {
			if kept == max {
				break
			}
			if len(terms) > 0 && matchTerm(it, terms) == "" {
				continue
			}
			items = append(items, it)
			kept++
		}
	}
	if failures == len(urls) {
		return &Result{Content: strings.TrimSpace(sb.String()), IsError: true}, nil
	}
	if failures > 0 {
		sb.WriteString("\n")
	}

	scraper.SortNewest(items)
	switch {
	case len(items) == 0 && len(terms) > 0:
		fmt.Fprintf(&sb, "No items from the last %d hours mention %s.", hours, strings.Join(terms, ", "))
	case len(items) == 0:
		fmt.Fprintf(&sb, "No items from the last %d hours.", hours)
	default:
		fmt.Fprintf(&sb, "%d items from the last %d hours:\n", len(items), hours)
	}
	for _, it := range items {
		stamp := "undated"
		if !it.Published.IsZero() {
			stamp = it.Published.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&sb, "- [%s] %s (%s)", stamp, it.Title, it.Source)
		if term := matchTerm(it, terms); term != "" {
			fmt.Fprintf(&sb, " matched %q", term)
		}
		sb.WriteString("\n")
		if it.Summary != "" {
			fmt.Fprintf(&sb, "  %s\n", truncateString(strings.ReplaceAll(it.Summary, "\n", " "), 300))
		}
		if it.Link != "" {
			fmt.Fprintf(&sb, "  %s\n", it.Link)
		}
	}
	return &Result{Content: truncateString(strings.TrimSpace(sb.String()), maxFetchChars)}, nil
}

// matchTerm returns the first of terms found in the item, or "".
func matchTerm(it scraper.FeedItem, terms []string) string {
	text := strings.ToLower(it.Title + " " + it.Summary)
	for _, term := range terms {
		if strings.Contains(text, term) {
			return term
		}
	}
	return ""
}

// resolveFeeds maps feed names to URLs and expands source categories.
func resolveFeeds(names []string) (urls, unknown []string) {
	rest := make([]string, 0, len(names))
	for _, name := range names {
		if u, ok := news.Feeds[strings.ToLower(strings.TrimSpace(name))]; ok {
			rest = append(rest, u)
			continue
		}
		rest = append(rest, name)
	}
	return news.ResolveSources(rest)
}

func feedNames() []string {
	names := news.SourceNames()
	for name := range news.Feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewsDigest builds a categorized digest of the day's news with summaries
// of the most notable stories.
type NewsDigest struct {
	fetcher      *scraper.Fetcher
	sources      []string
	maxPerSource int
	timeout      time.Duration
	now          func() time.Time
}

// NewNewsDigest creates the digest tool. sources default to
// news.DefaultSources.
func NewNewsDigest(f *scraper.Fetcher, sources []string, maxPerSource int, timeout time.Duration, now func() time.Time) *NewsDigest {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &NewsDigest{fetcher: f, sources: sources, maxPerSource: maxPerSource, timeout: timeout, now: now}
}

func (t *NewsDigest) Name() string {
	return "news_digest"
}

func (t *NewsDigest) Category() Category {
	return CategorySearch
}

func (t *NewsDigest) Description() string {
	return `Build a digest of today's news: headlines grouped by topic, plus short summaries of the most notable stories. ` +
		`Sources are categories (` + strings.Join(news.SourceNames(), ", ") + `) or feed URLs.`
}

func (t *NewsDigest) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"sources": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Source categories or feed URLs (default: general, technology, business)"
			},
			"hours": {
				"type": "integer",
				"description": "Only news from the last N hours (default: 24)"
			},
			"top": {
				"type": "integer",
				"description": "How many notable stories to summarize (default: 5, max: 10)"
			}
		}
	}`)
}

func (t *NewsDigest) Timeout() time.Duration { return t.timeout }

type newsDigestParams struct {
	Sources []string `json:"sources"`
	Hours   int      `json:"hours"`
	Top     int      `json:"top"`
}

func (t *NewsDigest) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p newsDigestParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}
	sources := p.Sources
	if len(sources) == 0 {
		sources = t.sources
	}
	top := min(p.Top, 10)

	d, err := news.Collect(ctx, t.fetcher, news.Options{
		Sources:      sources,
		Hours:        p.Hours,
		MaxPerSource: t.maxPerSource,
		TopStories:   top,
		Now:          t.now,
	})
	if err != nil {
		return &Result{Content: fmt.Sprintf("News digest failed: %v", err), IsError: true}, nil
	}
	if d.Total == 0 {
		return &Result{Content: "No news found in the requested window.", IsError: d.FailedFeeds() == len(d.Feeds)}, nil
	}
	return &Result{Content: truncateString(d.Format(3), maxFetchChars)}, nil
}
