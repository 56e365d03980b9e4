// Package news builds a daily digest from RSS and Atom feeds: it fetches
// headlines, sorts them into categories, flags the notable ones and
// summarizes those from the article text.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeffryhq/jeffry/internal/scraper"
)

// Sources are the built-in feeds grouped by source category.
var Sources = map[string][]string{
	"general": {
		"https://feeds.bbci.co.uk/news/rss.xml",
		"http://rss.cnn.com/rss/edition.rss",
		"https://feeds.nbcnews.com/nbcnews/public/news",
	},
	"technology": {
		"https://techcrunch.com/feed/",
		"https://feeds.arstechnica.com/arstechnica/index",
		"https://www.theverge.com/rss/index.xml",
	},
	"business": {
		"https://feeds.bloomberg.com/markets/news.rss",
	},
	"science": {
		"https://www.sciencedaily.com/rss/all.xml",
	},
	"politics": {
		"https://feeds.bbci.co.uk/news/politics/rss.xml",
	},
}

// Feeds are well-known single feeds that can be named instead of a URL.
var Feeds = map[string]string{
	"bbc":         "https://feeds.bbci.co.uk/news/rss.xml",
	"cnn":         "http://rss.cnn.com/rss/edition.rss",
	"techcrunch":  "https://techcrunch.com/feed/",
	"hacker_news": "https://hnrss.org/frontpage",
}

// DefaultSources are read when a request names none.
var DefaultSources = []string{"general", "technology", "business"}

// Categories in display order. Other collects what matches nothing.
var Categories = []string{
	"Technology", "Politics", "Business", "Science", "Health",
	"Sports", "Entertainment", "World News", "Other",
}

var categoryKeywords = map[string][]string{
	"Technology": {
		"ai", "artificial intelligence", "tech", "software", "app", "digital",
		"cyber", "data", "computer", "internet", "blockchain", "cryptocurrency",
		"startup", "innovation", "machine learning", "robot", "automation",
	},
	"Politics": {
		"election", "government", "president", "congress", "senate", "political",
		"vote", "policy", "minister", "parliament", "campaign", "democrat",
		"republican", "legislation", "court", "supreme court",
	},
	"Business": {
		"stock", "market", "economy", "finance", "company", "business", "trade",
		"profit", "revenue", "investment", "banking", "merger", "acquisition",
		"earnings", "inflation", "gdp", "unemployment",
	},
	"Science": {
		"research", "study", "discovery", "scientist", "laboratory", "experiment",
		"breakthrough", "scientific", "physics", "chemistry", "biology",
	},
	"Health": {
		"health", "medical", "disease", "treatment", "hospital", "doctor",
		"patient", "medicine", "vaccine", "drug", "therapy", "clinical",
		"pandemic", "virus", "bacteria",
	},
	"Sports": {
		"game", "match", "team", "player", "championship", "sport", "football",
		"basketball", "soccer", "baseball", "tennis", "golf", "olympics",
		"tournament", "league", "coach",
	},
	"Entertainment": {
		"movie", "music", "celebrity", "film", "show", "entertainment", "actor",
		"singer", "hollywood", "netflix", "streaming", "concert", "album",
		"theater", "tv", "series",
	},
	"World News": {
		"war", "conflict", "international", "country", "nation", "global",
		"world", "border", "diplomatic", "treaty", "crisis", "refugee",
		"terrorism", "military", "peace",
	},
}

var notableKeywords = []string{
	"breakthrough", "first", "new", "major", "significant", "historic", "record",
	"crisis", "emergency", "urgent", "breaking", "exclusive", "revealed",
	"billion", "million", "huge", "massive", "dramatic", "shocking", "unprecedented",
	"announced", "launches", "discovers", "confirms", "warns", "alert",
}

var wordRe = regexp.MustCompile(`[a-z0-9$']+`)

// Categorize picks the category whose keywords best match the title and
// description. Multi-word keywords weigh more. Confidence is in [0, 1].
func Categorize(title, description string) (string, float64) {
	text := " " + strings.Join(wordRe.FindAllString(strings.ToLower(title+" "+description), -1), " ") + " "
	if strings.TrimSpace(text) == "" {
		return "Other", 0.1
	}

	best, bestScore := "Other", 0
	for _, cat := range Categories {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(text, " "+kw+" ") {
				score += len(strings.Fields(kw))
			}
		}
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	if bestScore == 0 {
		return "Other", 0.1
	}
	return best, min(float64(bestScore)/3, 1)
}

// Notable scores how newsworthy a headline reads. Any hit makes it notable.
func Notable(title, description string) (bool, float64) {
	text := strings.ToLower(title + " " + description)
	score := 0
	for _, kw := range notableKeywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	for _, phrase := range []string{"first time", "never before", "world's first"} {
		if strings.Contains(text, phrase) {
			score += 2
			break
		}
	}
	if strings.Contains(text, "$") {
		score++
	}
	return score >= 1, min(float64(score)/3, 1)
}

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

var leadTerms = []string{"said", "announced", "reported", "according", "will", "plans", "new", "first"}

// Summarize keeps up to max sentences of content, preferring early ones
// and ones with reporting verbs, in their original order.
func Summarize(content, title string, max int) string {
	if max <= 0 {
		max = 3
	}
	if len(strings.TrimSpace(content)) < 50 {
		if title == "" {
			title = "Untitled Article"
		}
		return "Brief article: " + title
	}

	var sentences []string
	for _, s := range sentenceEnd.Split(content, -1) {
		if s = strings.TrimSpace(s); len(s) > 20 {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) <= max {
		return strings.Join(sentences, ". ") + "."
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, s := range sentences {
		if i == 10 {
			break
		}
		score := float64(10-i) * 0.1
		lower := strings.ToLower(s)
		for _, term := range leadTerms {
			if strings.Contains(lower, term) {
				score += 0.3
			}
		}
		ranked = append(ranked, scored{i, score})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	ranked = ranked[:max]
	sort.Slice(ranked, func(a, b int) bool { return ranked[a].idx < ranked[b].idx })

	picked := make([]string, len(ranked))
	for i, r := range ranked {
		picked[i] = sentences[r.idx]
	}
	return strings.Join(picked, ". ") + "."
}

// Article is a categorized headline.
type Article struct {
	scraper.FeedItem
	Category   string
	Confidence float64
	Notable    bool
	Interest   float64
	Digest     string // summary of the article text, set for top stories
}

// FeedStatus reports how one feed went.
type FeedStatus struct {
	URL   string
	Title string
	Items int
	Err   error
}

// Digest is the result of Collect.
type Digest struct {
	ByCategory map[string][]Article
	Top        []Article
	Feeds      []FeedStatus
	Total      int
	Took       time.Duration
}

// Options bounds a Collect call.
type Options struct {
	Sources      []string // keys of Sources, or feed URLs
	Hours        int
	MaxPerSource int
	TopStories   int     // how many notable articles to read and summarize
	MinInterest  float64 // threshold for top stories
	Now          func() time.Time
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if len(o.Sources) == 0 {
		o.Sources = DefaultSources
	}
	if o.Hours <= 0 {
		o.Hours = 24
	}
	if o.MaxPerSource <= 0 {
		o.MaxPerSource = 8
	}
	if o.TopStories <= 0 {
		o.TopStories = 5
	}
	if o.MinInterest <= 0 {
		o.MinInterest = 0.3
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// ResolveSources expands source category names into feed URLs. Entries that
// look like URLs pass through; unknown names are returned separately.
func ResolveSources(names []string) (urls, unknown []string) {
	seen := make(map[string]bool)
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		switch {
		case strings.HasPrefix(name, "http://"), strings.HasPrefix(name, "https://"):
			add(name)
		case Sources[strings.ToLower(name)] != nil:
			for _, u := range Sources[strings.ToLower(name)] {
				add(u)
			}
		case name != "":
			unknown = append(unknown, name)
		}
	}
	return urls, unknown
}

// Collect fetches the feeds of opts.Sources concurrently, categorizes every
// headline and summarizes the most notable ones from their pages. A feed
// that fails is reported in Digest.Feeds and does not fail the digest.
func Collect(ctx context.Context, f *scraper.Fetcher, opts Options) (*Digest, error) {
	opts = opts.withDefaults()
	start := time.Now()

	urls, unknown := ResolveSources(opts.Sources)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no valid news sources in %v (known: %s)", unknown, strings.Join(SourceNames(), ", "))
	}
	since := opts.Now().Add(-time.Duration(opts.Hours) * time.Hour)

	statuses := make([]FeedStatus, len(urls))
	var mu sync.Mutex
	var items []scraper.FeedItem

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range urls {
		g.Go(func() error {
			title, got, err := f.Feed(gctx, u, opts.MaxPerSource, since)
			statuses[i] = FeedStatus{URL: u, Title: title, Items: len(got), Err: err}
			if err != nil {
				opts.Logger.Warn("news_feed_failed", "url", u, "error", err.Error())
				return nil
			}
			mu.Lock()
			items = append(items, got...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scraper.SortNewest(items)
	d := &Digest{ByCategory: make(map[string][]Article), Feeds: statuses, Total: len(items)}
	var candidates []Article
	for _, it := range items {
		a := Article{FeedItem: it}
		a.Category, a.Confidence = Categorize(it.Title, it.Summary)
		a.Notable, a.Interest = Notable(it.Title, it.Summary)
		d.ByCategory[a.Category] = append(d.ByCategory[a.Category], a)
		if a.Notable && a.Interest >= opts.MinInterest {
			candidates = append(candidates, a)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Interest > candidates[j].Interest })
	if len(candidates) > opts.TopStories {
		candidates = candidates[:opts.TopStories]
	}
	for i := range candidates {
		candidates[i].Digest = summarizePage(ctx, f, candidates[i])
	}
	d.Top = candidates
	d.Took = time.Since(start)

	opts.Logger.Info("news_digest", "feeds", len(urls), "articles", d.Total, "top", len(d.Top), "duration_ms", d.Took.Milliseconds())
	return d, nil
}

// summarizePage reads the article behind a headline, falling back to the
// feed summary when the page cannot be read.
func summarizePage(ctx context.Context, f *scraper.Fetcher, a Article) string {
	if a.Link != "" {
		if body, _, err := f.Get(ctx, a.Link); err == nil {
			if _, text, err := scraper.PageText(body); err == nil && len(text) >= 100 {
				return Summarize(text, a.Title, 3)
			}
		}
	}
	return Summarize(a.Summary, a.Title, 3)
}

// SourceNames lists the built-in source categories.
func SourceNames() []string {
	names := make([]string, 0, len(Sources))
	for name := range Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders the digest for the model: top stories first, then a
// per-category headline list.
func (d *Digest) Format(perCategory int) string {
	if perCategory <= 0 {
		perCategory = 3
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "News digest: %d articles from %d feeds", d.Total, len(d.Feeds))
	if failed := d.FailedFeeds(); failed > 0 {
		fmt.Fprintf(&sb, " (%d feeds unavailable)", failed)
	}
	sb.WriteString("\n")

	if len(d.Top) > 0 {
		sb.WriteString("\nTop stories:\n")
		for i, a := range d.Top {
			fmt.Fprintf(&sb, "%d. [%s] %s (%s)\n", i+1, a.Category, a.Title, a.Source)
			if a.Digest != "" {
				fmt.Fprintf(&sb, "   %s\n", a.Digest)
			}
			if a.Link != "" {
				fmt.Fprintf(&sb, "   %s\n", a.Link)
			}
		}
	}

	for _, cat := range Categories {
		arts := d.ByCategory[cat]
		if len(arts) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", cat, len(arts))
		for i, a := range arts {
			if i == perCategory {
				break
			}
			fmt.Fprintf(&sb, "- %s (%s)\n", a.Title, a.Source)
		}
	}
	return strings.TrimSpace(sb.String())
}

// FailedFeeds counts the feeds that could not be read.
func (d *Digest) FailedFeeds() int {
	n := 0
	for _, f := range d.Feeds {
		if f.Err != nil {
			n++
		}
	}
	return n
}
