package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <title>Example News</title>
  <item>
    <title>Chip maker announces record profit</title>
    <link>https://news.example.com/chips</link>
    <description>&lt;p&gt;Revenue hit a &lt;b&gt;record&lt;/b&gt; $5 billion.&lt;/p&gt;</description>
    <pubDate>Mon, 10 Mar 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Old story</title>
    <link>https://news.example.com/old</link>
    <pubDate>Fri, 07 Mar 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Undated note</title>
    <link>https://news.example.com/note</link>
  </item>
</channel></rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Blog</title>
  <entry>
    <title>Go 1.24 is out</title>
    <link href="https://blog.example.com/go124"/>
    <updated>2025-03-10T09:00:00Z</updated>
    <summary>Generic type aliases and more.</summary>
  </entry>
</feed>`

var feedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestParseFeed(t *testing.T) {
	source, items, err := ParseFeed([]byte(rssDoc), 10, feedNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if source != "Example News" {
		t.Errorf("source = %q, want %q", source, "Example News")
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 (old story dropped, undated kept)", len(items))
	}
	first := items[0]
	if first.Summary != "Revenue hit a record $5 billion." {
		t.Errorf("Summary = %q, want markup removed", first.Summary)
	}
	if !first.Published.Equal(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Published = %v", first.Published)
	}
	if items[1].Title != "Undated note" || !items[1].Published.IsZero() {
		t.Errorf("items[1] = %+v", items[1])
	}

	_, limited, _ := ParseFeed([]byte(rssDoc), 1, time.Time{})
	if len(limited) != 1 {
		t.Errorf("max 1 returned %d items", len(limited))
	}
}

func TestParseFeedAtomAndErrors(t *testing.T) {
	source, items, err := ParseFeed([]byte(atomDoc), 0, time.Time{})
	if err != nil {
		t.Fatalf("ParseFeed(atom): %v", err)
	}
	if source != "Example Blog" || len(items) != 1 || items[0].Link != "https://blog.example.com/go124" {
		t.Errorf("atom = %q %+v", source, items)
	}

	if _, _, err := ParseFeed([]byte("<html><body>not a feed</body></html>"), 0, time.Time{}); err == nil {
		t.Error("ParseFeed accepted an HTML page")
	}
}

func TestFetcherFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	_, items, err := NewFetcher(time.Second, "").Feed(context.Background(), srv.URL, 0, time.Time{})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("len(items) = %d, want 3", len(items))
	}
}

func TestSortNewest(t *testing.T) {
	items := []FeedItem{
		{Title: "undated"},
		{Title: "old", Published: feedNow.Add(-2 * time.Hour)},
		{Title: "new", Published: feedNow},
	}
	SortNewest(items)
	if items[0].Title != "new" || items[1].Title != "old" || items[2].Title != "undated" {
		t.Errorf("order = %s, %s, %s", items[0].Title, items[1].Title, items[2].Title)
	}
}
