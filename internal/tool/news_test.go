package tool

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test Wire</title>
<item><title>Rust 2.0 announced</title><link>%[1]s/rust</link>
  <description>A new major version.</description>
  <pubDate>Mon, 10 Mar 2025 09:00:00 GMT</pubDate></item>
<item><title>Go release party</title><link>%[1]s/go</link>
  <description>Gophers meet in Berlin.</description>
  <pubDate>Mon, 10 Mar 2025 11:00:00 GMT</pubDate></item>
<item><title>Ancient news</title><link>%[1]s/old</link>
  <pubDate>Sat, 01 Feb 2025 11:00:00 GMT</pubDate></item>
</channel></rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, testFeed, srv.URL)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSFeed(t *testing.T) {
	srv := feedServer(t)
	now := func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	tl := NewRSSFeed(testFetcher(), []string{srv.URL + "/rss"}, now)

	res := exec(t, tl, `{}`)
	if res.IsError {
		t.Fatalf("rss_feed error: %s", res.Content)
	}
	want := "2 items from the last 24 hours:\n" +
		"- [2025-03-10 11:00] Go release party (Test Wire)\n  Gophers meet in Berlin.\n  " + srv.URL + "/go\n" +
		"- [2025-03-10 09:00] Rust 2.0 announced (Test Wire)\n  A new major version.\n  " + srv.URL + "/rust"
	if res.Content != want {
		t.Errorf("Content = %q, want %q", res.Content, want)
	}

	res = exec(t, tl, `{"search":["GOPHERS"]}`)
	if res.IsError || !strings.Contains(res.Content, `Go release party (Test Wire) matched "gophers"`) || strings.Contains(res.Content, "Rust") {
		t.Errorf("search = %+v", res)
	}

	res = exec(t, tl, `{"search":["python"]}`)
	if res.IsError || res.Content != "No items from the last 48 hours mention python." {
		t.Errorf("no match = %+v", res)
	}

	res = exec(t, tl, `{"max_items":1}`)
	if strings.Count(res.Content, "\n- ") != 1 || !strings.HasPrefix(res.Content, "1 items") {
		t.Errorf("max_items = %q", res.Content)
	}
}

func TestRSSFeedErrors(t *testing.T) {
	srv := feedServer(t)

	res := exec(t, NewRSSFeed(testFetcher(), nil, nil), `{}`)
	if !res.IsError {
		t.Errorf("no feeds accepted: %s", res.Content)
	}

	res = exec(t, NewRSSFeed(testFetcher(), nil, nil), `{"feeds":["gossip"]}`)
	if !res.IsError || !strings.Contains(res.Content, "hacker_news") {
		t.Errorf("unknown feed = %+v", res)
	}

	res = exec(t, NewRSSFeed(testFetcher(), nil, nil), `{"feeds":["`+srv.URL+`/missing"]}`)
	if !res.IsError || !strings.Contains(res.Content, "could not read feed") {
		t.Errorf("broken feed = %+v", res)
	}
}

func TestNewsDigestTool(t *testing.T) {
	srv := feedServer(t)
	now := func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	tl := NewNewsDigest(testFetcher(), []string{srv.URL + "/rss"}, 8, 0, now)

	if tl.Timeout() != time.Minute {
		t.Errorf("Timeout = %v, want 1m", tl.Timeout())
	}
	var _ LongRunning = tl

	res := exec(t, tl, `{}`)
	if res.IsError {
		t.Fatalf("news_digest error: %s", res.Content)
	}
	for _, s := range []string{"News digest: 2 articles from 1 feeds", "Top stories:", "Rust 2.0 announced", "Brief article: Rust 2.0 announced"} {
		if !strings.Contains(res.Content, s) {
			t.Errorf("digest missing %q:\n%s", s, res.Content)
		}
	}

	res = exec(t, tl, `{"sources":["gossip"]}`)
	if !res.IsError {
		t.Errorf("unknown source accepted: %s", res.Content)
	}
}

func TestToolkitSubAgents(t *testing.T) {
	kit := &Toolkit{NewsAgent: true}
	if got := kit.SubAgents(); len(got) != 0 {
		t.Errorf("SubAgents without a fetcher = %d, want 0", len(got))
	}

	kit.Fetcher = testFetcher()
	kit.NewsTimeout = 30 * time.Second
	got := kit.SubAgents()
	if len(got) != 1 {
		t.Fatalf("len(SubAgents) = %d, want 1", len(got))
	}
	news := got[0]
	if news.Name != "news_agent" || news.Category != CategorySearch || news.Timeout != time.Minute {
		t.Errorf("news_agent = %s %s %v", news.Name, news.Category, news.Timeout)
	}
	var names []string
	for _, tl := range news.Tools {
		names = append(names, tl.Name())
	}
	if strings.Join(names, ",") != "rss_feed,news_digest,web_fetch,current_time" {
		t.Errorf("news_agent tools = %v", names)
	}

	var built []string
	for _, tl := range kit.Build("1", nil) {
		built = append(built, tl.Name())
	}
	if !strings.Contains(strings.Join(built, ","), "wikipedia,rss_feed,news_digest") {
		t.Errorf("Build = %v", built)
	}
}
