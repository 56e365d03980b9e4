package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeffryhq/jeffry/internal/scraper"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		title, desc string
		want        string
		conf        float64
	}{
		{"Chip maker announces record profit", "Revenue hit a record $5 billion.", "Business", 2.0 / 3},
		{"Senate passes election bill", "", "Politics", 2.0 / 3},
		{"Scientists report breakthrough in AI research", "", "Science", 2.0 / 3},
		{"Supreme Court rules on appeal", "", "Politics", 1},
		{"Local bakery opens", "", "Other", 0.1},
		{"", "", "Other", 0.1},
	}
	for _, tt := range tests {
		got, conf := Categorize(tt.title, tt.desc)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.title, got, tt.want)
		}
		if diff := conf - tt.conf; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Categorize(%q) confidence = %v, want %v", tt.title, conf, tt.conf)
		}
	}
}

func TestNotable(t *testing.T) {
	tests := []struct {
		title   string
		notable bool
		score   float64
	}{
		{"Chip maker announces record profit of $5 billion", true, 1},
		{"World's first fusion plant", true, 1},
		{"Company launches app", true, 1.0 / 3},
		{"Local bakery opens", false, 0},
	}
	for _, tt := range tests {
		notable, score := Notable(tt.title, "")
		if notable != tt.notable {
			t.Errorf("Notable(%q) = %v, want %v", tt.title, notable, tt.notable)
		}
		if diff := score - tt.score; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Notable(%q) score = %v, want %v", tt.title, score, tt.score)
		}
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize("Too short.", "Title", 3); got != "Brief article: Title" {
		t.Errorf("short = %q", got)
	}

	few := "The council approved the new park budget today. Residents welcomed the long awaited decision!"
	want := "The council approved the new park budget today. Residents welcomed the long awaited decision."
	if got := Summarize(few, "", 3); got != want {
		t.Errorf("few = %q, want %q", got, want)
	}

	long := "The weather was mild across the region today. " +
		"Officials said the bridge will reopen next month. " +
		"Traffic was light for most of the afternoon hours. " +
		"The mayor announced plans for a new cycling lane. " +
		"Nothing else of note happened in the town."
	want = "Officials said the bridge will reopen next month. The mayor announced plans for a new cycling lane."
	if got := Summarize(long, "", 2); got != want {
		t.Errorf("ranked = %q, want %q", got, want)
	}
}

func TestResolveSources(t *testing.T) {
	urls, unknown := ResolveSources([]string{"Science", "https://example.com/feed", "science", "gossip"})
	if len(urls) != 2 || urls[0] != Sources["science"][0] || urls[1] != "https://example.com/feed" {
		t.Errorf("urls = %v", urls)
	}
	if len(unknown) != 1 || unknown[0] != "gossip" {
		t.Errorf("unknown = %v, want [gossip]", unknown)
	}
}

const digestFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Daily Wire Test</title>
<item><title>Chip maker announces record profit</title><link>%[1]s/article</link>
  <description>Revenue hit a record $5 billion.</description>
  <pubDate>Mon, 10 Mar 2025 10:00:00 GMT</pubDate></item>
<item><title>Senate passes election bill</title><link>%[1]s/senate</link>
  <pubDate>Mon, 10 Mar 2025 09:00:00 GMT</pubDate></item>
<item><title>Local bakery opens</title><link>%[1]s/bakery</link>
  <pubDate>Mon, 10 Mar 2025 08:00:00 GMT</pubDate></item>
<item><title>Last week's story</title><link>%[1]s/old</link>
  <pubDate>Mon, 03 Mar 2025 08:00:00 GMT</pubDate></item>
</channel></rss>`

const articlePage = `<html><head><title>Chips</title></head><body>
<p>The company said quarterly revenue reached five billion dollars.</p>
<p>Analysts expect the new chips to sell out by summer.</p>
</body></html>`

func TestCollect(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			fmt.Fprintf(w, digestFeed, srv.URL)
		case "/article":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(articlePage))
		default:
			http.Error(w, "gone", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d, err := Collect(context.Background(), scraper.NewFetcher(time.Second, ""), Options{
		Sources: []string{srv.URL + "/feed.xml", srv.URL + "/broken.xml"},
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if d.Total != 3 {
		t.Errorf("Total = %d, want 3 (last week's story is outside the window)", d.Total)
	}
	if d.FailedFeeds() != 1 {
		t.Errorf("failed feeds = %d, want 1", d.FailedFeeds())
	}
	if len(d.ByCategory["Business"]) != 1 || len(d.ByCategory["Politics"]) != 1 || len(d.ByCategory["Other"]) != 1 {
		t.Errorf("ByCategory = %v", d.ByCategory)
	}
	if len(d.Top) != 1 {
		t.Fatalf("len(Top) = %d, want 1", len(d.Top))
	}
	want := "The company said quarterly revenue reached five billion dollars. Analysts expect the new chips to sell out by summer."
	if d.Top[0].Digest != want {
		t.Errorf("Digest = %q, want %q", d.Top[0].Digest, want)
	}

	out := d.Format(3)
	for _, s := range []string{
		"News digest: 3 articles from 2 feeds (1 feeds unavailable)",
		"Top stories:\n1. [Business] Chip maker announces record profit (Daily Wire Test)",
		"Politics (1):\n- Senate passes election bill",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("Format missing %q:\n%s", s, out)
		}
	}
}

func TestCollectRejectsUnknownSources(t *testing.T) {
	_, err := Collect(context.Background(), scraper.NewFetcher(time.Second, ""), Options{Sources: []string{"gossip"}})
	if err == nil || !strings.Contains(err.Error(), "gossip") {
		t.Errorf("err = %v, want unknown source error", err)
	}
}
