package tool

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeffryhq/jeffry/internal/scraper"
)

func testFetcher() *scraper.Fetcher {
	return scraper.NewFetcher(2*time.Second, "jeffry-test")
}

func TestWebSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if gotQuery == "nothing" {
			w.Write([]byte(`<html><body>No results.</body></html>`))
			return
		}
		w.Write([]byte(`<div class="result"><a class="result__a" href="https://go.dev">Go</a>
			<a class="result__snippet">The Go programming language.</a></div>`))
	}))
	defer srv.Close()

	tl := NewWebSearch(testFetcher(), srv.URL+"/html/")

	res := exec(t, tl, `{"query":"golang"}`)
	if res.IsError {
		t.Fatalf("web_search error: %s", res.Content)
	}
	if gotQuery != "golang" {
		t.Errorf("q = %q, want golang", gotQuery)
	}
	want := "Search results for: golang\n\n1. Go\n   https://go.dev\n   The Go programming language."
	if res.Content != want {
		t.Errorf("Content = %q, want %q", res.Content, want)
	}

	res = exec(t, tl, `{"query":"nothing"}`)
	if res.IsError || !strings.HasPrefix(res.Content, "No results found") {
		t.Errorf("empty search = %+v", res)
	}

	res = exec(t, tl, `{}`)
	if !res.IsError {
		t.Errorf("missing query accepted: %s", res.Content)
	}
}

func TestWebFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><head><title>Notes</title></head><body><p>Hello there.</p><script>x()</script></body></html>`))
		case "/data":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tl := NewWebFetch(testFetcher())
	tests := []struct {
		name    string
		url     string
		want    string
		isError bool
	}{
		{"html", srv.URL + "/page", "Title: Notes\n\nHello there.", false},
		{"json", srv.URL + "/data", `{"ok":true}`, false},
		{"missing", srv.URL + "/gone", "HTTP 404", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := exec(t, tl, `{"url":"`+tt.url+`"}`)
			if res.IsError != tt.isError {
				t.Errorf("IsError = %v, want %v (%s)", res.IsError, tt.isError, res.Content)
			}
			if !strings.Contains(res.Content, tt.want) {
				t.Errorf("Content = %q, want it to contain %q", res.Content, tt.want)
			}
		})
	}
}

func TestWikipedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/w/api.php":
			if r.URL.Query().Get("srsearch") == "zzzz" {
				w.Write([]byte(`{"query":{"search":[]}}`))
				return
			}
			w.Write([]byte(`{"query":{"search":[{"title":"Alan Turing"},{"title":"Turing (disambiguation)"}]}}`))
		case r.URL.Path == "/api/rest_v1/page/summary/Alan_Turing":
			w.Write([]byte(`{"type":"standard","title":"Alan Turing","extract":"Alan Mathison Turing was an English mathematician."}`))
		case strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/Turing"):
			w.Write([]byte(`{"type":"disambiguation","extract":"Turing may refer to:"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tl := NewWikipedia(testFetcher(), srv.URL+"/")

	res := exec(t, tl, `{"query":"turing"}`)
	want := "Page: Alan Turing\nSummary: Alan Mathison Turing was an English mathematician."
	if res.IsError || res.Content != want {
		t.Errorf("wikipedia = %+v, want %q", res, want)
	}

	res = exec(t, tl, `{"query":"zzzz"}`)
	if res.IsError || res.Content != "No good Wikipedia Search Result was found" {
		t.Errorf("no match = %+v", res)
	}
}

func TestLatestMessages(t *testing.T) {
	page := `<div class="tgme_widget_message" data-post="%s/1">
		<div class="tgme_widget_message_text">hello from %s</div>
		<time datetime="2025-03-10T08:00:00+00:00"></time></div>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/s/")
		if name == "broken" {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(strings.ReplaceAll(page, "%s", name)))
	}))
	defer srv.Close()

	cs := scraper.NewChannelScraper(testFetcher(), srv.URL+"/s/")

	tl := NewLatestMessages(cs, []string{"gonews", "broken"}, 5)
	res := exec(t, tl, `{}`)
	if res.IsError {
		t.Fatalf("partial failure reported as error: %s", res.Content)
	}
	if !strings.Contains(res.Content, "gonews (1 posts):\n- [2025-03-10 08:00] hello from gonews") {
		t.Errorf("Content = %q", res.Content)
	}
	if !strings.Contains(res.Content, "broken: could not read channel") {
		t.Errorf("Content = %q, want the broken channel reported", res.Content)
	}

	res = exec(t, tl, `{"channel":"@broken"}`)
	if !res.IsError {
		t.Errorf("all channels failing not an error: %s", res.Content)
	}

	none := NewLatestMessages(cs, nil, 5)
	if res := exec(t, none, `{}`); !res.IsError {
		t.Errorf("no channels configured = %+v, want error", res)
	}
}

func TestCurrentTime(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	tl := NewCurrentTime(loc, func() time.Time { return toolNow })
	res := exec(t, tl, `{}`)
	want := "2025-03-10 13:00:00 (Monday, CET +01:00)"
	if res.Content != want {
		t.Errorf("current_time = %q, want %q", res.Content, want)
	}
}
