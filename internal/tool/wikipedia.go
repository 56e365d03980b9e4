package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jeffryhq/jeffry/internal/scraper"
)

// DefaultWikipediaURL is the English Wikipedia.
const DefaultWikipediaURL = "https://en.wikipedia.org"

// Wikipedia looks up encyclopedia summaries.
type Wikipedia struct {
	fetcher *scraper.Fetcher
	baseURL string
	pages   int
}

// NewWikipedia creates the wikipedia tool. baseURL is the wiki root, e.g.
// https://de.wikipedia.org.
func NewWikipedia(f *scraper.Fetcher, baseURL string) *Wikipedia {
	if baseURL == "" {
		baseURL = DefaultWikipediaURL
	}
	return &Wikipedia{fetcher: f, baseURL: strings.TrimRight(baseURL, "/"), pages: 3}
}

func (t *Wikipedia) Name() string {
	return "wikipedia"
}

func (t *Wikipedia) Category() Category {
	return CategorySearch
}

func (t *Wikipedia) Description() string {
	return `Look up a topic on Wikipedia. Returns short summaries of the best matching articles. Good for people, places, history and definitions.`
}

func (t *Wikipedia) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Topic to look up"
			}
		},
		"required": ["query"]
	}`)
}

type wikipediaParams struct {
	Query string `json:"query"`
}

func (t *Wikipedia) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p wikipediaParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}
	if strings.TrimSpace(p.Query) == "" {
		return &Result{Content: "query is required", IsError: true}, nil
	}

	titles, err := t.search(ctx, p.Query)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Wikipedia search failed: %v", err), IsError: true}, nil
	}
	if len(titles) == 0 {
		return &Result{Content: "No good Wikipedia Search Result was found"}, nil
	}

	var sections []string
	for _, title := range titles {
		summary, err := t.summary(ctx, title)
		if err != nil || summary == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("Page: %s\nSummary: %s", title, summary))
	}
	if len(sections) == 0 {
		return &Result{Content: "No good Wikipedia Search Result was found"}, nil
	}
	return &Result{Content: truncateString(strings.Join(sections, "\n\n"), maxFetchChars)}, nil
}

func (t *Wikipedia) search(ctx context.Context, query string) ([]string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("srlimit", fmt.Sprint(t.pages))
	q.Set("format", "json")

	body, _, err := t.fetcher.Get(ctx, t.baseURL+"/w/api.php?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid response from %s", t.baseURL)
	}
	if msg := gjson.GetBytes(body, "error.info"); msg.Exists() {
		return nil, fmt.Errorf("%s", msg.String())
	}

	var titles []string
	gjson.GetBytes(body, "query.search.#.title").ForEach(func(_, v gjson.Result) bool {
		titles = append(titles, v.String())
		return true
	})
	return titles, nil
}

func (t *Wikipedia) summary(ctx context.Context, title string) (string, error) {
	path := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	body, _, err := t.fetcher.Get(ctx, t.baseURL+"/api/rest_v1/page/summary/"+path)
	if err != nil {
		return "", err
	}
	if gjson.GetBytes(body, "type").String() == "disambiguation" {
		return "", nil
	}
	return strings.TrimSpace(gjson.GetBytes(body, "extract").String()), nil
}
