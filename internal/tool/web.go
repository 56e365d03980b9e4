package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeffryhq/jeffry/internal/scraper"
)

const maxFetchChars = 6000

// WebFetch fetches content from URLs
type WebFetch struct {
	fetcher *scraper.Fetcher
}

// NewWebFetch creates a new web fetch tool
func NewWebFetch(f *scraper.Fetcher) *WebFetch {
	return &WebFetch{fetcher: f}
}

func (t *WebFetch) Name() string {
	return "web_fetch"
}

func (t *WebFetch) Category() Category {
	return CategorySearch
}

func (t *WebFetch) Description() string {
	return `Fetch a web page and return its readable text. Use it to read an article or page found with web_search.`
}

func (t *WebFetch) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The URL to fetch"
			}
		},
		"required": ["url"]
	}`)
}

type webFetchParams struct {
	URL string `json:"url"`
}

func (t *WebFetch) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p webFetchParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}

	if p.URL == "" {
		return &Result{Content: "url is required", IsError: true}, nil
	}

	// Ensure URL has scheme
	if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
		p.URL = "https://" + p.URL
	}

	body, contentType, err := t.fetcher.Get(ctx, p.URL)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Failed to fetch URL: %v", err), IsError: true}, nil
	}

	content := string(body)
	if strings.Contains(contentType, "html") || contentType == "" {
		title, text, err := scraper.PageText(body)
		if err != nil {
			return &Result{Content: fmt.Sprintf("Failed to read page: %v", err), IsError: true}, nil
		}
		content = text
		if title != "" {
			content = "Title: " + title + "\n\n" + text
		}
	}

	if strings.TrimSpace(content) == "" {
		return &Result{Content: "The page has no readable text."}, nil
	}
	return &Result{Content: truncateString(content, maxFetchChars)}, nil
}

// WebSearch searches the web through DuckDuckGo's HTML endpoint.
type WebSearch struct {
	fetcher *scraper.Fetcher
	baseURL string
}

// NewWebSearch creates a search tool. An empty baseURL uses DuckDuckGo.
func NewWebSearch(f *scraper.Fetcher, baseURL string) *WebSearch {
	return &WebSearch{fetcher: f, baseURL: baseURL}
}

func (t *WebSearch) Name() string {
	return "web_search"
}

func (t *WebSearch) Category() Category {
	return CategorySearch
}

func (t *WebSearch) Description() string {
	return `Search the web. Returns titles, URLs and snippets. Use it for news, current events and anything you are unsure about.`
}

func (t *WebSearch) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "The search query"
			},
			"max_results": {
				"type": "integer",
				"description": "Maximum number of results (default: 5, max: 10)"
			}
		},
		"required": ["query"]
	}`)
}

type webSearchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (t *WebSearch) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p webSearchParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}

	if strings.TrimSpace(p.Query) == "" {
		return &Result{Content: "query is required", IsError: true}, nil
	}

	if p.MaxResults <= 0 {
		p.MaxResults = 5
	}
	if p.MaxResults > 10 {
		p.MaxResults = 10
	}

	results, err := t.fetcher.Search(ctx, t.baseURL, p.Query, p.MaxResults)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Search failed: %v", err), IsError: true}, nil
	}
	if len(results) == 0 {
		return &Result{Content: fmt.Sprintf("No results found for: %s", p.Query)}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for: %s\n\n", p.Query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", truncateString(strings.ReplaceAll(r.Snippet, "\n", " "), 300))
		}
	}
	return &Result{Content: strings.TrimRight(sb.String(), "\n")}, nil
}
