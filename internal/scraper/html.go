// Package scraper reads public web pages: search result pages, article text
// and public Telegram channel previews.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultUserAgent is sent when the caller does not set one.
const DefaultUserAgent = "Mozilla/5.0 (compatible; jeffry/1.0)"

// maxBody caps how much of a response is read.
const maxBody = 2 << 20

// Fetcher performs GET requests with a shared client and user agent.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewFetcher returns a fetcher with the given timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
	}
}

// Get fetches rawURL and returns at most maxBody bytes of the body.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, "", fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// HasClass reports whether n carries the CSS class want.
func HasClass(n *html.Node, want string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == want {
			return true
		}
	}
	return false
}

// Text returns the whitespace-collapsed text under n. <br> becomes a newline.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapse(sb.String())
}

// Find returns the first descendant of n (n included) matching pred.
func Find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant of n matching pred, in document order.
// Matches are not descended into.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// ElementWithClass matches elements of the given tag ("" for any) and class.
func ElementWithClass(tag, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && (tag == "" || n.Data == tag) && HasClass(n, class)
	}
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "br": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"nav": true, "footer": true, "header": true, "form": true, "iframe": true,
}

// PageText extracts readable text from an HTML document, one block per line.
func PageText(doc []byte) (title, text string, err error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	if t := Find(root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "title" }); t != nil {
		title = Text(t)
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		if line := collapse(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] || n.Data == "head" {
				return
			}
			if blockTags[n.Data] {
				flush()
			}
		}
		if n.Type == html.TextNode {
			cur.WriteString(n.Data)
			cur.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			flush()
		}
	}
	walk(root)
	flush()
	return title, strings.Join(lines, "\n"), nil
}

// collapse squeezes runs of spaces and tabs, keeping single newlines.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
