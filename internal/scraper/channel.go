package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultChannelURL is the public web preview of Telegram channels.
const DefaultChannelURL = "https://t.me/s/"

var channelNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,31}$`)

// Post is one message from a public channel.
type Post struct {
	Channel string
	ID      string
	Text    string
	Date    time.Time
	Views   string
	URL     string
}

// ChannelScraper reads recent posts from public channels.
type ChannelScraper struct {
	fetcher *Fetcher
	baseURL string
}

// NewChannelScraper returns a scraper rooted at baseURL (DefaultChannelURL if empty).
func NewChannelScraper(f *Fetcher, baseURL string) *ChannelScraper {
	if baseURL == "" {
		baseURL = DefaultChannelURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ChannelScraper{fetcher: f, baseURL: baseURL}
}

// NormalizeChannel accepts "@name", "name", "t.me/name" or a full link.
func NormalizeChannel(s string) (string, error) {
	name := strings.TrimSpace(s)
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "t.me/s/")
	name = strings.TrimPrefix(name, "t.me/")
	name = strings.TrimPrefix(name, "@")
	name = strings.Trim(name, "/")
	if !channelNameRe.MatchString(name) {
		return "", fmt.Errorf("invalid channel name %q", s)
	}
	return name, nil
}

// Latest returns up to limit of the newest posts of channel, oldest first.
// Posts older than since are dropped when since is non-zero.
func (c *ChannelScraper) Latest(ctx context.Context, channel string, limit int, since time.Time) ([]Post, error) {
	name, err := NormalizeChannel(channel)
	if err != nil {
		return nil, err
	}
	body, _, err := c.fetcher.Get(ctx, c.baseURL+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	posts, err := ParseChannel(body, name)
	if err != nil {
		return nil, err
	}
	if !since.IsZero() {
		kept := posts[:0]
		for _, p := range posts {
			if p.Date.IsZero() || !p.Date.Before(since) {
				kept = append(kept, p)
			}
		}
		posts = kept
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[len(posts)-limit:]
	}
	return posts, nil
}

// ParseChannel extracts posts from a t.me/s preview page, oldest first.
func ParseChannel(doc []byte, channel string) ([]Post, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var posts []Post
	for _, n := range FindAll(root, ElementWithClass("div", "tgme_widget_message")) {
		p := Post{Channel: channel}
		if dp := Attr(n, "data-post"); dp != "" {
			if i := strings.LastIndex(dp, "/"); i >= 0 {
				p.ID = dp[i+1:]
			}
			p.URL = "https://t.me/" + dp
		}
		if t := Find(n, ElementWithClass("div", "tgme_widget_message_text")); t != nil {
			p.Text = Text(t)
		}
		if tm := Find(n, func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "time" }); tm != nil {
			if d, err := time.Parse(time.RFC3339, Attr(tm, "datetime")); err == nil {
				p.Date = d
			}
		}
		if v := Find(n, ElementWithClass("span", "tgme_widget_message_views")); v != nil {
			p.Views = Text(v)
		}
		if p.Text == "" {
			continue
		}
		posts = append(posts, p)
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Date.Before(posts[j].Date) })
	return posts, nil
}
