package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeffryhq/jeffry/internal/scraper"
)

// LatestMessages reads recent posts from public Telegram channels.
type LatestMessages struct {
	scraper  *scraper.ChannelScraper
	channels []string
	limit    int
	now      func() time.Time
}

// NewLatestMessages creates the channel reading tool. channels are read when
// the model does not name one.
func NewLatestMessages(cs *scraper.ChannelScraper, channels []string, limit int) *LatestMessages {
	if limit <= 0 {
		limit = 10
	}
	return &LatestMessages{scraper: cs, channels: channels, limit: limit, now: time.Now}
}

func (t *LatestMessages) Name() string {
	return "get_latest_messages"
}

func (t *LatestMessages) Category() Category {
	return CategoryChannels
}

func (t *LatestMessages) Description() string {
	desc := `Get the latest posts from public Telegram channels.`
	if len(t.channels) > 0 {
		desc += " Without a channel, reads: " + strings.Join(t.channels, ", ") + "."
	}
	return desc
}

func (t *LatestMessages) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"channel": {
				"type": "string",
				"description": "Channel username, e.g. @durov (optional)"
			},
			"limit": {
				"type": "integer",
				"description": "Posts per channel (default: 10)"
			},
			"hours": {
				"type": "integer",
				"description": "Only posts from the last N hours (optional)"
			}
		}
	}`)
}

type latestMessagesParams struct {
	Channel string `json:"channel"`
	Limit   int    `json:"limit"`
	Hours   int    `json:"hours"`
}

func (t *LatestMessages) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p latestMessagesParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}

	channels := t.channels
	if p.Channel != "" {
		channels = []string{p.Channel}
	}
	if len(channels) == 0 {
		return &Result{Content: "No channel given and no default channels configured", IsError: true}, nil
	}
	limit := t.limit
	if p.Limit > 0 && p.Limit < limit {
		limit = p.Limit
	}
	var since time.Time
	if p.Hours > 0 {
		since = t.now().Add(-time.Duration(p.Hours) * time.Hour)
	}

	var sb strings.Builder
	var failures int
	for _, ch := range channels {
		posts, err := t.scraper.Latest(ctx, ch, limit, since)
		if err != nil {
			failures++
			fmt.Fprintf(&sb, "%s: could not read channel (%v)\n\n", ch, err)
			continue
		}
		fmt.Fprintf(&sb, "%s (%d posts):\n", ch, len(posts))
		for _, post := range posts {
			stamp := "unknown time"
			if !post.Date.IsZero() {
				stamp = post.Date.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(&sb, "- [%s] %s\n", stamp, truncateString(strings.ReplaceAll(post.Text, "\n", " "), 500))
		}
		sb.WriteString("\n")
	}

	return &Result{
		Content: truncateString(strings.TrimSpace(sb.String()), maxFetchChars),
		IsError: failures == len(channels),
	}, nil
}
