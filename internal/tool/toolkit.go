package tool

import (
	"time"

	"github.com/jeffryhq/jeffry/internal/planner"
	"github.com/jeffryhq/jeffry/internal/scheduler"
	"github.com/jeffryhq/jeffry/internal/scraper"
)

// Toolkit holds the shared dependencies tools are built from. Scheduling
// and planner tools are bound per chat; search tools are shared.
type Toolkit struct {
	Fetcher      *scraper.Fetcher
	SearchURL    string
	WikipediaURL string

	// Channels enables get_latest_messages when non-nil.
	Channels        *scraper.ChannelScraper
	DefaultChannels []string
	ChannelLimit    int

	// Planner enables the to-do and habit tools when non-nil.
	Planner *planner.Store

	// Feeds are read by rss_feed when the model names none. NewsSources
	// and NewsPerSource shape news_digest.
	Feeds         []string
	NewsSources   []string
	NewsPerSource int
	NewsTimeout   time.Duration
	// NewsAgent offers news_agent, a delegate that works the news tools on
	// its own.
	NewsAgent bool

	Location *time.Location
	Now      func() time.Time
}

// Build returns the tools for one chat in registration order.
func (k *Toolkit) Build(chatID string, s *scheduler.Scheduler) []Tool {
	tools := []Tool{
		NewScheduleTaskTool(s, chatID),
		NewListScheduledTasksTool(s),
		NewCancelScheduledTaskTool(s),
	}
	if k.Fetcher != nil {
		tools = append(tools,
			NewWebSearch(k.Fetcher, k.SearchURL),
			NewWebFetch(k.Fetcher),
			NewWikipedia(k.Fetcher, k.WikipediaURL),
		)
		tools = append(tools, k.newsTools()...)
	}
	if k.Channels != nil {
		tools = append(tools, NewLatestMessages(k.Channels, k.DefaultChannels, k.ChannelLimit))
	}
	if k.Planner != nil {
		tools = append(tools, NewPlannerTools(k.Planner, chatID, k.Location, k.Now)...)
	}
	return append(tools, NewCurrentTime(k.Location, k.Now))
}

func (k *Toolkit) newsTools() []Tool {
	return []Tool{
		NewRSSFeed(k.Fetcher, k.Feeds, k.Now),
		NewNewsDigest(k.Fetcher, k.NewsSources, k.NewsPerSource, k.NewsTimeout, k.Now),
	}
}

// SubAgent describes a delegate: a nested reasoning loop over its own tools,
// offered to the main loop as a single tool.
type SubAgent struct {
	Name         string
	Description  string
	Instructions string
	Category     Category
	Tools        []Tool
	Timeout      time.Duration
}

const newsAgentInstructions = `You are a news researcher working for another assistant. Gather the news the task asks for with your tools, ` +
	`then answer with a compact briefing: the main stories grouped by topic, one line each, with the source. ` +
	`Prefer news_digest for a general overview and rss_feed for a specific feed or topic. Do not invent stories.`

// SubAgents returns the delegates enabled in the toolkit.
func (k *Toolkit) SubAgents() []SubAgent {
	if !k.NewsAgent || k.Fetcher == nil {
		return nil
	}
	timeout := k.NewsTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return []SubAgent{{
		Name:         "news_agent",
		Description:  "Autonomous news researcher: fetches, categorizes and summarizes the news from several sources and returns a briefing. Give it the task in plain words.",
		Instructions: newsAgentInstructions,
		Category:     CategorySearch,
		Tools: append(k.newsTools(),
			NewWebFetch(k.Fetcher),
			NewCurrentTime(k.Location, k.Now),
		),
		Timeout: 2 * timeout,
	}}
}

// NewRegistryFor builds and seals a registry holding tools.
func NewRegistryFor(tools []Tool) (*Registry, error) {
	r := NewRegistry()
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}
