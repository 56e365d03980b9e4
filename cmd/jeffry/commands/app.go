package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jeffryhq/jeffry/internal/agent"
	"github.com/jeffryhq/jeffry/internal/assistant"
	"github.com/jeffryhq/jeffry/internal/channel"
	"github.com/jeffryhq/jeffry/internal/config"
	"github.com/jeffryhq/jeffry/internal/logging"
	"github.com/jeffryhq/jeffry/internal/planner"
	"github.com/jeffryhq/jeffry/internal/provider"
	"github.com/jeffryhq/jeffry/internal/scheduler"
	"github.com/jeffryhq/jeffry/internal/scraper"
	"github.com/jeffryhq/jeffry/internal/session"
	"github.com/jeffryhq/jeffry/internal/tool"
)

// app holds everything a front-end command needs to run the assistant.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	loc      *time.Location
	kit      *tool.Toolkit
	provider provider.Provider

	closers []func() error
}

type appOptions struct {
	// quietLog keeps logs off the terminal, e.g. while the TUI owns it.
	quietLog bool
	// noProvider skips model setup for commands that only inspect tools.
	noProvider bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagProvider != "" {
		cfg.Defaults.Provider = flagProvider
	}
	if flagModel != "" {
		p := cfg.Provider[cfg.Defaults.Provider]
		p.Model = flagModel
		cfg.Provider[cfg.Defaults.Provider] = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Ensure directories exist
	if err := config.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logCfg := cfg.Logging
	if opts.quietLog && logCfg.File == "" {
		logCfg.File = filepath.Join(config.LogsDir(), "jeffry.log")
	}
	log, closeLog, err := logging.New(logCfg, logging.Options{Verbose: verbose, Quiet: opts.quietLog})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	a := &app{cfg: cfg, log: log, closers: []func() error{closeLog}}

	a.loc, err = cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.buildToolkit(); err != nil {
		a.Close()
		return nil, err
	}

	if !opts.noProvider {
		if err := a.buildProvider(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) buildToolkit() error {
	fetcher := scraper.NewFetcher(a.cfg.Search.Timeout.Duration, a.cfg.Search.UserAgent)
	a.kit = &tool.Toolkit{
		Fetcher:         fetcher,
		SearchURL:       a.cfg.Search.DuckDuckGoURL,
		WikipediaURL:    a.cfg.Search.WikipediaURL,
		Channels:        scraper.NewChannelScraper(fetcher, a.cfg.Scraper.BaseURL),
		DefaultChannels: a.cfg.Scraper.Channels,
		ChannelLimit:    a.cfg.Scraper.Limit,
		Feeds:           a.cfg.News.Feeds,
		NewsSources:     a.cfg.News.Sources,
		NewsPerSource:   a.cfg.News.MaxPerSource,
		NewsTimeout:     a.cfg.News.Timeout.Duration,
		NewsAgent:       a.cfg.News.Agent,
		Location:        a.loc,
		Now:             time.Now,
	}

	if a.cfg.Planner.Enabled {
		store, err := planner.New(a.cfg.Planner.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open planner: %w", err)
		}
		a.kit.Planner = store
		a.closers = append(a.closers, store.Close)
	}
	return nil
}

func (a *app) buildProvider(ctx context.Context) error {
	name := a.cfg.Defaults.Provider
	pc := a.cfg.ProviderFor(name)

	p, err := provider.New(ctx, provider.Config{
		Name:    name,
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s provider: %w", name, err)
	}
	if c, ok := p.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	if rl := a.cfg.RateLimit; rl.Enabled {
		p = provider.NewRateLimited(p, rl.RequestsPerMinute, rl.MinDelay.Duration)
	}
	a.provider = p
	a.log.Info("provider_ready", "provider", name, "model", pc.Model)
	return nil
}

func (a *app) agentConfig() agent.Config {
	ac := a.cfg.Agent
	orDefault := func(d config.Duration) time.Duration {
		if d.Duration > 0 {
			return d.Duration
		}
		return ac.CallTimeout.Duration
	}
	return agent.Config{
		Persona:       a.cfg.Defaults.Persona,
		Model:         a.cfg.ProviderFor(a.cfg.Defaults.Provider).Model,
		MaxIterations: ac.MaxIterations,
		ParseRetries:  ac.ParseRetries,
		ModelRetries:  ac.ModelRetries,
		ModelTimeout:  orDefault(ac.ModelTimeout),
		ToolTimeout:   orDefault(ac.ToolTimeout),
		RetryBackoff:  ac.RetryBackoff.Duration,
		MaxTokens:     ac.MaxTokens,
		Temperature:   ac.Temperature,
		MemoryWindow:  a.cfg.Memory.Window,
		Location:      a.loc,
	}
}

func (a *app) schedulerOptions() []scheduler.Option {
	opts := []scheduler.Option{scheduler.WithLocation(a.loc)}
	if d := a.cfg.Scheduler.PollInterval.Duration; d > 0 {
		opts = append(opts, scheduler.WithPollInterval(d))
	}
	if d := a.cfg.Scheduler.MinLead.Duration; d > 0 {
		opts = append(opts, scheduler.WithMinLead(d))
	}
	return opts
}

// assistant builds the front-end for ch together with its session manager.
func (a *app) assistant(ch channel.Channel, thinking string) (*assistant.Assistant, *session.Manager) {
	front := assistant.New(assistant.Config{
		Channel:  ch,
		Persona:  a.cfg.Defaults.Persona,
		Thinking: thinking,
		Logger:   a.log,
	})
	opts := append([]session.Option{
		session.WithLogger(a.log),
		session.WithSchedulerOptions(a.schedulerOptions()...),
	}, front.SessionOptions()...)

	mgr := session.NewManager(a.provider, a.agentConfig(), a.kit, opts...)
	front.Attach(mgr)
	return front, mgr
}

// Close releases the provider, planner database and log file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
