// Package config handles configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeffryhq/jeffry/internal/news"
)

// Config represents the jeffry configuration.
type Config struct {
	Defaults  DefaultsConfig            `toml:"defaults"`
	Provider  map[string]ProviderConfig `toml:"provider"`
	Agent     AgentConfig               `toml:"agent"`
	Memory    MemoryConfig              `toml:"memory"`
	Scheduler SchedulerConfig           `toml:"scheduler"`
	RateLimit RateLimitConfig           `toml:"rate_limit"`
	Channel   ChannelsConfig            `toml:"channel"`
	Search    SearchConfig              `toml:"search"`
	Scraper   ScraperConfig             `toml:"scraper"`
	Planner   PlannerConfig             `toml:"planner"`
	News      NewsConfig                `toml:"news"`
	Logging   LoggingConfig             `toml:"logging"`
}

// DefaultsConfig holds default settings.
type DefaultsConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	Persona  string `toml:"persona"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// AgentConfig holds reasoning loop limits.
type AgentConfig struct {
	MaxIterations int      `toml:"max_iterations"`
	ParseRetries  int      `toml:"parse_retries"`
	ModelRetries  int      `toml:"model_retries"`
	RetryBackoff  Duration `toml:"retry_backoff"`

	// CallTimeout applies to model and tool calls that have no own timeout.
	CallTimeout  Duration `toml:"call_timeout"`
	ModelTimeout Duration `toml:"model_timeout"`
	ToolTimeout  Duration `toml:"tool_timeout"`

	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// MemoryConfig holds conversation memory settings.
type MemoryConfig struct {
	Window int `toml:"window"`
}

// SchedulerConfig holds task scheduler settings.
type SchedulerConfig struct {
	Timezone     string   `toml:"timezone"`
	PollInterval Duration `toml:"poll_interval"`
	MinLead      Duration `toml:"min_lead"`
}

// RateLimitConfig throttles model requests.
type RateLimitConfig struct {
	Enabled           bool     `toml:"enabled"`
	MinDelay          Duration `toml:"min_delay"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
}

// ChannelsConfig holds per-transport settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Enabled     bool     `toml:"enabled"`
	Token       string   `toml:"token"`
	APIBase     string   `toml:"api_base"`
	PollTimeout Duration `toml:"poll_timeout"`
	Thinking    string   `toml:"thinking"`
}

// SearchConfig holds web search and Wikipedia settings.
type SearchConfig struct {
	DuckDuckGoURL string   `toml:"duckduckgo_url"`
	WikipediaURL  string   `toml:"wikipedia_url"`
	UserAgent     string   `toml:"user_agent"`
	Timeout       Duration `toml:"timeout"`
}

// ScraperConfig holds public channel reader settings.
type ScraperConfig struct {
	BaseURL  string   `toml:"base_url"`
	Channels []string `toml:"channels"`
	Limit    int      `toml:"limit"`
}

// PlannerConfig holds the to-do and habit store settings.
type PlannerConfig struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// NewsConfig holds the feed reader and news digest settings.
type NewsConfig struct {
	Feeds        []string `toml:"feeds"`
	Sources      []string `toml:"sources"`
	MaxPerSource int      `toml:"max_per_source"`
	Timeout      Duration `toml:"timeout"`
	Agent        bool     `toml:"agent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Duration is a time.Duration written as a string ("8s", "1m30s").
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{d}
}

func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return []byte(""), nil
	}
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// Load reads configuration from path (or the default location when path is
// empty) and applies environment overrides. A missing default file is not an
// error; a missing explicit one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	configPath := path
	if configPath == "" {
		configPath = ConfigPath()
	}
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if path != "" {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg.applyEnv()
	cfg.expandPaths()
	return cfg, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if p := os.Getenv("JEFFRY_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(StateDir(), "config.toml")
}

// StateDir returns the jeffry state directory.
func StateDir() string {
	if p := os.Getenv("JEFFRY_STATE_DIR"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".jeffry")
}

// LogsDir returns the logs directory.
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Persona:  "Jeffry",
		},
		Provider: make(map[string]ProviderConfig),
		Agent: AgentConfig{
			MaxIterations: 10,
			ModelRetries:  2,
			RetryBackoff:  D(time.Second),
			CallTimeout:   D(8 * time.Second),
			Temperature:   0.1,
			MaxTokens:     1024,
		},
		Memory: MemoryConfig{Window: 10},
		Scheduler: SchedulerConfig{
			PollInterval: D(5 * time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 15,
		},
		Channel: ChannelsConfig{
			Telegram: TelegramConfig{
				APIBase:     "https://api.telegram.org",
				PollTimeout: D(30 * time.Second),
				Thinking:    "🤔 Thinking...",
			},
		},
		Search: SearchConfig{
			DuckDuckGoURL: "https://html.duckduckgo.com/html/",
			WikipediaURL:  "https://en.wikipedia.org",
			UserAgent:     "Mozilla/5.0 (compatible; jeffry/1.0)",
			Timeout:       D(8 * time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL: "https://t.me/s/",
			Limit:   10,
		},
		Planner: PlannerConfig{
			Enabled: true,
			DBPath:  "~/.jeffry/planner.db",
		},
		News: NewsConfig{
			Sources:      []string{"general", "technology", "business"},
			MaxPerSource: 8,
			Timeout:      D(time.Minute),
			Agent:        true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// providerEnv maps provider names to their API key variables.
var providerEnv = []struct {
	name string
	vars []string
}{
	{"gemini", []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}},
	{"anthropic", []string{"ANTHROPIC_API_KEY"}},
	{"openai", []string{"OPENAI_API_KEY"}},
	{"openrouter", []string{"OPENROUTER_API_KEY"}},
}

func (c *Config) applyEnv() {
	if c.Provider == nil {
		c.Provider = make(map[string]ProviderConfig)
	}
	for _, pe := range providerEnv {
		for _, v := range pe.vars {
			if key := os.Getenv(v); key != "" {
				p := c.Provider[pe.name]
				p.APIKey = key
				c.Provider[pe.name] = p
				break
			}
		}
	}

	// Ollama
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		p := c.Provider["ollama"]
		p.BaseURL = host
		c.Provider["ollama"] = p
	}

	// Telegram
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Channel.Telegram.Token = token
		c.Channel.Telegram.Enabled = true
	}

	if name := os.Getenv("JEFFRY_PROVIDER"); name != "" {
		c.Defaults.Provider = name
	}
	if model := os.Getenv("JEFFRY_MODEL"); model != "" {
		c.Defaults.Model = model
	}
	if level := os.Getenv("JEFFRY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expand := func(p string) string {
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		if strings.HasPrefix(p, "$HOME/") {
			return filepath.Join(home, p[6:])
		}
		return p
	}

	c.Planner.DBPath = expand(c.Planner.DBPath)
	c.Logging.File = expand(c.Logging.File)
}

// Validate reports settings the assistant cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations))
	}
	if c.Agent.ParseRetries < 0 || c.Agent.ModelRetries < 0 {
		errs = append(errs, errors.New("agent retries must not be negative"))
	}
	if c.Memory.Window < 0 {
		errs = append(errs, fmt.Errorf("memory.window must not be negative, got %d", c.Memory.Window))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_minute must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.level %q", c.Logging.Level))
	}
	if c.News.MaxPerSource < 0 {
		errs = append(errs, fmt.Errorf("news.max_per_source must not be negative, got %d", c.News.MaxPerSource))
	}
	if _, unknown := news.ResolveSources(c.News.Sources); len(unknown) > 0 {
		errs = append(errs, fmt.Errorf("unknown news.sources %v (known: %s)", unknown, strings.Join(news.SourceNames(), ", ")))
	}
	if c.Channel.Telegram.Enabled && c.Channel.Telegram.Token == "" {
		errs = append(errs, errors.New("channel.telegram is enabled without a token"))
	}
	return errors.Join(errs...)
}

// Location returns the scheduler timezone, the local zone when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// ProviderFor returns the settings of the named provider with the default
// model filled in.
func (c *Config) ProviderFor(name string) ProviderConfig {
	p := c.Provider[name]
	if p.Model == "" && name == c.Defaults.Provider {
		p.Model = c.Defaults.Model
	}
	return p
}

// Save writes the config to file.
func (c *Config) Save() error {
	configPath := ConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// EnsureDirs creates necessary directories.
func EnsureDirs() error {
	dirs := []string{
		StateDir(),
		LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return nil
}
