// Package session keeps one assistant state per conversation: its memory,
// its scheduled tasks, its tools and the reasoning loop that ties them.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeffryhq/jeffry/internal/agent"
	"github.com/jeffryhq/jeffry/internal/memory"
	"github.com/jeffryhq/jeffry/internal/provider"
	"github.com/jeffryhq/jeffry/internal/scheduler"
	"github.com/jeffryhq/jeffry/internal/tool"
)

// Toolset builds the tools of one session.
type Toolset interface {
	Build(chatID string, s *scheduler.Scheduler) []tool.Tool
}

// SubAgentSource is implemented by toolsets that also offer delegates. Each
// delegate becomes one tool of the session, running its own nested loop.
type SubAgentSource interface {
	SubAgents() []tool.SubAgent
}

// DeliverFunc sends a reminder answer to a chat.
type DeliverFunc func(ctx context.Context, chatID, text string) error

// Session represents one user's conversation.
type Session struct {
	ID        string
	ChatID    string
	Memory    *memory.Memory
	Scheduler *scheduler.Scheduler
	Tools     *tool.Registry
	Executor  *agent.Executor
	CreatedAt time.Time

	runMu      sync.Mutex
	mu         sync.Mutex
	lastActive time.Time
}

// LastActive returns when the session last handled a message.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger passed to sessions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDeliver sets where reminder answers are sent.
func WithDeliver(d DeliverFunc) Option {
	return func(m *Manager) { m.deliver = d }
}

// WithSchedulerOptions adds options applied to every session scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(m *Manager) { m.schedOpts = append(m.schedOpts, opts...) }
}

// Observer receives executor events together with the session they belong to.
type Observer func(s *Session, ev agent.Event)

// WithObserver forwards executor events of every session.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithClock overrides the clock used for reminders and executor prompts.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager creates sessions on first use and keeps them for the process lifetime.
type Manager struct {
	provider  provider.Provider
	agentCfg  agent.Config
	toolset   Toolset
	schedOpts []scheduler.Option
	observer  Observer
	deliver   DeliverFunc
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	ctx      context.Context
	started  bool
}

// NewManager creates a new session manager.
func NewManager(p provider.Provider, cfg agent.Config, toolset Toolset, opts ...Option) *Manager {
	m := &Manager{
		provider: p,
		agentCfg: cfg,
		toolset:  toolset,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateID returns a fresh chat id of the form YYYYMMDD-HHMMSS-xxxx,
// used when a local chat is started without one.
func GenerateID() string {
	return time.Now().Format("20060102-150405") + "-" + uuid.New().String()[:4]
}

// Get returns the session with id, creating it for chatID if needed.
func (m *Manager) Get(id, chatID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	s, err := m.newSession(id, chatID)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s

	if m.started {
		if err := s.Scheduler.Start(m.ctx); err != nil {
			return nil, fmt.Errorf("start scheduler: %w", err)
		}
	}
	m.logger.Info("session_created", "session_id", id, "chat_id", chatID, "tools", s.Tools.Len())
	return s, nil
}

// Lookup returns an existing session.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns all sessions, most recently active first.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActive().After(sessions[j].LastActive())
	})
	return sessions
}

func (m *Manager) newSession(id, chatID string) (*Session, error) {
	log := m.logger.With("session_id", id)

	opts := append([]scheduler.Option{scheduler.WithLogger(log)}, m.schedOpts...)
	sched := scheduler.New(opts...)

	cfg := m.agentCfg
	cfg.ChatID = chatID
	if cfg.Location == nil {
		cfg.Location = sched.Location()
	}

	tools := m.toolset.Build(chatID, sched)
	if src, ok := m.toolset.(SubAgentSource); ok {
		for _, spec := range src.SubAgents() {
			d, err := agent.NewDelegate(m.provider, spec, cfg, agent.WithLogger(log), agent.WithClock(m.now))
			if err != nil {
				return nil, fmt.Errorf("build delegate: %w", err)
			}
			tools = append(tools, d)
		}
	}
	reg, err := tool.NewRegistryFor(tools)
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}

	s := &Session{
		ID:        id,
		ChatID:    chatID,
		Memory:    memory.New(),
		Scheduler: sched,
		Tools:     reg,
		CreatedAt: m.now(),
	}

	execOpts := []agent.Option{agent.WithLogger(log), agent.WithClock(m.now)}
	if m.observer != nil {
		observe := m.observer
		execOpts = append(execOpts, agent.WithObserver(func(ev agent.Event) { observe(s, ev) }))
	}
	s.Executor = agent.New(m.provider, reg, s.Memory, cfg, execOpts...)
	sched.SetRunner(func(ctx context.Context, task scheduler.Task) {
		m.remind(ctx, s, task)
	})
	return s, nil
}

// Ask runs one message through the session's reasoning loop. Runs of one
// session are serialized.
func (m *Manager) Ask(ctx context.Context, id, chatID, text string) (*agent.Outcome, error) {
	s, err := m.Get(id, chatID)
	if err != nil {
		return nil, err
	}
	return s.ask(ctx, text, m.now()), nil
}

func (s *Session) ask(ctx context.Context, text string, now time.Time) *agent.Outcome {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
	return s.Executor.Run(ctx, text)
}

// ReminderPrompt is the message a fired task replays into its session.
func ReminderPrompt(task scheduler.Task, now time.Time) string {
	return fmt.Sprintf("Current time: %s (%s).\nFrom chat_id: %s, scheduled task reminder: %s",
		now.Format("2006-01-02 15:04:05"), now.Format("MST"), task.ChatID, task.Description)
}

func (m *Manager) remind(ctx context.Context, s *Session, task scheduler.Task) {
	log := m.logger.With("session_id", s.ID, "task_id", task.ID)
	now := m.now().In(s.Scheduler.Location())

	out := s.ask(ctx, ReminderPrompt(task, now), now)
	log.Info("reminder_run", "state", out.State.String(), "steps", out.Iterations)

	if m.deliver == nil {
		return
	}
	chatID := task.ChatID
	if chatID == "" {
		chatID = s.ChatID
	}
	if err := m.deliver(ctx, chatID, out.Reply()); err != nil {
		log.Warn("reminder_delivery_failed", "chat_id", chatID, "error", err.Error())
	}
}

// Start starts the scheduler of every current and future session.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.started = true
	m.ctx = ctx
	for _, s := range m.sessions {
		if err := s.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler %s: %w", s.ID, err)
		}
	}
	return nil
}

// Stop stops all schedulers and waits for running reminders.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()

	for _, s := range m.List() {
		s.Scheduler.Stop()
		m.logger.Info("session_closed",
			"session_id", s.ID,
			"last_active", s.LastActive(),
			"pending_tasks", len(s.Scheduler.List(scheduler.StatusPending)),
		)
	}
}
