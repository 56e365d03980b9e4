// Package assistant connects a messaging channel to per-chat sessions.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeffryhq/jeffry/internal/agent"
	"github.com/jeffryhq/jeffry/internal/channel"
	"github.com/jeffryhq/jeffry/internal/scheduler"
	"github.com/jeffryhq/jeffry/internal/session"
	"github.com/jeffryhq/jeffry/internal/tool"
)

// DefaultThinking is the status text shown while a reply is computed.
const DefaultThinking = "🤔 Thinking..."

// Assistant reads user messages from a channel and answers them through
// the session of the chat they come from.
type Assistant struct {
	channel  channel.Channel
	sessions *session.Manager
	persona  string
	thinking string
	logger   *slog.Logger

	wg sync.WaitGroup
}

// Config holds assistant configuration.
type Config struct {
	Channel  channel.Channel
	Sessions *session.Manager
	Persona  string

	// Thinking is sent as a status message before each run. Empty disables it.
	Thinking string
	Logger   *slog.Logger
}

// New creates a new assistant.
func New(cfg Config) *Assistant {
	if cfg.Persona == "" {
		cfg.Persona = "Jeffry"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Assistant{
		channel:  cfg.Channel,
		sessions: cfg.Sessions,
		persona:  cfg.Persona,
		thinking: cfg.Thinking,
		logger:   cfg.Logger.With("channel", cfg.Channel.Name()),
	}
}

// Attach sets the session manager. Sessions need the assistant's delivery
// hooks, so the manager is usually built after the assistant.
func (a *Assistant) Attach(m *session.Manager) {
	a.sessions = m
}

// SessionOptions returns the manager options that route reminders and tool
// events back to this assistant's channel.
func (a *Assistant) SessionOptions() []session.Option {
	return []session.Option{
		session.WithDeliver(a.Deliver),
		session.WithObserver(a.Observe),
	}
}

// Deliver sends a reminder answer to a chat.
func (a *Assistant) Deliver(ctx context.Context, chatID, text string) error {
	return a.channel.Send(ctx, &channel.Message{
		Role:     "reminder",
		Content:  text,
		Metadata: map[string]any{channel.MetaChatID: chatID},
	})
}

// Observe forwards tool calls of a run to the chat that started it.
func (a *Assistant) Observe(s *session.Session, ev agent.Event) {
	if ev.Kind != agent.EventToolCall {
		return
	}
	input := strings.TrimSpace(string(ev.Input))
	_ = a.channel.Send(context.Background(), &channel.Message{
		Role:    "tool",
		Content: input,
		Metadata: map[string]any{
			channel.MetaChatID: s.ChatID,
			channel.MetaTool:   ev.Tool,
		},
	})
}

// Run starts the channel and handles messages until the channel closes or
// ctx is cancelled. Messages are handled concurrently; one session still
// answers its messages in order.
func (a *Assistant) Run(ctx context.Context) error {
	if a.sessions == nil {
		return fmt.Errorf("assistant: no session manager attached")
	}
	if err := a.channel.Start(ctx); err != nil {
		return fmt.Errorf("failed to start channel: %w", err)
	}
	defer a.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-a.channel.Receive():
			if !ok {
				return nil
			}
			a.wg.Add(1)
			go func(msg *channel.Message) {
				defer a.wg.Done()
				if err := a.handleMessage(ctx, msg); err != nil {
					a.logger.Error("message_failed", "chat_id", msg.ChatID(), "error", err.Error())
					reply := msg.ReplyTo("error", agent.FailureReply)
					reply.IsDone = true
					_ = a.channel.Send(ctx, reply)
				}
			}(msg)
		}
	}
}

func (a *Assistant) handleMessage(ctx context.Context, msg *channel.Message) error {
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		reply := msg.ReplyTo("assistant", a.command(msg, text))
		reply.IsDone = true
		return a.channel.Send(ctx, reply)
	}

	sessionID := a.conversationID(msg)
	log := a.logger.With("session_id", sessionID)
	log.Info("message_received", "user", msg.Meta(channel.MetaUserName), "length", len(text))

	if a.thinking != "" {
		if err := a.channel.Send(ctx, msg.ReplyTo("status", a.thinking)); err != nil {
			log.Warn("status_send_failed", "error", err.Error())
		}
	}

	out, err := a.sessions.Ask(ctx, sessionID, msg.ChatID(), text)
	if err != nil {
		return err
	}
	log.Info("message_answered", "state", out.State.String(), "steps", out.Iterations, "tool_calls", out.ToolCalls)

	reply := msg.ReplyTo("assistant", out.Reply())
	reply.IsDone = true
	if out.State == agent.StateFailed {
		reply.Metadata = withMeta(reply.Metadata, channel.MetaState, "failed")
	}
	return a.channel.Send(ctx, reply)
}

// conversationID keys sessions by transport and chat, so the same chat id on
// two transports never shares memory.
func (a *Assistant) conversationID(msg *channel.Message) string {
	chatID := msg.ChatID()
	if chatID == "" {
		chatID = "default"
	}
	return a.channel.Name() + ":" + chatID
}

func (a *Assistant) command(msg *channel.Message, text string) string {
	name := strings.Fields(text)[0]
	if i := strings.Index(name, "@"); i > 0 {
		name = name[:i] // /help@jeffry_bot
	}

	switch strings.ToLower(name) {
	case "/start":
		who := msg.Meta(channel.MetaUserName)
		if who == "" {
			who = "there"
		}
		return fmt.Sprintf("Hi %s! I'm %s, your personal assistant bot.\n\n"+
			"I can search the web and Wikipedia, read the latest posts of public channels, "+
			"keep your to-dos and habits, and remind you of things at the time you ask.\n\n"+
			"Just write to me. Use /help to see the available commands.", who, a.persona)
	case "/help":
		return "Available commands:\n" +
			"/start - Start the bot\n" +
			"/help - Show this help message\n" +
			"/info - Get information about you and this chat\n" +
			"/tasks - List your pending reminders\n" +
			"/sessions - List open conversations (local chats only)\n\n" +
			"Anything else is answered by " + a.persona + "."
	case "/info":
		return a.info(msg)
	case "/tasks":
		return a.tasks(msg)
	case "/sessions":
		return a.listSessions()
	default:
		return fmt.Sprintf("Unknown command %s. Use /help to see the available commands.", name)
	}
}

func (a *Assistant) info(msg *channel.Message) string {
	field := func(v string) string {
		if v == "" {
			return "-"
		}
		return v
	}
	username := msg.Meta(channel.MetaUsername)
	if username != "" {
		username = "@" + username
	}
	return fmt.Sprintf("User information:\n"+
		"Name: %s\nUsername: %s\nUser ID: %s\nChat ID: %s\nChat Type: %s\nSession: %s",
		field(msg.Meta(channel.MetaUserName)),
		field(username),
		field(msg.Meta(channel.MetaUserID)),
		field(msg.ChatID()),
		field(msg.Meta(channel.MetaChatType)),
		a.conversationID(msg))
}

func (a *Assistant) tasks(msg *channel.Message) string {
	s, ok := a.sessions.Lookup(a.conversationID(msg))
	if !ok {
		return "No scheduled tasks found."
	}
	pending := s.Scheduler.List(scheduler.StatusPending)
	if len(pending) == 0 {
		return "No scheduled tasks found."
	}
	return "Scheduled tasks:\n" + tool.FormatTasks(pending, s.Scheduler)
}

// listSessions describes the open conversations. Bot transports serve many
// users, so there it refuses rather than reveal other chats.
func (a *Assistant) listSessions() string {
	if a.channel.Name() == "telegram" {
		return "/sessions is only available in a local chat."
	}
	all := a.sessions.List()
	if len(all) == 0 {
		return "No open sessions."
	}
	var b strings.Builder
	b.WriteString("Open sessions:\n")
	for _, s := range all {
		pending := len(s.Scheduler.List(scheduler.StatusPending))
		fmt.Fprintf(&b, "- %s (chat %s), last active %s, %d pending reminder(s)\n",
			s.ID, s.ChatID, lastActive(s.LastActive()), pending)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func lastActive(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}

func withMeta(meta map[string]any, key string, value any) map[string]any {
	if meta == nil {
		meta = make(map[string]any)
	}
	meta[key] = value
	return meta
}
