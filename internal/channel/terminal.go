package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

var (
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E"))
	traceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Terminal reads questions line by line from stdin and prints replies to
// stdout. It is the plain (non-TUI) chat front-end.
type Terminal struct {
	in      io.Reader
	out     io.Writer
	persona string
	chatID  string
	trace   bool

	lines    chan *Message
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
	awaiting atomic.Bool // a question is out and its reply is not done yet
}

type TerminalOption func(*Terminal)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) TerminalOption {
	return func(t *Terminal) { t.in, t.out = in, out }
}

// WithToolTrace prints a line for every tool call.
func WithToolTrace(on bool) TerminalOption {
	return func(t *Terminal) { t.trace = on }
}

// NewTerminal returns a terminal whose messages all carry chatID, so the
// whole terminal conversation is one session.
func NewTerminal(persona, chatID string, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		in:      os.Stdin,
		out:     os.Stdout,
		persona: persona,
		chatID:  chatID,
		lines:   make(chan *Message, 10),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Terminal) Name() string             { return "terminal" }
func (t *Terminal) Receive() <-chan *Message { return t.lines }
func (t *Terminal) Done() <-chan struct{}    { return t.done }

func (t *Terminal) Start(ctx context.Context) error {
	t.start.Do(func() {
		fmt.Fprintln(t.out, dimStyle.Render(t.persona+" is listening. /help for commands, /exit to quit."))
		go t.read(ctx)
	})
	return nil
}

func (t *Terminal) Stop() error {
	t.stop.Do(func() { close(t.done) })
	return nil
}

func (t *Terminal) read(ctx context.Context) {
	defer close(t.lines)
	sc := bufio.NewScanner(t.in)
	for {
		if ctx.Err() != nil || t.stopped() {
			return
		}
		if !t.awaiting.Load() {
			fmt.Fprint(t.out, "\n> ")
		}
		if !sc.Scan() {
			t.Stop()
			return
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit", "/exit", "/quit":
			t.Stop()
			return
		case "/clear":
			fmt.Fprint(t.out, "\033[H\033[2J")
			continue
		}

		t.awaiting.Store(true)
		select {
		case t.lines <- t.question(line):
		case <-ctx.Done():
			return
		case <-t.done:
			return
		}
	}
}

func (t *Terminal) question(line string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      "user",
		Content:   line,
		Timestamp: time.Now(),
		Metadata:  map[string]any{MetaChatID: t.chatID, MetaUserName: "you"},
	}
}

func (t *Terminal) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Send prints msg. Tool calls are shown only with tracing on; a done
// assistant reply or an error re-arms the prompt.
func (t *Terminal) Send(_ context.Context, msg *Message) error {
	speaker := speakerStyle.Render(t.persona + ": ")
	switch msg.Role {
	case "status":
		fmt.Fprintln(t.out, dimStyle.Render(msg.Content))
	case "tool":
		if t.trace {
			fmt.Fprintln(t.out, traceStyle.Render("  ⚙ "+msg.Meta(MetaTool)+" ")+dimStyle.Render(firstLine(msg.Content, 100)))
		}
	case "reminder":
		fmt.Fprintln(t.out, "\n"+traceStyle.Render("⏰ ")+speaker+msg.Content)
	case "error":
		fmt.Fprintln(t.out, failStyle.Render("[ERROR] ")+msg.Content)
		t.awaiting.Store(false)
	case "assistant":
		if msg.Content != "" {
			fmt.Fprintln(t.out, speaker+msg.Content)
		}
		if msg.IsDone {
			t.awaiting.Store(false)
		}
	}
	return nil
}

// firstLine returns the first line of s cut to max runes.
func firstLine(s string, max int) string {
	s, _, _ = strings.Cut(s, "\n")
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
