// Package tui renders the assistant chat as a bubbletea program.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ChatMessage is one entry of the transcript.
type ChatMessage struct {
	Role    string // "user", "assistant", "tool", "reminder", "error", "done"
	Content string
	Tool    string // tool name if Role == "tool"
	At      time.Time
}

// ChatModel is the bubbletea model for the chat.
type ChatModel struct {
	input    textarea.Model
	history  viewport.Model
	spinner  spinner.Model
	persona  string
	chatID   string
	now      func() time.Time
	messages []ChatMessage

	// busy is set from a sent message until its reply is done.
	busy   bool
	width  int
	height int
	ready  bool

	send    chan<- string
	replies <-chan ChatMessage
}

type replyMsg ChatMessage
type closedMsg struct{}

// NewChatModel creates a chat model that writes user lines to send and
// renders everything read from replies.
func NewChatModel(persona, chatID string, send chan<- string, replies <-chan ChatMessage) ChatModel {
	in := textarea.New()
	in.Placeholder = "Ask " + persona + " something, or /help"
	in.Focus()
	in.CharLimit = 4000
	in.SetHeight(2)
	in.ShowLineNumbers = false
	in.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = personaLabelStyle

	return ChatModel{
		input:   in,
		history: viewport.New(80, 20),
		spinner: sp,
		persona: persona,
		chatID:  chatID,
		now:     time.Now,
		send:    send,
		replies: replies,
	}
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.nextReply())
}

func (m ChatModel) nextReply() tea.Cmd {
	replies := m.replies
	return func() tea.Msg {
		msg, ok := <-replies
		if !ok {
			return closedMsg{}
		}
		return replyMsg(msg)
	}
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlL:
			m.messages = nil
			m.refresh()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.history, cmd = m.history.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case replyMsg:
		m.receive(ChatMessage(msg))
		cmds = append(cmds, m.nextReply())

	case closedMsg:
		m.busy = false
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.busy {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m ChatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if m.busy || text == "" {
		return m, nil
	}
	if text == "/exit" || text == "/quit" {
		return m, tea.Quit
	}
	m.input.Reset()
	m.busy = true
	m.messages = append(m.messages, ChatMessage{Role: "user", Content: text, At: m.now()})
	m.refresh()

	send := m.send
	return m, func() tea.Msg {
		send <- text
		return nil
	}
}

// receive adds a transcript entry. Reminders can arrive at any time and
// never end the current reply.
func (m *ChatModel) receive(msg ChatMessage) {
	if msg.At.IsZero() {
		msg.At = m.now()
	}
	switch msg.Role {
	case "done":
		m.busy = false
		return
	case "error":
		m.busy = false
	}
	m.messages = append(m.messages, msg)
	m.refresh()
}

func (m *ChatModel) resize(width, height int) {
	m.width, m.height = width, height

	// header, divider, status line, input box and help
	chrome := 1 + 1 + 1 + 4 + 1
	h := height - chrome
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.history = viewport.New(width, h)
		m.ready = true
	} else {
		m.history.Width = width
		m.history.Height = h
	}
	m.input.SetWidth(width - 4)
	m.refresh()
}

func (m *ChatModel) refresh() {
	var b strings.Builder
	for _, msg := range m.messages {
		b.WriteString(renderMessage(m.persona, msg))
	}
	m.history.SetContent(b.String())
	m.history.GotoBottom()
}

func renderMessage(persona string, msg ChatMessage) string {
	stamp := mutedStyle.Render(msg.At.Format("15:04"))
	switch msg.Role {
	case "user":
		return userLabelStyle.Render("You") + " " + stamp + "\n" + bodyStyle.Render(msg.Content) + "\n\n"
	case "assistant":
		return personaLabelStyle.Render(persona) + " " + stamp + "\n" + bodyStyle.Render(msg.Content) + "\n\n"
	case "tool":
		line := "⚙ " + msg.Tool
		if args := firstLine(msg.Content, 80); args != "" {
			line += " " + args
		}
		return "  " + toolLineStyle.Render(line) + "\n"
	case "reminder":
		head := bellStyle.Render("⏰ Reminder") + " " + stamp
		return reminderStyle.Render(head+"\n"+msg.Content) + "\n\n"
	case "error":
		return errorStyle.Render("Error: ") + msg.Content + "\n\n"
	default:
		return ""
	}
}

func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len([]rune(s)) > max {
		s = string([]rune(s)[:max]) + "…"
	}
	return s
}

func (m ChatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.persona) + mutedStyle.Render(fmt.Sprintf("  personal assistant · chat %s", m.chatID)) + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(m.width, 1))) + "\n")
	b.WriteString(m.history.View() + "\n")

	if m.busy {
		b.WriteString(m.spinner.View() + " " + mutedStyle.Render(m.persona+" is thinking...") + "\n")
		b.WriteString(inputBusyStyle.Render(m.input.View()) + "\n")
	} else {
		b.WriteString("\n")
		b.WriteString(inputStyle.Render(m.input.View()) + "\n")
	}

	b.WriteString(mutedStyle.Render("Enter send · PgUp/PgDn scroll · Ctrl+L clear · /tasks reminders · Esc quit"))
	return b.String()
}

// RunChat runs the chat until the user quits or replies is closed.
func RunChat(persona, chatID string, send chan<- string, replies <-chan ChatMessage) error {
	p := tea.NewProgram(NewChatModel(persona, chatID, send, replies), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
