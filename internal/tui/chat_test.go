package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel() (ChatModel, chan string) {
	send := make(chan string, 1)
	m := NewChatModel("Jeffry", "local", send, make(chan ChatMessage))
	m.now = func() time.Time { return time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC) }
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(ChatModel), send
}

func TestRenderMessage(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		msg     ChatMessage
		contain []string
	}{
		{ChatMessage{Role: "user", Content: "hi", At: at}, []string{"You", "09:30", "hi"}},
		{ChatMessage{Role: "assistant", Content: "hello!", At: at}, []string{"Jeffry", "hello!"}},
		{ChatMessage{Role: "tool", Tool: "web_search", Content: "{\"query\":\"go\"}\nmore"}, []string{"web_search", `{"query":"go"}`}},
		{ChatMessage{Role: "reminder", Content: "call Bob", At: at}, []string{"Reminder", "call Bob"}},
		{ChatMessage{Role: "error", Content: "boom"}, []string{"Error:", "boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.msg.Role, func(t *testing.T) {
			got := renderMessage("Jeffry", tt.msg)
			for _, want := range tt.contain {
				if !strings.Contains(got, want) {
					t.Errorf("renderMessage = %q, want it to contain %q", got, want)
				}
			}
		})
	}
	if got := renderMessage("Jeffry", ChatMessage{Role: "tool", Content: "x\nmore"}); strings.Contains(got, "more") {
		t.Errorf("tool line not cut at first line: %q", got)
	}
	if got := renderMessage("Jeffry", ChatMessage{Role: "done"}); got != "" {
		t.Errorf("done rendered as %q", got)
	}
}

func TestBusyUntilDone(t *testing.T) {
	m, _ := newTestModel()
	m.input.SetValue("remind me in 10 minutes")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(ChatModel)
	if !m.busy || cmd == nil {
		t.Fatalf("busy = %v, cmd = %v after Enter", m.busy, cmd)
	}
	if len(m.messages) != 1 || m.messages[0].Role != "user" {
		t.Fatalf("messages = %+v", m.messages)
	}

	next, _ = m.Update(replyMsg{Role: "reminder", Content: "stretch!"})
	m = next.(ChatModel)
	if !m.busy {
		t.Error("reminder ended the pending reply")
	}

	next, _ = m.Update(replyMsg{Role: "assistant", Content: "Done, reminder set."})
	m = next.(ChatModel)
	next, _ = m.Update(replyMsg{Role: "done"})
	m = next.(ChatModel)
	if m.busy {
		t.Error("still busy after done")
	}
	if len(m.messages) != 3 {
		t.Errorf("messages = %d, want 3", len(m.messages))
	}
	if !strings.Contains(m.View(), "Done, reminder set.") {
		t.Errorf("View missing reply:\n%s", m.View())
	}
}

func TestEmptyInputIgnored(t *testing.T) {
	m, _ := newTestModel()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if next.(ChatModel).busy {
		t.Error("empty input started a reply")
	}
}
