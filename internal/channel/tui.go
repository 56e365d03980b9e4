package channel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TUIMessage is one transcript entry handed to the chat screen. Role is
// one of user, assistant, tool, reminder, error or done; done carries no
// content and ends the busy state of the screen.
type TUIMessage struct {
	Role    string
	Content string
	Tool    string
	At      time.Time
}

// TUIChannel connects the assistant to an interactive chat screen. The
// screen writes lines to UserInput and renders whatever TUIOutput yields.
type TUIChannel struct {
	chatID string
	now    func() time.Time

	lines   chan string
	screen  chan TUIMessage
	inbound chan *Message

	once    sync.Once
	stop    sync.Once
	stopped chan struct{}
}

// NewTUIChannel returns a channel whose messages all belong to chatID.
func NewTUIChannel(chatID string) *TUIChannel {
	return &TUIChannel{
		chatID:  chatID,
		now:     time.Now,
		lines:   make(chan string, 10),
		screen:  make(chan TUIMessage, 100),
		inbound: make(chan *Message, 10),
		stopped: make(chan struct{}),
	}
}

func (t *TUIChannel) UserInput() chan<- string     { return t.lines }
func (t *TUIChannel) TUIOutput() <-chan TUIMessage { return t.screen }
func (t *TUIChannel) Name() string                 { return "tui" }
func (t *TUIChannel) Receive() <-chan *Message     { return t.inbound }
func (t *TUIChannel) Done() <-chan struct{}        { return t.stopped }

// Start begins turning typed lines into user messages. Calling it again
// is a no-op.
func (t *TUIChannel) Start(ctx context.Context) error {
	t.once.Do(func() { go t.pump(ctx) })
	return nil
}

func (t *TUIChannel) pump(ctx context.Context) {
	defer close(t.inbound)
	for {
		var line string
		select {
		case <-ctx.Done():
			return
		case <-t.stopped:
			return
		case line = <-t.lines:
		}

		msg := &Message{
			ID:        uuid.New().String(),
			Role:      "user",
			Content:   line,
			Timestamp: t.now(),
			Metadata:  map[string]any{MetaChatID: t.chatID},
		}
		select {
		case t.inbound <- msg:
		case <-ctx.Done():
			return
		case <-t.stopped:
			return
		}
	}
}

// Send translates an outgoing message into screen entries. Status
// messages are dropped since the screen draws its own spinner.
func (t *TUIChannel) Send(ctx context.Context, msg *Message) error {
	at := msg.Timestamp
	if at.IsZero() {
		at = t.now()
	}

	var entries []TUIMessage
	switch msg.Role {
	case "tool":
		entries = append(entries, TUIMessage{Role: "tool", Tool: msg.Meta(MetaTool), Content: msg.Content})
	case "reminder":
		entries = append(entries, TUIMessage{Role: "reminder", Content: msg.Content})
	case "error":
		entries = append(entries, TUIMessage{Role: "error", Content: msg.Content}, TUIMessage{Role: "done"})
	case "assistant":
		if msg.Content != "" {
			entries = append(entries, TUIMessage{Role: "assistant", Content: msg.Content})
		}
		if msg.IsDone {
			entries = append(entries, TUIMessage{Role: "done"})
		}
	}

	for _, e := range entries {
		e.At = at
		select {
		case t.screen <- e:
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stopped:
			return nil
		}
	}
	return nil
}

func (t *TUIChannel) Stop() error {
	t.stop.Do(func() { close(t.stopped) })
	return nil
}
