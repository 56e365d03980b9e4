package channel

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskChannel feeds one question to the assistant, prints the answer and
// closes. It backs the non-interactive `run` command.
type TaskChannel struct {
	question string
	chatID   string
	stdout   io.Writer
	stderr   io.Writer

	inbound chan *Message
	done    chan struct{}

	mu     sync.Mutex
	asked  bool
	closed bool
	answer string
	failed bool
}

// NewTaskChannel returns a channel that asks question on behalf of chatID.
func NewTaskChannel(question, chatID string) *TaskChannel {
	return &TaskChannel{
		question: question,
		chatID:   chatID,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		inbound:  make(chan *Message, 1),
		done:     make(chan struct{}),
	}
}

// SetOutput redirects answers to out and errors to errOut.
func (t *TaskChannel) SetOutput(out, errOut io.Writer) {
	t.stdout, t.stderr = out, errOut
}

func (t *TaskChannel) Name() string             { return "task" }
func (t *TaskChannel) Receive() <-chan *Message { return t.inbound }
func (t *TaskChannel) Done() <-chan struct{}    { return t.done }
func (t *TaskChannel) Stop() error              { t.close(); return nil }

// Start queues the question once. It does nothing after Stop.
func (t *TaskChannel) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.asked || t.closed {
		return nil
	}
	t.asked = true
	t.inbound <- &Message{
		ID:        uuid.New().String(),
		Role:      "user",
		Content:   t.question,
		Timestamp: time.Now(),
		Metadata:  map[string]any{MetaChatID: t.chatID},
	}
	return nil
}

// Send prints assistant replies and errors. Status, tool and reminder
// messages are not part of the answer and are dropped.
func (t *TaskChannel) Send(_ context.Context, msg *Message) error {
	switch msg.Role {
	case "assistant":
		t.record(msg.Content, msg.Meta(MetaState) == "failed")
		if msg.Content != "" {
			fmt.Fprintln(t.stdout, msg.Content)
		}
	case "error":
		t.record("", true)
		fmt.Fprintf(t.stderr, "[ERROR] %s\n", msg.Content)
	default:
		return nil
	}
	if msg.IsDone {
		t.close()
	}
	return nil
}

func (t *TaskChannel) record(text string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if text != "" {
		t.answer = text
	}
	t.failed = t.failed || failed
}

func (t *TaskChannel) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
	close(t.inbound)
}

// Answer returns the last reply text.
func (t *TaskChannel) Answer() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.answer
}

// Failed reports whether the run ended without an answer.
func (t *TaskChannel) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}
