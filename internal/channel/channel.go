// Package channel defines the messaging channel interface.
package channel

import (
	"context"
	"fmt"
	"time"
)

// Channel is any messaging surface (terminal, telegram, tui, one-shot task).
type Channel interface {
	// Start initializes the channel and begins receiving messages.
	Start(ctx context.Context) error

	// Send sends a message through the channel.
	Send(ctx context.Context, msg *Message) error

	// Receive returns a channel for incoming messages.
	Receive() <-chan *Message

	// Stop gracefully shuts down the channel.
	Stop() error

	// Name returns the channel identifier.
	Name() string
}

// Metadata keys set by transports.
const (
	MetaChatID   = "chat_id"
	MetaChatType = "chat_type"
	MetaUserID   = "user_id"
	MetaUserName = "user_name"
	MetaUsername = "username"
	MetaTool     = "tool"
	MetaState    = "state"
	MetaReplyTo  = "reply_to" // id of the message being answered
)

// Message represents a chat message.
type Message struct {
	ID        string
	Role      string // "user", "assistant", "status", "tool", "reminder", "error"
	Content   string
	Timestamp time.Time
	Metadata  map[string]any

	// IsDone marks the last message of a reply.
	IsDone bool
}

// Meta returns a metadata value as a string.
func (m *Message) Meta(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	switch v := m.Metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ChatID returns the chat the message belongs to.
func (m *Message) ChatID() string {
	return m.Meta(MetaChatID)
}

// ReplyTo builds a message addressed to the same chat as m.
func (m *Message) ReplyTo(role, content string) *Message {
	reply := &Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	if id := m.ChatID(); id != "" {
		reply.Metadata = withMeta(reply.Metadata, MetaChatID, id)
	}
	if m.ID != "" {
		reply.Metadata = withMeta(reply.Metadata, MetaReplyTo, m.ID)
	}
	return reply
}

func withMeta(meta map[string]any, key string, value any) map[string]any {
	if meta == nil {
		meta = make(map[string]any)
	}
	meta[key] = value
	return meta
}
