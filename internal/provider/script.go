package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Reply is one scripted model turn.
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration
	// Respond, when set, computes the text from the request.
	Respond func(req *ChatRequest) string
}

// Script replays fixed replies in order, repeating the last one when the
// queue runs out. Useful for tests and offline runs.
type Script struct {
	mu       sync.Mutex
	replies  []Reply
	requests []ChatRequest
}

// NewScript creates a scripted provider.
func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// NewScriptText is NewScript for plain text replies.
func NewScriptText(texts ...string) *Script {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return NewScript(replies...)
}

func (s *Script) Name() string {
	return "script"
}

func (s *Script) Models() []string {
	return []string{"script"}
}

func (s *Script) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, *req)
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("script: no replies")
	}
	r := s.replies[len(s.replies)-1]
	if n < len(s.replies) {
		r = s.replies[n]
	}
	s.mu.Unlock()

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	text := r.Text
	if r.Respond != nil {
		text = r.Respond(req)
	}
	return textResponse(fmt.Sprintf("script-%d", n+1), text, "end_turn", 0, 0), nil
}

// Calls returns how many requests were made.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the received requests.
func (s *Script) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Dummy answers every prompt immediately with its last user line, without
// calling any API.
type Dummy struct {
	Prefix string
}

// NewDummy creates a dummy provider.
func NewDummy(prefix string) *Dummy {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &Dummy{Prefix: prefix}
}

func (d *Dummy) Name() string {
	return "dummy"
}

func (d *Dummy) Models() []string {
	return []string{"dummy"}
}

func (d *Dummy) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	var last string
	if n := len(req.Messages); n > 0 {
		lines := strings.Split(req.Messages[n-1].Content, "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if candidate := strings.TrimSpace(lines[i]); candidate != "" {
				last = candidate
				break
			}
		}
	}
	if last == "" {
		last = "<empty prompt>"
	}
	return textResponse("", fmt.Sprintf("Final Answer: %s %s", d.Prefix, last), "end_turn", 0, 0), nil
}
