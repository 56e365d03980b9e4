// Package memory keeps the ordered conversation log of a session.
package memory

import (
	"encoding/json"
	"sync"
	"time"
)

// Kind identifies the type of a turn.
type Kind string

const (
	KindUser    Kind = "user"
	KindThought Kind = "thought"
	KindTool    Kind = "tool"
	KindFinal   Kind = "final"
)

// Turn is one entry in the conversation log.
type Turn struct {
	Kind    Kind
	RunID   string
	Content string
	At      time.Time

	// Tool invocations.
	Tool    string
	Input   json.RawMessage
	Output  string
	IsError bool

	// Set on a thought the parser rejected.
	ParseError string
}

// Memory is an append-only turn log. Entries are never edited or removed.
type Memory struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
}

// New creates an empty memory.
func New() *Memory {
	return &Memory{now: time.Now}
}

// Append adds a turn and returns its index.
func (m *Memory) Append(t Turn) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.At.IsZero() {
		t.At = m.now()
	}
	t.Input = cloneRaw(t.Input)
	m.turns = append(m.turns, t)
	return len(m.turns) - 1
}

// Len returns the number of turns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Turns returns a copy of the whole log.
func (m *Memory) Turns() []Turn {
	return m.Since(0)
}

// Since returns a copy of the turns from index i on.
func (m *Memory) Since(i int) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i < 0 {
		i = 0
	}
	if i >= len(m.turns) {
		return nil
	}
	out := make([]Turn, len(m.turns)-i)
	copy(out, m.turns[i:])
	for j := range out {
		out[j].Input = cloneRaw(out[j].Input)
	}
	return out
}

// Run returns the turns recorded under runID.
func (m *Memory) Run(runID string) []Turn {
	var out []Turn
	for _, t := range m.Turns() {
		if t.RunID == runID {
			out = append(out, t)
		}
	}
	return out
}

// History returns the user and final turns of the last window exchanges that
// ended before runID started. A window of zero or less returns every exchange.
func (m *Memory) History(window int, runID string) []Turn {
	var exchanges [][]Turn
	for _, t := range m.Turns() {
		if t.RunID == runID {
			break
		}
		switch t.Kind {
		case KindUser:
			exchanges = append(exchanges, []Turn{t})
		case KindFinal:
			if n := len(exchanges); n > 0 {
				exchanges[n-1] = append(exchanges[n-1], t)
			}
		}
	}
	if window > 0 && len(exchanges) > window {
		exchanges = exchanges[len(exchanges)-window:]
	}

	var out []Turn
	for _, ex := range exchanges {
		out = append(out, ex...)
	}
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
