package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScriptReplaysAndRepeatsLast(t *testing.T) {
	boom := errors.New("boom")
	s := NewScript(Reply{Text: "one"}, Reply{Err: boom}, Reply{Text: "last"})
	ctx := context.Background()

	want := []struct {
		text string
		err  error
	}{
		{"one", nil},
		{"", boom},
		{"last", nil},
		{"last", nil},
	}
	for i, w := range want {
		resp, err := s.Chat(ctx, &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
		if !errors.Is(err, w.err) {
			t.Fatalf("call %d error = %v, want %v", i, err, w.err)
		}
		if err == nil && resp.Text() != w.text {
			t.Errorf("call %d Text() = %q, want %q", i, resp.Text(), w.text)
		}
	}
	if s.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", s.Calls())
	}
}

func TestScriptDelayHonoursContext(t *testing.T) {
	s := NewScript(Reply{Text: "slow", Delay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Chat(ctx, &ChatRequest{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestDummy(t *testing.T) {
	d := NewDummy("")
	resp, err := d.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "first\nQuestion: hello\n\n"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got, want := resp.Text(), "Final Answer: Dummy response: Question: hello"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestRateLimitedMinDelay(t *testing.T) {
	r := NewRateLimited(NewScriptText("ok"), 0, 30*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := r.Chat(ctx, &ChatRequest{}); err != nil {
			t.Fatalf("Chat: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %s, want >= 60ms", elapsed)
	}
	if r.Name() != "script" {
		t.Errorf("Name() = %q, want %q", r.Name(), "script")
	}
}

func TestRateLimitedCancelled(t *testing.T) {
	r := NewRateLimited(NewScriptText("ok"), 1, 0)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := r.Chat(ctx, &ChatRequest{}); err != nil {
		t.Fatalf("first Chat: %v", err)
	}
	cancel()
	if _, err := r.Chat(ctx, &ChatRequest{}); err == nil {
		t.Error("expected error after cancel")
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New(context.Background(), Config{Name: "nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := New(context.Background(), Config{Name: "anthropic"}); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestAlternateTurns(t *testing.T) {
	got := alternateTurns([]Message{
		{Role: "assistant", Content: "greeting"},
		{Role: "user", Content: "remind me at 5"},
		{Role: "user", Content: "Observation: scheduled"},
		{Role: "assistant", Content: "   "},
		{Role: "assistant", Content: "Final Answer: done"},
		{Role: "system", Content: "note"},
	})
	want := []Message{
		{Role: "user", Content: "remind me at 5\n\nObservation: scheduled"},
		{Role: "assistant", Content: "Final Answer: done"},
		{Role: "user", Content: "note"},
	}
	if len(got) != len(want) {
		t.Fatalf("alternateTurns() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
