package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jeffryhq/jeffry/internal/memory"
	"github.com/jeffryhq/jeffry/internal/provider"
	"github.com/jeffryhq/jeffry/internal/tool"
)

type longTool struct {
	fakeTool
	timeout time.Duration
}

func (l *longTool) Timeout() time.Duration { return l.timeout }

func TestDelegateRunsNestedLoop(t *testing.T) {
	script := provider.NewScriptText(
		"Thought: the researcher knows\nAction: researcher\nAction Input: {\"task\": \"tech news\"}",
		"Thought: check the wire\nAction: headlines\nAction Input: {}",
		"Thought: done\nFinal Answer: Briefing: Go 1.24 released.",
		"Final Answer: Big one today: Go 1.24 is out.",
	)
	var headlineCalls int
	headlines := &fakeTool{name: "headlines", fn: func(context.Context, json.RawMessage) (*tool.Result, error) {
		headlineCalls++
		return &tool.Result{Content: "Go 1.24 released (Go Blog)"}, nil
	}}

	d, err := NewDelegate(script, tool.SubAgent{
		Name:         "researcher",
		Description:  "Finds things out.",
		Instructions: "Dig up headlines and report back.",
		Tools:        []tool.Tool{headlines},
	}, Config{Location: time.UTC}, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewDelegate: %v", err)
	}
	if d.Category() != tool.CategoryUtility || d.Timeout() != 2*time.Minute {
		t.Errorf("defaults = %s %v", d.Category(), d.Timeout())
	}

	mem := memory.New()
	e := newExecutor(script, newRegistry(t, d), mem, Config{})
	out := e.Run(context.Background(), "what's new?")

	if out.State != StateFinished || out.Answer != "Big one today: Go 1.24 is out." {
		t.Fatalf("outcome = %s %q (%v)", out.State, out.Answer, out.Err)
	}
	if headlineCalls != 1 {
		t.Errorf("headline calls = %d, want 1", headlineCalls)
	}
	if n := countKind(mem.Turns(), memory.KindUser); n != 1 {
		t.Errorf("parent user turns = %d, want 1", n)
	}
	var observed string
	for _, turn := range mem.Turns() {
		if turn.Kind == memory.KindTool {
			observed = turn.Output
		}
	}
	if observed != "Briefing: Go 1.24 released." {
		t.Errorf("observation = %q", observed)
	}

	nested := script.Requests()[1]
	for _, s := range []string{"You are researcher", "## Your role\nDig up headlines", "Action: the tool to use, exactly one of [headlines]"} {
		if !strings.Contains(nested.System, s) {
			t.Errorf("nested prompt missing %q", s)
		}
	}
	if strings.Contains(script.Requests()[0].System, "## Your role") {
		t.Error("parent prompt carries delegate instructions")
	}
}

func TestDelegateReportsFailure(t *testing.T) {
	d, err := NewDelegate(provider.NewScriptText("rambling"), tool.SubAgent{Name: "researcher"}, Config{MaxIterations: 2})
	if err != nil {
		t.Fatalf("NewDelegate: %v", err)
	}

	res, err := d.Execute(context.Background(), json.RawMessage(`{"task":"anything"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError || !strings.HasPrefix(res.Content, "researcher gave up after 2 steps") {
		t.Errorf("result = %+v", res)
	}

	res, _ = d.Execute(context.Background(), json.RawMessage(`{}`))
	if !res.IsError || res.Content != "task is required" {
		t.Errorf("missing task = %+v", res)
	}

	if _, err := NewDelegate(nil, tool.SubAgent{}, Config{}); err == nil {
		t.Error("NewDelegate accepted an unnamed delegate")
	}
}

func TestDispatchHonoursLongRunningTimeout(t *testing.T) {
	slow := &longTool{
		fakeTool: fakeTool{name: "slow", fn: func(ctx context.Context, _ json.RawMessage) (*tool.Result, error) {
			select {
			case <-time.After(50 * time.Millisecond):
				return &tool.Result{Content: "made it"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}},
		timeout: time.Second,
	}
	script := provider.NewScriptText("Action: slow\nAction Input: {}", "Final Answer: ok")
	mem := memory.New()
	e := newExecutor(script, newRegistry(t, slow), mem, Config{ToolTimeout: 10 * time.Millisecond})

	if out := e.Run(context.Background(), "go"); out.State != StateFinished {
		t.Fatalf("State = %s (%v)", out.State, out.Err)
	}
	for _, turn := range mem.Turns() {
		if turn.Kind == memory.KindTool && (turn.IsError || turn.Output != "made it") {
			t.Errorf("tool turn = %+v", turn)
		}
	}
}
