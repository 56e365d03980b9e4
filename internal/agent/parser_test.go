package agent

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    ActionKind
		tool    string
		args    string
		text    string
		thought string
	}{
		{
			name:  "final answer",
			input: "Final Answer: 42",
			kind:  ActionFinalAnswer,
			text:  "42",
		},
		{
			name:    "final answer with thought and trailing space",
			input:   "Thought: I know this.\nFinal Answer: It is sunny.\n\n",
			kind:    ActionFinalAnswer,
			text:    "It is sunny.",
			thought: "I know this.",
		},
		{
			name:    "tool call",
			input:   "Thought: search it\nAction: web_search\nAction Input: {\"query\": \"golang\"}",
			kind:    ActionToolCall,
			tool:    "web_search",
			args:    `{"query":"golang"}`,
			thought: "search it",
		},
		{
			name:  "code fenced input",
			input: "Action: wikipedia\nAction Input: ```json\n{\"query\": \"Ada Lovelace\"}\n```",
			kind:  ActionToolCall,
			tool:  "wikipedia",
			args:  `{"query":"Ada Lovelace"}`,
		},
		{
			name:  "single quoted pseudo json",
			input: "Action: cancel_scheduled_task\nAction Input: {'task_id': 'task_1234abcd'}",
			kind:  ActionToolCall,
			tool:  "cancel_scheduled_task",
			args:  `{"task_id":"task_1234abcd"}`,
		},
		{
			name:  "quoted object",
			input: "Action: current_time\nAction Input: '{}'",
			kind:  ActionToolCall,
			tool:  "current_time",
			args:  `{}`,
		},
		{
			name:  "json surrounded by prose",
			input: "Action: web_search\nAction Input: here you go {\"query\": \"a}b\"} thanks",
			kind:  ActionToolCall,
			tool:  "web_search",
			args:  `{"query":"a}b"}`,
		},
		{
			name:  "markdown decorated markers",
			input: "**Action:** `list_scheduled_tasks`\n**Action Input:** {}",
			kind:  ActionToolCall,
			tool:  "list_scheduled_tasks",
			args:  `{}`,
		},
		{
			name:  "hallucinated observation is cut",
			input: "Action: web_search\nAction Input: {\"query\": \"x\"}\nObservation: made up\nFinal Answer: made up too",
			kind:  ActionToolCall,
			tool:  "web_search",
			args:  `{"query":"x"}`,
		},
		{
			name:  "lowercase markers",
			input: "final answer: ok",
			kind:  ActionFinalAnswer,
			text:  "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %s, want %s (reason %q)", got.Kind, tt.kind, got.Reason)
			}
			if got.Tool != tt.tool {
				t.Errorf("Tool = %q, want %q", got.Tool, tt.tool)
			}
			if string(got.Input) != tt.args {
				t.Errorf("Input = %s, want %s", got.Input, tt.args)
			}
			if got.Text != tt.text {
				t.Errorf("Text = %q, want %q", got.Text, tt.text)
			}
			if got.Thought != tt.thought {
				t.Errorf("Thought = %q, want %q", got.Thought, tt.thought)
			}
			if got.Err() != nil {
				t.Errorf("Err() = %v, want nil", got.Err())
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"neither marker", "I think the weather is nice.", "no action or final answer found"},
		{"both markers", "Action: web_search\nAction Input: {}\nFinal Answer: done", "both final answer and action present"},
		{"empty final answer", "Final Answer:   ", "empty final answer"},
		{"missing input", "Action: web_search", "action input missing"},
		{"invalid json", "Action: web_search\nAction Input: golang news", "action input is not valid JSON"},
		{"empty input", "Action: web_search\nAction Input:", "action input is empty"},
		{"tool name with spaces", "Action: search the web\nAction Input: {}", "action has no tool name"},
		{"empty", "", "no action or final answer found"},
		{
			"two actions",
			"Action: web_search\nAction Input: {\"query\": \"go\"}\nAction: wikipedia\nAction Input: {\"query\": \"go\"}",
			"more than one action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Kind != ActionParseFailure {
				t.Fatalf("Kind = %s, want parse_failure", got.Kind)
			}
			if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
			if got.Raw != tt.input {
				t.Errorf("Raw = %q, want input", got.Raw)
			}
			if got.Tool != "" || got.Input != nil {
				t.Errorf("failure carries tool call %q %s", got.Tool, got.Input)
			}
			if !errors.Is(got.Err(), ErrParseFailure) {
				t.Errorf("Err() = %v, want ErrParseFailure", got.Err())
			}
		})
	}
}
