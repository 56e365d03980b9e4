package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jeffryhq/jeffry/internal/scheduler"
)

var toolNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newSched() *scheduler.Scheduler {
	return scheduler.New(
		scheduler.WithClock(func() time.Time { return toolNow }),
		scheduler.WithLocation(time.UTC),
	)
}

func exec(t *testing.T, tl Tool, params string) *Result {
	t.Helper()
	res, err := tl.Execute(context.Background(), json.RawMessage(params))
	if err != nil {
		t.Fatalf("%s Execute: %v", tl.Name(), err)
	}
	return res
}

func TestScheduleTaskTool(t *testing.T) {
	s := newSched()
	tl := NewScheduleTaskTool(s, "99")

	tests := []struct {
		name    string
		params  string
		isError bool
		contain string
	}{
		{"ok", `{"prompt":"call Bob","run_at":"2025-03-11 09:00:00","task_name":"Call Bob"}`, false, "'call-bob' for Tue Mar 11 09:00 (in 21h)"},
		{"relative", `{"prompt":"stretch","run_at":"in 10 minutes"}`, false, "(in 10m)"},
		{"past", `{"prompt":"too late","run_at":"2025-03-09 09:00:00"}`, true, "invalid schedule time"},
		{"garbage time", `{"prompt":"x","run_at":"whenever"}`, true, "invalid schedule time"},
		{"missing prompt", `{"run_at":"in 1 hour"}`, true, "prompt is required"},
		{"missing run_at", `{"prompt":"x"}`, true, "run_at is required"},
		{"bad json", `[1,2]`, true, "Invalid parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := exec(t, tl, tt.params)
			if res.IsError != tt.isError {
				t.Errorf("IsError = %v, want %v (%s)", res.IsError, tt.isError, res.Content)
			}
			if !strings.Contains(res.Content, tt.contain) {
				t.Errorf("Content = %q, want it to contain %q", res.Content, tt.contain)
			}
		})
	}

	tasks := s.List()
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
	if tasks[0].Description != "stretch" || tasks[1].ChatID != "99" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestListAndCancelTools(t *testing.T) {
	s := newSched()
	a, _ := s.Schedule("a", "water plants", "", toolNow.Add(2*time.Hour))
	b, _ := s.Schedule("b", "call Bob", "", toolNow.Add(time.Hour))

	list := NewListScheduledTasksTool(s)
	cancel := NewCancelScheduledTaskTool(s)

	res := exec(t, list, `{}`)
	if strings.Index(res.Content, b.ID) > strings.Index(res.Content, a.ID) {
		t.Errorf("list not ordered by time:\n%s", res.Content)
	}

	res = exec(t, cancel, `{"task_id":"`+a.ID+`"}`)
	if res.IsError {
		t.Fatalf("cancel: %s", res.Content)
	}

	res = exec(t, cancel, `{"task_id":"`+a.ID+`"}`)
	if !res.IsError || !strings.Contains(res.Content, "already cancelled") {
		t.Errorf("second cancel = %+v, want already cancelled error", res)
	}
	res = exec(t, cancel, `{"task_id":"task_00000000"}`)
	if !res.IsError || !strings.Contains(res.Content, "not found") {
		t.Errorf("unknown cancel = %+v, want not found error", res)
	}

	res = exec(t, list, `{}`)
	if strings.Contains(res.Content, a.ID) {
		t.Errorf("cancelled task still listed as pending:\n%s", res.Content)
	}
	res = exec(t, list, `{"status":"cancelled"}`)
	if !strings.Contains(res.Content, a.ID) || strings.Contains(res.Content, b.ID) {
		t.Errorf("cancelled filter wrong:\n%s", res.Content)
	}
	res = exec(t, list, `{"status":"all"}`)
	if !strings.Contains(res.Content, a.ID) || !strings.Contains(res.Content, b.ID) {
		t.Errorf("all filter wrong:\n%s", res.Content)
	}
	res = exec(t, list, `{"status":"weird"}`)
	if !res.IsError {
		t.Errorf("unknown status accepted: %s", res.Content)
	}

	empty := NewListScheduledTasksTool(newSched())
	if res := exec(t, empty, ``); res.Content != "No scheduled tasks found." {
		t.Errorf("empty list = %q", res.Content)
	}
}
