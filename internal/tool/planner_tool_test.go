package tool

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jeffryhq/jeffry/internal/planner"
)

func plannerTools(t *testing.T, owner string, store *planner.Store) map[string]Tool {
	t.Helper()
	tools := map[string]Tool{}
	for _, tl := range NewPlannerTools(store, owner, time.UTC, func() time.Time { return toolNow }) {
		if tl.Category() != CategoryPlanner {
			t.Errorf("%s category = %q, want planner", tl.Name(), tl.Category())
		}
		tools[tl.Name()] = tl
	}
	return tools
}

func TestPlannerTodoTools(t *testing.T) {
	store, err := planner.New(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("planner.New: %v", err)
	}
	defer store.Close()

	mine := plannerTools(t, "42", store)
	theirs := plannerTools(t, "7", store)

	res := exec(t, mine["todo_add"], `{"title":"file taxes","priority":9,"due":"tomorrow at 5pm"}`)
	if res.IsError {
		t.Fatalf("todo_add: %s", res.Content)
	}
	if !strings.Contains(res.Content, "p9 file taxes (due Tue Mar 11 17:00)") {
		t.Errorf("todo_add = %q", res.Content)
	}
	id := regexp.MustCompile(`todo_[0-9a-f]{8}`).FindString(res.Content)
	if id == "" {
		t.Fatalf("no id in %q", res.Content)
	}

	exec(t, mine["todo_add"], `{"title":"buy milk"}`)

	res = exec(t, mine["todo_add"], `{"title":"x","due":"someday"}`)
	if !res.IsError {
		t.Errorf("bad due accepted: %s", res.Content)
	}

	res = exec(t, mine["todo_list"], ``)
	if !strings.HasPrefix(res.Content, "2 to-do item(s):\n- "+id) {
		t.Errorf("todo_list = %q", res.Content)
	}
	if res := exec(t, theirs["todo_list"], `{}`); res.Content != "No to-do items found." {
		t.Errorf("other owner sees %q", res.Content)
	}

	if res := exec(t, theirs["todo_complete"], `{"id":"`+id+`"}`); !res.IsError {
		t.Errorf("other owner completed %s: %s", id, res.Content)
	}
	res = exec(t, mine["todo_complete"], `{"id":"`+id+`"}`)
	if res.IsError || !strings.Contains(res.Content, "[completed]") {
		t.Errorf("todo_complete = %+v", res)
	}

	res = exec(t, mine["todo_list"], `{}`)
	if strings.Contains(res.Content, id) {
		t.Errorf("completed item still open:\n%s", res.Content)
	}
	res = exec(t, mine["todo_list"], `{"status":"completed"}`)
	if !strings.Contains(res.Content, id) {
		t.Errorf("completed filter:\n%s", res.Content)
	}
	res = exec(t, mine["todo_list"], `{"query":"MILK"}`)
	if !strings.Contains(res.Content, "buy milk") || strings.Contains(res.Content, "taxes") {
		t.Errorf("query filter:\n%s", res.Content)
	}
	if res := exec(t, mine["todo_list"], `{"status":"later"}`); !res.IsError {
		t.Errorf("unknown status accepted: %s", res.Content)
	}
}

func TestPlannerHabitTools(t *testing.T) {
	store, err := planner.New(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("planner.New: %v", err)
	}
	defer store.Close()
	tools := plannerTools(t, "42", store)

	if res := exec(t, tools["habit_list"], `{}`); res.Content != "No habits tracked yet." {
		t.Errorf("empty habit_list = %q", res.Content)
	}

	res := exec(t, tools["habit_add"], `{"name":"water plants","frequency":"interval","interval_days":3}`)
	if res.IsError || !strings.Contains(res.Content, "'water plants' (every 3 days)") {
		t.Fatalf("habit_add = %+v", res)
	}
	id := regexp.MustCompile(`habit_[0-9a-f]{8}`).FindString(res.Content)

	if res := exec(t, tools["habit_add"], `{"name":"water plants","frequency":"interval"}`); !res.IsError {
		t.Errorf("interval without days accepted: %s", res.Content)
	}

	res = exec(t, tools["habit_done"], `{"id":"`+id+`"}`)
	if res.IsError || !strings.Contains(res.Content, "streak is now 1") {
		t.Errorf("habit_done = %+v", res)
	}

	res = exec(t, tools["habit_list"], `{}`)
	if !strings.Contains(res.Content, id+" water plants (every 3 days): streak 1") {
		t.Errorf("habit_list = %q", res.Content)
	}
}
