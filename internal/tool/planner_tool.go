package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeffryhq/jeffry/internal/planner"
	"github.com/jeffryhq/jeffry/internal/scheduler"
)

// plannerTool carries what every planner tool needs: the store, the owner
// whose items it touches and the clock for due dates.
type plannerTool struct {
	store *planner.Store
	owner string
	loc   *time.Location
	now   func() time.Time
}

// NewPlannerTools returns the to-do and habit tools bound to one owner.
func NewPlannerTools(store *planner.Store, owner string, loc *time.Location, now func() time.Time) []Tool {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	base := plannerTool{store: store, owner: owner, loc: loc, now: now}
	return []Tool{
		&TodoAddTool{base},
		&TodoListTool{base},
		&TodoCompleteTool{base},
		&HabitAddTool{base},
		&HabitListTool{base},
		&HabitDoneTool{base},
	}
}

func (plannerTool) Category() Category {
	return CategoryPlanner
}

func (p plannerTool) formatTodo(todo planner.Todo) string {
	line := fmt.Sprintf("- %s [%s] p%d %s", todo.ID, todo.Status, todo.Priority, todo.Title)
	if todo.Due != nil {
		line += " (due " + todo.Due.In(p.loc).Format("Mon Jan 02 15:04") + ")"
	}
	if todo.Notes != "" {
		line += ": " + truncateString(todo.Notes, 100)
	}
	return line
}

// TodoAddTool adds an item to the to-do list.
type TodoAddTool struct{ plannerTool }

func (t *TodoAddTool) Name() string {
	return "todo_add"
}

func (t *TodoAddTool) Description() string {
	return "Add an item to the user's to-do list. Use schedule_task instead when the user wants to be reminded at a time."
}

func (t *TodoAddTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "description": "What needs doing"},
			"notes": {"type": "string", "description": "Optional details"},
			"priority": {"type": "integer", "description": "1 (low) to 10 (high), default 5"},
			"due": {"type": "string", "description": "Optional due time, same formats as schedule_task run_at"}
		},
		"required": ["title"]
	}`)
}

type todoAddParams struct {
	Title    string `json:"title"`
	Notes    string `json:"notes"`
	Priority int    `json:"priority"`
	Due      string `json:"due"`
}

func (t *TodoAddTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p todoAddParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}

	var due *time.Time
	if strings.TrimSpace(p.Due) != "" {
		d, err := scheduler.ParseTime(p.Due, t.loc, t.now())
		if err != nil {
			return &Result{Content: fmt.Sprintf("Invalid due date: %v", err), IsError: true}, nil
		}
		due = &d
	}

	todo, err := t.store.AddTodo(ctx, t.owner, p.Title, p.Notes, p.Priority, due)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Could not add to-do: %v", err), IsError: true}, nil
	}
	return &Result{Content: "Added to-do:\n" + t.formatTodo(*todo)}, nil
}

// TodoListTool lists to-do items.
type TodoListTool struct{ plannerTool }

func (t *TodoListTool) Name() string {
	return "todo_list"
}

func (t *TodoListTool) Description() string {
	return "List the user's to-do items, highest priority first. Shows open items unless a status is given."
}

func (t *TodoListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {"type": "string", "description": "open (default), pending, in_progress, completed, cancelled or all"},
			"query": {"type": "string", "description": "Only items whose title or notes contain this text"}
		}
	}`)
}

type todoListParams struct {
	Status string `json:"status"`
	Query  string `json:"query"`
}

func (t *TodoListTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p todoListParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}

	var (
		todos []planner.Todo
		err   error
	)
	if q := strings.TrimSpace(p.Query); q != "" {
		todos, err = t.store.SearchTodos(ctx, t.owner, q)
	} else {
		var statuses []planner.Status
		switch p.Status {
		case "", "open":
			statuses = []planner.Status{planner.StatusPending, planner.StatusInProgress}
		case "all":
		default:
			st, perr := planner.ParseStatus(p.Status)
			if perr != nil {
				return &Result{Content: perr.Error(), IsError: true}, nil
			}
			statuses = []planner.Status{st}
		}
		todos, err = t.store.ListTodos(ctx, t.owner, statuses...)
	}
	if err != nil {
		return &Result{Content: fmt.Sprintf("Could not list to-dos: %v", err), IsError: true}, nil
	}
	if len(todos) == 0 {
		return &Result{Content: "No to-do items found."}, nil
	}

	lines := make([]string, len(todos))
	for i, todo := range todos {
		lines[i] = t.formatTodo(todo)
	}
	return &Result{Content: fmt.Sprintf("%d to-do item(s):\n%s", len(todos), strings.Join(lines, "\n"))}, nil
}

// TodoCompleteTool changes the status of a to-do item.
type TodoCompleteTool struct{ plannerTool }

func (t *TodoCompleteTool) Name() string {
	return "todo_complete"
}

func (t *TodoCompleteTool) Description() string {
	return "Mark a to-do item as completed (or set another status such as in_progress or cancelled)."
}

func (t *TodoCompleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "string", "description": "The to-do id, e.g. todo_1a2b3c4d"},
			"status": {"type": "string", "description": "New status, default completed"}
		},
		"required": ["id"]
	}`)
}

type todoCompleteParams struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (t *TodoCompleteTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p todoCompleteParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}
	if p.ID == "" {
		return &Result{Content: "id is required", IsError: true}, nil
	}

	status := planner.StatusCompleted
	if p.Status != "" {
		st, err := planner.ParseStatus(p.Status)
		if err != nil {
			return &Result{Content: err.Error(), IsError: true}, nil
		}
		status = st
	}

	todo, err := t.store.SetTodoStatus(ctx, t.owner, p.ID, status)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Could not update to-do: %v", err), IsError: true}, nil
	}
	return &Result{Content: "Updated to-do:\n" + t.formatTodo(*todo)}, nil
}

// HabitAddTool starts tracking a habit.
type HabitAddTool struct{ plannerTool }

func (t *HabitAddTool) Name() string {
	return "habit_add"
}

func (t *HabitAddTool) Description() string {
	return "Start tracking a recurring habit (daily, weekly, or every N days)."
}

func (t *HabitAddTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "The habit, e.g. 'stretch for 10 minutes'"},
			"frequency": {"type": "string", "description": "daily (default), weekly or interval"},
			"interval_days": {"type": "integer", "description": "Days between sessions for interval habits"}
		},
		"required": ["name"]
	}`)
}

type habitAddParams struct {
	Name         string `json:"name"`
	Frequency    string `json:"frequency"`
	IntervalDays int    `json:"interval_days"`
}

func (t *HabitAddTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p habitAddParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}
	freq := planner.Frequency(strings.ToLower(strings.TrimSpace(p.Frequency)))
	h, err := t.store.AddHabit(ctx, t.owner, p.Name, freq, p.IntervalDays)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Could not add habit: %v", err), IsError: true}, nil
	}
	return &Result{Content: fmt.Sprintf("Tracking habit %s '%s' (%s).", h.ID, h.Name, describeFrequency(*h))}, nil
}

// HabitListTool lists tracked habits with streaks.
type HabitListTool struct{ plannerTool }

func (t *HabitListTool) Name() string {
	return "habit_list"
}

func (t *HabitListTool) Description() string {
	return "List the user's habits with their current streak and when they were last done."
}

func (t *HabitListTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *HabitListTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	habits, err := t.store.ListHabits(ctx, t.owner, true)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Could not list habits: %v", err), IsError: true}, nil
	}
	if len(habits) == 0 {
		return &Result{Content: "No habits tracked yet."}, nil
	}

	var sb strings.Builder
	for _, h := range habits {
		last := "never"
		if h.LastDone != nil {
			last = h.LastDone.In(t.loc).Format("Mon Jan 02 15:04")
		}
		fmt.Fprintf(&sb, "- %s %s (%s): streak %d, last done %s\n", h.ID, h.Name, describeFrequency(h), h.Streak, last)
	}
	return &Result{Content: strings.TrimRight(sb.String(), "\n")}, nil
}

// HabitDoneTool records a habit completion.
type HabitDoneTool struct{ plannerTool }

func (t *HabitDoneTool) Name() string {
	return "habit_done"
}

func (t *HabitDoneTool) Description() string {
	return "Record that the user did a habit today."
}

func (t *HabitDoneTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "string", "description": "The habit id, e.g. habit_1a2b3c4d"},
			"notes": {"type": "string", "description": "Optional notes"}
		},
		"required": ["id"]
	}`)
}

type habitDoneParams struct {
	ID    string `json:"id"`
	Notes string `json:"notes"`
}

func (t *HabitDoneTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p habitDoneParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}
	if p.ID == "" {
		return &Result{Content: "id is required", IsError: true}, nil
	}
	h, err := t.store.CompleteHabit(ctx, t.owner, p.ID, p.Notes)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Could not record habit: %v", err), IsError: true}, nil
	}
	return &Result{Content: fmt.Sprintf("Nice! '%s' done, streak is now %d.", h.Name, h.Streak)}, nil
}

func describeFrequency(h planner.Habit) string {
	if h.Frequency == planner.FrequencyInterval {
		return fmt.Sprintf("every %d days", h.IntervalDays)
	}
	return string(h.Frequency)
}
