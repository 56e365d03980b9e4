package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "planner.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestTodoLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2025, 3, 12, 17, 0, 0, 0, time.UTC)
	low, err := s.AddTodo(ctx, "42", "buy milk", "", 2, nil)
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	high, err := s.AddTodo(ctx, "42", "file taxes", "before friday", 9, &due)
	if err != nil {
		t.Fatalf("AddTodo: %v", err)
	}
	if _, err := s.AddTodo(ctx, "other", "not mine", "", 0, nil); err != nil {
		t.Fatalf("AddTodo: %v", err)
	}

	if low.Status != StatusPending || low.Priority != 2 {
		t.Errorf("new todo = %+v", low)
	}

	todos, err := s.ListTodos(ctx, "42")
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("len(todos) = %d, want 2 (owner scoped)", len(todos))
	}
	if todos[0].ID != high.ID {
		t.Errorf("first todo = %q, want highest priority %q", todos[0].Title, high.Title)
	}
	if todos[0].Due == nil || !todos[0].Due.Equal(due) {
		t.Errorf("Due = %v, want %v", todos[0].Due, due)
	}
	if todos[0].Notes != "before friday" {
		t.Errorf("Notes = %q", todos[0].Notes)
	}

	done, err := s.SetTodoStatus(ctx, "42", low.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("SetTodoStatus: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Errorf("completed todo = %+v", done)
	}

	pending, _ := s.ListTodos(ctx, "42", StatusPending, StatusInProgress)
	if len(pending) != 1 || pending[0].ID != high.ID {
		t.Errorf("pending = %+v", pending)
	}

	if _, err := s.SetTodoStatus(ctx, "other", high.ID, StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetTodoStatus by other owner error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetTodo(ctx, "42", "todo_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTodo error = %v, want ErrNotFound", err)
	}
	if _, err := s.AddTodo(ctx, "42", "  ", "", 0, nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("AddTodo(blank) error = %v, want ErrInvalid", err)
	}

	found, _ := s.SearchTodos(ctx, "42", "TAXES")
	if len(found) != 1 || found[0].ID != high.ID {
		t.Errorf("SearchTodos = %+v", found)
	}
}

func TestTodoPriorityClamp(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		in, want int
	}{
		{0, 5}, {-3, 1}, {11, 10}, {7, 7},
	}
	for _, tt := range tests {
		todo, err := s.AddTodo(context.Background(), "1", "x", "", tt.in, nil)
		if err != nil {
			t.Fatalf("AddTodo: %v", err)
		}
		if todo.Priority != tt.want {
			t.Errorf("priority %d -> %d, want %d", tt.in, todo.Priority, tt.want)
		}
	}
}

func TestHabitStreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	clock := time.Date(2025, 3, 8, 7, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	h, err := s.AddHabit(ctx, "42", "stretch", "", 0)
	if err != nil {
		t.Fatalf("AddHabit: %v", err)
	}
	if h.Frequency != FrequencyDaily {
		t.Errorf("Frequency = %q, want daily", h.Frequency)
	}

	for _, day := range []int{8, 9, 9, 10} {
		clock = time.Date(2025, 3, day, 7, 0, 0, 0, time.UTC)
		if _, err := s.CompleteHabit(ctx, "42", h.ID, ""); err != nil {
			t.Fatalf("CompleteHabit: %v", err)
		}
	}

	clock = time.Date(2025, 3, 11, 20, 0, 0, 0, time.UTC)
	habits, err := s.ListHabits(ctx, "42", true)
	if err != nil {
		t.Fatalf("ListHabits: %v", err)
	}
	if len(habits) != 1 {
		t.Fatalf("len(habits) = %d, want 1", len(habits))
	}
	if habits[0].Streak != 3 {
		t.Errorf("Streak = %d, want 3 (ends yesterday)", habits[0].Streak)
	}
	if habits[0].LastDone == nil || habits[0].LastDone.Day() != 10 {
		t.Errorf("LastDone = %v", habits[0].LastDone)
	}

	clock = time.Date(2025, 3, 13, 8, 0, 0, 0, time.UTC)
	habits, _ = s.ListHabits(ctx, "42", true)
	if habits[0].Streak != 0 {
		t.Errorf("Streak after a missed day = %d, want 0", habits[0].Streak)
	}

	if _, err := s.CompleteHabit(ctx, "other", h.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteHabit by other owner error = %v, want ErrNotFound", err)
	}
}

func TestAddHabitValidation(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name     string
		habit    string
		freq     Frequency
		interval int
		wantErr  bool
	}{
		{"daily", "read", FrequencyDaily, 0, false},
		{"weekly", "call mom", FrequencyWeekly, 0, false},
		{"interval", "water plants", FrequencyInterval, 3, false},
		{"interval without days", "water plants", FrequencyInterval, 0, true},
		{"unknown frequency", "read", "hourly", 0, true},
		{"blank", "", FrequencyDaily, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddHabit(context.Background(), "1", tt.habit, tt.freq, tt.interval)
			if (err != nil) != tt.wantErr {
				t.Errorf("AddHabit error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" Completed "); err != nil || st != StatusCompleted {
		t.Errorf("ParseStatus = %q, %v", st, err)
	}
	if _, err := ParseStatus("done-ish"); !errors.Is(err, ErrInvalid) {
		t.Errorf("ParseStatus error = %v, want ErrInvalid", err)
	}
}
