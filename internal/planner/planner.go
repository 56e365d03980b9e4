// Package planner provides SQLite-backed to-do items and habits.
package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when an item does not exist for the owner.
	ErrNotFound = errors.New("planner item not found")
	// ErrInvalid is returned for malformed input.
	ErrInvalid = errors.New("invalid planner item")
)

// Status is the state of a to-do item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus maps user input to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalid, s)
}

// Todo is a one-off task on the user's list.
type Todo struct {
	ID          string
	Owner       string
	Title       string
	Notes       string
	Priority    int
	Status      Status
	Due         *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Frequency says how often a habit repeats.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyInterval Frequency = "interval"
)

// Habit is a recurring activity the user tracks.
type Habit struct {
	ID           string
	Owner        string
	Name         string
	Frequency    Frequency
	IntervalDays int
	Active       bool
	CreatedAt    time.Time
	LastDone     *time.Time
	Streak       int
}

// Store provides access to the planner database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS todos (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		title TEXT NOT NULL,
		notes TEXT,
		priority INTEGER NOT NULL DEFAULT 5,
		status TEXT NOT NULL DEFAULT 'pending',
		due_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS habits (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		frequency TEXT NOT NULL,
		interval_days INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS habit_completions (
		id TEXT PRIMARY KEY,
		habit_id TEXT NOT NULL,
		notes TEXT,
		completed_at DATETIME NOT NULL,
		FOREIGN KEY (habit_id) REFERENCES habits(id)
	);

	CREATE INDEX IF NOT EXISTS idx_todos_owner_status ON todos(owner, status);
	CREATE INDEX IF NOT EXISTS idx_habits_owner ON habits(owner);
	CREATE INDEX IF NOT EXISTS idx_completions_habit ON habit_completions(habit_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// --- To-do Operations ---

// AddTodo creates a pending to-do. priority is clamped to 1..10 (5 when 0).
func (s *Store) AddTodo(ctx context.Context, owner, title, notes string, priority int, due *time.Time) (*Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	switch {
	case priority == 0:
		priority = 5
	case priority < 1:
		priority = 1
	case priority > 10:
		priority = 10
	}

	now := s.now()
	todo := &Todo{
		ID:        newID("todo_"),
		Owner:     owner,
		Title:     title,
		Notes:     notes,
		Priority:  priority,
		Status:    StatusPending,
		Due:       due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (id, owner, title, notes, priority, status, due_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID, todo.Owner, todo.Title, todo.Notes, todo.Priority, todo.Status, nullTime(due), todo.CreatedAt, todo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	return todo, nil
}

// GetTodo returns one of owner's to-dos.
func (s *Store) GetTodo(ctx context.Context, owner, id string) (*Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, title, notes, priority, status, due_at, created_at, updated_at, completed_at
		FROM todos WHERE id = ? AND owner = ?`, id, owner)
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query todo: %w", err)
	}
	return todo, nil
}

// ListTodos returns owner's to-dos with the given statuses (all when none),
// by priority then due date.
func (s *Store) ListTodos(ctx context.Context, owner string, statuses ...Status) ([]Todo, error) {
	query := `SELECT id, owner, title, notes, priority, status, due_at, created_at, updated_at, completed_at
		FROM todos WHERE owner = ?`
	args := []any{owner}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY priority DESC, due_at IS NULL, due_at, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

// SetTodoStatus moves a to-do to status, stamping completion time.
func (s *Store) SetTodoStatus(ctx context.Context, owner, id string, status Status) (*Todo, error) {
	now := s.now()
	var completed any
	if status == StatusCompleted {
		completed = now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET status = ?, updated_at = ?, completed_at = ? WHERE id = ? AND owner = ?`,
		status, now, completed, id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.GetTodo(ctx, owner, id)
}

// SearchTodos matches title or notes case-insensitively.
func (s *Store) SearchTodos(ctx context.Context, owner, query string) ([]Todo, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, title, notes, priority, status, due_at, created_at, updated_at, completed_at
		FROM todos WHERE owner = ? AND (lower(title) LIKE ? OR lower(notes) LIKE ?)
		ORDER BY created_at`, owner, like, like)
	if err != nil {
		return nil, fmt.Errorf("search todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (*Todo, error) {
	var todo Todo
	var notes sql.NullString
	var due, completed sql.NullTime
	if err := row.Scan(&todo.ID, &todo.Owner, &todo.Title, &notes, &todo.Priority, &todo.Status,
		&due, &todo.CreatedAt, &todo.UpdatedAt, &completed); err != nil {
		return nil, err
	}
	todo.Notes = notes.String
	if due.Valid {
		todo.Due = &due.Time
	}
	if completed.Valid {
		todo.CompletedAt = &completed.Time
	}
	return &todo, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// --- Habit Operations ---

// AddHabit starts tracking a habit. intervalDays is required for FrequencyInterval.
func (s *Store) AddHabit(ctx context.Context, owner, name string, freq Frequency, intervalDays int) (*Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	switch freq {
	case "":
		freq = FrequencyDaily
	case FrequencyDaily, FrequencyWeekly:
	case FrequencyInterval:
		if intervalDays <= 0 {
			return nil, fmt.Errorf("%w: interval habits need interval_days > 0", ErrInvalid)
		}
	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalid, freq)
	}

	h := &Habit{
		ID:           newID("habit_"),
		Owner:        owner,
		Name:         name,
		Frequency:    freq,
		IntervalDays: intervalDays,
		Active:       true,
		CreatedAt:    s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habits (id, owner, name, frequency, interval_days, active, created_at) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		h.ID, h.Owner, h.Name, h.Frequency, h.IntervalDays, h.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	return h, nil
}

// ListHabits returns owner's habits with their last completion and current
// streak of consecutive days.
func (s *Store) ListHabits(ctx context.Context, owner string, activeOnly bool) ([]Habit, error) {
	query := `SELECT id, owner, name, frequency, interval_days, active, created_at FROM habits WHERE owner = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("query habits: %w", err)
	}
	var habits []Habit
	for rows.Next() {
		var h Habit
		var active int
		if err := rows.Scan(&h.ID, &h.Owner, &h.Name, &h.Frequency, &h.IntervalDays, &active, &h.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		h.Active = active == 1
		habits = append(habits, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range habits {
		days, err := s.completionDays(ctx, habits[i].ID)
		if err != nil {
			return nil, err
		}
		if len(days) > 0 {
			last := days[0]
			habits[i].LastDone = &last
		}
		habits[i].Streak = streak(days, s.now())
	}
	return habits, nil
}

// CompleteHabit records that the habit was done now.
func (s *Store) CompleteHabit(ctx context.Context, owner, id, notes string) (*Habit, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM habits WHERE id = ? AND owner = ?`, id, owner).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query habit: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO habit_completions (id, habit_id, notes, completed_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), id, notes, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}

	habits, err := s.ListHabits(ctx, owner, false)
	if err != nil {
		return nil, err
	}
	for i := range habits {
		if habits[i].ID == id {
			return &habits[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// completionDays returns completion times, newest first.
func (s *Store) completionDays(ctx context.Context, habitID string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT completed_at FROM habit_completions WHERE habit_id = ? ORDER BY completed_at DESC`, habitID)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// streak counts consecutive calendar days with a completion, ending today or
// yesterday. times must be newest first.
func streak(times []time.Time, now time.Time) int {
	day := func(t time.Time) time.Time {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if len(times) == 0 {
		return 0
	}
	cursor := day(now)
	if day(times[0]).Before(cursor) {
		cursor = cursor.AddDate(0, 0, -1)
	}
	n := 0
	for _, t := range times {
		d := day(t)
		switch {
		case d.Equal(cursor):
			n++
			cursor = cursor.AddDate(0, 0, -1)
		case d.After(cursor):
			// same day as the previous completion
		default:
			return n
		}
	}
	return n
}
