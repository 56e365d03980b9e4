// Package scheduler keeps one-shot reminder tasks for a session and fires them when due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidScheduleTime is returned for unparseable or non-future times.
	ErrInvalidScheduleTime = errors.New("invalid schedule time")
	// ErrTaskNotFound is returned when a task is missing or no longer pending.
	ErrTaskNotFound = errors.New("task not found")
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// ParseStatus maps user input to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusCancelled, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Reason explains why a task lookup failed.
type Reason string

const (
	ReasonNotFound        Reason = "not found"
	ReasonAlreadyTerminal Reason = "already terminal"
)

// TaskError carries the task id and the reason a transition was refused.
type TaskError struct {
	ID     string
	Reason Reason
	Status Status
}

func (e *TaskError) Error() string {
	if e.Reason == ReasonAlreadyTerminal {
		return fmt.Sprintf("task %s is already %s", e.ID, e.Status)
	}
	return fmt.Sprintf("task %s not found", e.ID)
}

func (e *TaskError) Unwrap() error {
	return ErrTaskNotFound
}

// Task is a reminder scheduled for a single point in time.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ChatID      string    `json:"chat_id,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`

	seq uint64
}

// Runner is called with a copy of every task that fires.
type Runner func(ctx context.Context, task Task)

// Scheduler owns the task collection of one session.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	seq     uint64
	now     func() time.Time
	loc     *time.Location
	minLead time.Duration
	poll    time.Duration
	runner  Runner
	logger  *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the zone used for times written without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithMinLead requires tasks to be at least d in the future.
func WithMinLead(d time.Duration) Option {
	return func(s *Scheduler) { s.minLead = d }
}

// WithPollInterval sets how often Start checks for due tasks.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithRunner sets the callback for fired tasks.
func WithRunner(r Runner) Option {
	return func(s *Scheduler) { s.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:  make(map[string]*Task),
		now:    time.Now,
		loc:    time.Local,
		poll:   5 * time.Second,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for zone-less times.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Now returns the scheduler clock in its location.
func (s *Scheduler) Now() time.Time {
	return s.now().In(s.loc)
}

// SetRunner sets the callback for fired tasks.
func (s *Scheduler) SetRunner(r Runner) {
	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()
}

// Schedule adds a pending task that fires at when.
func (s *Scheduler) Schedule(name, description, chatID string, when time.Time) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !when.After(now.Add(s.minLead)) {
		if s.minLead > 0 {
			return Task{}, fmt.Errorf("%w: %s is less than %s from now", ErrInvalidScheduleTime,
				when.Format(time.RFC3339), s.minLead)
		}
		return Task{}, fmt.Errorf("%w: %s is not in the future", ErrInvalidScheduleTime, when.Format(time.RFC3339))
	}

	id := s.newID()
	s.seq++
	if name == "" {
		name = id
	}
	t := &Task{
		ID:          id,
		Name:        name,
		Description: description,
		ChatID:      chatID,
		ScheduledAt: when,
		Status:      StatusPending,
		CreatedAt:   now,
		seq:         s.seq,
	}
	s.tasks[id] = t

	s.logger.Info("task_scheduled", "task_id", id, "name", name, "scheduled_at", when.Format(time.RFC3339))
	return *t, nil
}

// ScheduleAt parses whenText with ParseTime and schedules the task.
func (s *Scheduler) ScheduleAt(name, description, chatID, whenText string) (Task, error) {
	when, err := ParseTime(whenText, s.loc, s.now())
	if err != nil {
		return Task{}, err
	}
	return s.Schedule(name, description, chatID, when)
}

func (s *Scheduler) newID() string {
	for {
		id := "task_" + uuid.New().String()[:8]
		if _, exists := s.tasks[id]; !exists {
			return id
		}
	}
}

// Get returns a copy of one task.
func (s *Scheduler) Get(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, &TaskError{ID: id, Reason: ReasonNotFound}
	}
	return *t, nil
}

// List returns tasks with any of the given statuses, or all tasks when none
// are given, ordered by scheduled time.
func (s *Scheduler) List(statuses ...Status) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if len(statuses) > 0 && !containsStatus(statuses, t.Status) {
			continue
		}
		result = append(result, *t)
	}
	sortTasks(result)
	return result
}

// sortTasks orders by scheduled time, then by creation order.
func sortTasks(ts []Task) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].ScheduledAt.Equal(ts[j].ScheduledAt) {
			return ts[i].seq < ts[j].seq
		}
		return ts[i].ScheduledAt.Before(ts[j].ScheduledAt)
	})
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Cancel moves a pending task to cancelled.
func (s *Scheduler) Cancel(id string) error {
	return s.close(id, StatusCancelled)
}

// Complete moves a pending task to completed.
func (s *Scheduler) Complete(id string) error {
	return s.close(id, StatusCompleted)
}

func (s *Scheduler) close(id string, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return &TaskError{ID: id, Reason: ReasonNotFound}
	}
	if t.Status.Terminal() {
		return &TaskError{ID: id, Reason: ReasonAlreadyTerminal, Status: t.Status}
	}
	t.Status = to
	t.ClosedAt = s.now()

	s.logger.Info("task_closed", "task_id", id, "status", string(to))
	return nil
}

// Start begins firing due tasks in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop stops the background loop and waits for fired runners.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running && s.cancel != nil {
		s.cancel()
		s.running = false
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.fire(s.ctx, s.now())
		}
	}
}

// RunDue completes every pending task due at or before now and hands each
// to the runner. It returns the fired tasks.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) []Task {
	return s.fire(ctx, now)
}

func (s *Scheduler) fire(ctx context.Context, now time.Time) []Task {
	s.mu.Lock()
	var due []Task
	for _, t := range s.tasks {
		if t.Status != StatusPending || t.ScheduledAt.After(now) {
			continue
		}
		t.Status = StatusCompleted
		t.ClosedAt = now
		due = append(due, *t)
	}
	runner := s.runner
	s.mu.Unlock()

	sortTasks(due)

	for _, t := range due {
		s.logger.Info("task_fired", "task_id", t.ID, "name", t.Name)
		if runner == nil {
			continue
		}
		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			runner(ctx, t)
		}(t)
	}
	return due
}
