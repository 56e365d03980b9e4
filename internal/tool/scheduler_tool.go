package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeffryhq/jeffry/internal/scheduler"
)

// ScheduleTaskTool lets the model set a one-shot reminder.
type ScheduleTaskTool struct {
	scheduler *scheduler.Scheduler
	chatID    string
}

// NewScheduleTaskTool creates a scheduling tool bound to a session scheduler
// and the chat that reminders are delivered to.
func NewScheduleTaskTool(s *scheduler.Scheduler, chatID string) *ScheduleTaskTool {
	return &ScheduleTaskTool{scheduler: s, chatID: chatID}
}

func (t *ScheduleTaskTool) Name() string {
	return "schedule_task"
}

func (t *ScheduleTaskTool) Category() Category {
	return CategoryScheduling
}

func (t *ScheduleTaskTool) Description() string {
	return `Schedule a reminder or a task to run later. At run_at the prompt is sent back to you and your answer goes to the user, so write the prompt as an instruction (e.g. "Remind the user to call Bob").`
}

func (t *ScheduleTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"prompt": {
				"type": "string",
				"description": "What to do when the task fires"
			},
			"run_at": {
				"type": "string",
				"description": "When to run: 'YYYY-MM-DD HH:MM:SS', RFC3339, 'in 10 minutes' or 'tomorrow at 9am'"
			},
			"task_name": {
				"type": "string",
				"description": "Optional short name, lowercase with hyphens"
			}
		},
		"required": ["prompt", "run_at"]
	}`)
}

type scheduleTaskParams struct {
	Prompt   string `json:"prompt"`
	RunAt    string `json:"run_at"`
	TaskName string `json:"task_name,omitempty"`
}

func (t *ScheduleTaskTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p scheduleTaskParams
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err), nil
	}

	if strings.TrimSpace(p.Prompt) == "" {
		return &Result{Content: "prompt is required", IsError: true}, nil
	}
	if strings.TrimSpace(p.RunAt) == "" {
		return &Result{Content: "run_at is required", IsError: true}, nil
	}

	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(p.TaskName), " ", "-"))
	task, err := t.scheduler.ScheduleAt(name, p.Prompt, t.chatID, p.RunAt)
	if err != nil {
		return &Result{Content: fmt.Sprintf("Could not schedule task: %v", err), IsError: true}, nil
	}

	now := t.scheduler.Now()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Scheduled task %s", task.ID))
	if task.Name != task.ID {
		sb.WriteString(fmt.Sprintf(" '%s'", task.Name))
	}
	sb.WriteString(fmt.Sprintf(" for %s (%s).",
		task.ScheduledAt.In(t.scheduler.Location()).Format("Mon Jan 02 15:04"),
		scheduler.FormatUntil(task.ScheduledAt, now)))
	return &Result{Content: sb.String()}, nil
}

// ListScheduledTasksTool shows the session's tasks.
type ListScheduledTasksTool struct {
	scheduler *scheduler.Scheduler
}

// NewListScheduledTasksTool creates a task listing tool.
func NewListScheduledTasksTool(s *scheduler.Scheduler) *ListScheduledTasksTool {
	return &ListScheduledTasksTool{scheduler: s}
}

func (t *ListScheduledTasksTool) Name() string {
	return "list_scheduled_tasks"
}

func (t *ListScheduledTasksTool) Category() Category {
	return CategoryScheduling
}

func (t *ListScheduledTasksTool) Description() string {
	return `List scheduled tasks, soonest first. Shows pending tasks unless a status is given.`
}

func (t *ListScheduledTasksTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {
				"type": "string",
				"enum": ["pending", "cancelled", "completed", "all"],
				"description": "Filter by status (default: pending)"
			}
		}
	}`)
}

type listTasksParams struct {
	Status string `json:"status,omitempty"`
}

func (t *ListScheduledTasksTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p listTasksParams
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}

	var filter []scheduler.Status
	switch p.Status {
	case "":
		filter = []scheduler.Status{scheduler.StatusPending}
	case "all":
	default:
		s, err := scheduler.ParseStatus(p.Status)
		if err != nil {
			return &Result{Content: err.Error(), IsError: true}, nil
		}
		filter = []scheduler.Status{s}
	}

	tasks := t.scheduler.List(filter...)
	if len(tasks) == 0 {
		return &Result{Content: "No scheduled tasks found."}, nil
	}
	return &Result{Content: FormatTasks(tasks, t.scheduler)}, nil
}

// FormatTasks renders tasks one per line.
func FormatTasks(tasks []scheduler.Task, s *scheduler.Scheduler) string {
	now := s.Now()
	var sb strings.Builder
	for _, task := range tasks {
		sb.WriteString(fmt.Sprintf("- %s [%s] %s: %s",
			task.ID,
			task.Status,
			task.ScheduledAt.In(s.Location()).Format("Mon Jan 02 15:04"),
			truncateString(task.Description, 100)))
		if task.Status == scheduler.StatusPending {
			sb.WriteString(fmt.Sprintf(" (%s)", scheduler.FormatUntil(task.ScheduledAt, now)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// CancelScheduledTaskTool cancels a pending task.
type CancelScheduledTaskTool struct {
	scheduler *scheduler.Scheduler
}

// NewCancelScheduledTaskTool creates a task cancellation tool.
func NewCancelScheduledTaskTool(s *scheduler.Scheduler) *CancelScheduledTaskTool {
	return &CancelScheduledTaskTool{scheduler: s}
}

func (t *CancelScheduledTaskTool) Name() string {
	return "cancel_scheduled_task"
}

func (t *CancelScheduledTaskTool) Category() Category {
	return CategoryScheduling
}

func (t *CancelScheduledTaskTool) Description() string {
	return `Cancel a pending scheduled task by its ID (use list_scheduled_tasks to find it).`
}

func (t *CancelScheduledTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {
				"type": "string",
				"description": "ID of the task, e.g. task_1a2b3c4d"
			}
		},
		"required": ["task_id"]
	}`)
}

type cancelTaskParams struct {
	TaskID string `json:"task_id"`
}

func (t *CancelScheduledTaskTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var p cancelTaskParams
	if err := json.Unmarshal(params, &p); err != nil {
		return invalidParams(err), nil
	}
	if p.TaskID == "" {
		return &Result{Content: "task_id is required", IsError: true}, nil
	}

	if err := t.scheduler.Cancel(p.TaskID); err != nil {
		return &Result{Content: fmt.Sprintf("Could not cancel: %v", err), IsError: true}, nil
	}
	return &Result{Content: fmt.Sprintf("Cancelled task %s.", p.TaskID)}, nil
}
