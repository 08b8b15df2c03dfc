// Package kanban defines the external kanban board interface the
// assignment engine consumes (spec.md §6: get_all_tasks, get_task_by_id,
// update_task, update_task_progress, add_comment) and the provider-neutral
// Task DTO used to cross that boundary. Implementations live in
// sqlite.go and github.go.
package kanban

import (
	"context"
	"time"
)

// Task is the kanban-provider view of a task. The task store (pkg/taskstore)
// translates this into the richer domain.Task aggregate.
type Task struct {
	ID             string
	Name           string
	Description    string
	Status         string // TODO | IN_PROGRESS | DONE | BLOCKED
	Priority       string // LOW | MEDIUM | HIGH | URGENT
	AssignedTo     string
	Dependencies   []string
	Labels         []string
	EstimatedHours float64
	Progress       int
	IsSubtask      bool
	ParentTaskID   string
	SubtaskIndex   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DueDate        *time.Time
}

// UpdateFields carries a sparse set of field updates; nil pointers mean
// "leave unchanged". Providers apply only the non-nil fields.
type UpdateFields struct {
	Status     *string
	Priority   *string
	AssignedTo *string // empty string means "clear"
	Progress   *int
}

// ProgressInfo is the payload of update_task_progress.
type ProgressInfo struct {
	Progress int
	Message  string
}

// Provider is the interface the core depends on. All methods are async
// (context-bound) and may fail with a transport error, which the
// assignment engine treats as fatal to the current request (rollback,
// never retry within the request — spec.md §6).
type Provider interface {
	GetAllTasks(ctx context.Context) ([]Task, error)
	GetTaskByID(ctx context.Context, id string) (Task, error)
	UpdateTask(ctx context.Context, id string, fields UpdateFields) error
	UpdateTaskProgress(ctx context.Context, id string, info ProgressInfo) error
	AddComment(ctx context.Context, id string, text string) error
}
