// Package task defines the Task bounded context: the unit of work tracked
// by the task store and assigned by the engine. A subtask is a Task with
// IsSubtask=true and a non-empty ParentTaskID; parent tasks that have at
// least one subtask are never directly assignable.
package task

import (
	"github.com/marcus-ai/marcus/pkg/domain"
)

// Task is the aggregate root for the task bounded context. Unlike most
// aggregates in this codebase it is not created by application code —
// it is reconstituted from kanban provider snapshots on every refresh,
// with in-memory subtasks layered on top (kanban is not required to
// store subtasks itself).
type Task struct {
	domain.AggregateRoot

	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      domain.TaskStatus `json:"status"`
	Priority    domain.Priority   `json:"priority"`
	AssignedTo  string          `json:"assigned_to,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Labels      domain.Tags     `json:"labels,omitempty"`

	EstimatedHours float64 `json:"estimated_hours"`
	Progress       int     `json:"progress"`

	IsSubtask    bool   `json:"is_subtask"`
	ParentTaskID string `json:"parent_task_id,omitempty"`
	SubtaskIndex int    `json:"subtask_index"`

	CreatedAt domain.Timestamp  `json:"created_at"`
	UpdatedAt domain.Timestamp  `json:"updated_at"`
	DueDate   *domain.Timestamp `json:"due_date,omitempty"`
}

// New constructs a Task with the given id, as reconstituted from a kanban
// provider row.
func New(id, name string, status domain.TaskStatus, priority domain.Priority) *Task {
	t := &Task{
		Name:         name,
		Status:       status,
		Priority:     priority,
		Dependencies: make([]string, 0),
		Labels:       make(domain.Tags, 0),
		CreatedAt:    domain.Now(),
		UpdatedAt:    domain.Now(),
	}
	t.SetID(domain.EntityID(id))
	return t
}

// DependenciesMet reports whether every dependency id is present in the
// supplied completed-id set.
func (t *Task) DependenciesMet(completed map[string]bool) bool {
	for _, d := range t.Dependencies {
		if !completed[d] {
			return false
		}
	}
	return true
}

// MarkInProgress transitions the task to IN_PROGRESS under a given agent.
func (t *Task) MarkInProgress(agentID string) {
	t.Status = domain.TaskInProgress
	t.AssignedTo = agentID
	t.UpdatedAt = domain.Now()
	t.RecordEvent(domain.NewEvent(domain.EventTaskAssigned, t.ID(), map[string]string{
		"agent_id": agentID,
	}))
}

// UpdateProgress records a progress report without changing status.
func (t *Task) UpdateProgress(progress int, message string) {
	t.Progress = progress
	t.UpdatedAt = domain.Now()
	t.RecordEvent(domain.NewEvent(domain.EventTaskProgress, t.ID(), map[string]interface{}{
		"progress": progress,
		"message":  message,
	}))
}

// MarkBlocked transitions the task to BLOCKED, retaining its assignment
// (spec freezes the "retain" semantics over the "release" alternative
// observed in the original source — see Open Question #2).
func (t *Task) MarkBlocked(description string) {
	t.Status = domain.TaskBlocked
	t.UpdatedAt = domain.Now()
	t.RecordEvent(domain.NewEvent(domain.EventTaskBlocked, t.ID(), map[string]string{
		"description": description,
	}))
}

// MarkDone transitions the task to DONE and fully releases it.
func (t *Task) MarkDone() {
	t.Status = domain.TaskDone
	t.Progress = 100
	t.AssignedTo = ""
	t.UpdatedAt = domain.Now()
	t.RecordEvent(domain.NewEvent(domain.EventTaskCompleted, t.ID(), nil))
}

// Unassign resets the task to TODO with no owner and zero progress.
func (t *Task) Unassign() {
	t.Status = domain.TaskTODO
	t.AssignedTo = ""
	t.Progress = 0
	t.UpdatedAt = domain.Now()
	t.RecordEvent(domain.NewEvent(domain.EventTaskUnassigned, t.ID(), nil))
}

// ---------------------------------------------------------------------------
// Repository interface
// ---------------------------------------------------------------------------

// Repository defines persistence for Task aggregates, as implemented by a
// kanban provider adapter.
type Repository interface {
	FindByID(id string) (*Task, error)
	FindAll() ([]*Task, error)
	Save(t *Task) error
}

// ---------------------------------------------------------------------------
// Domain errors
// ---------------------------------------------------------------------------

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotFound        Error = "task not found"
	ErrAlreadyAssigned Error = "task already assigned"
	ErrNotAssigned     Error = "task not assigned"
)
