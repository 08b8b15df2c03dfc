package engine

import (
	"context"
	"fmt"

	"github.com/marcus-ai/marcus/pkg/apperr"
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/domain/task"
	"github.com/marcus-ai/marcus/pkg/kanban"
	"github.com/marcus-ai/marcus/pkg/logger"
)

// ReportProgress implements spec.md §4.5.2. All three status branches are
// idempotent: repeating the same call after the first success is a no-op.
func (e *Engine) ReportProgress(ctx context.Context, agentID, taskID string, status domain.TaskStatus, progress int, message string) error {
	t, ok := e.ts.Get(taskID)
	if !ok {
		return apperr.NotFound(taskID)
	}

	switch status {
	case domain.TaskInProgress:
		return e.reportInProgress(ctx, t, progress, message)
	case domain.TaskBlocked:
		return e.reportBlockedStatus(ctx, t, message)
	case domain.TaskDone:
		return e.reportDone(ctx, agentID, t)
	default:
		return apperr.New(apperr.ConfigurationError, fmt.Sprintf("unsupported status %q", status))
	}
}

func (e *Engine) reportInProgress(ctx context.Context, t *task.Task, progress int, message string) error {
	if t.Status != domain.TaskInProgress {
		// Already past this state (e.g. DONE) — idempotent no-op.
		return nil
	}
	if err := e.kanban.UpdateTaskProgress(ctx, string(t.ID()), kanban.ProgressInfo{Progress: progress, Message: message}); err != nil {
		return apperr.Unavailable(err)
	}
	t.UpdateProgress(progress, message)
	e.ts.Put(t)
	e.lm.Renew(string(t.ID()), progress, message)
	e.publish(domain.NewEvent(domain.EventTaskProgress, t.ID(), map[string]interface{}{"progress": progress}))
	e.publish(domain.NewEvent(domain.EventLeaseRenewed, t.ID(), nil))
	return nil
}

func (e *Engine) reportBlockedStatus(ctx context.Context, t *task.Task, message string) error {
	if t.Status == domain.TaskBlocked {
		return nil // idempotent
	}
	status := string(domain.TaskBlocked)
	if err := e.kanban.UpdateTask(ctx, string(t.ID()), kanban.UpdateFields{Status: &status}); err != nil {
		return apperr.Unavailable(err)
	}
	// Retain the assignment: AssignedTo, AP, and LM are untouched (Open
	// Question #2's frozen "retain" semantics).
	t.MarkBlocked(message)
	e.ts.Put(t)
	e.publish(domain.NewEvent(domain.EventTaskBlocked, t.ID(), map[string]string{"description": message}))
	return nil
}

func (e *Engine) reportDone(ctx context.Context, agentID string, t *task.Task) error {
	if t.Status == domain.TaskDone {
		return nil // idempotent
	}

	status := string(domain.TaskDone)
	empty := ""
	if err := e.kanban.UpdateTask(ctx, string(t.ID()), kanban.UpdateFields{Status: &status, AssignedTo: &empty}); err != nil {
		return apperr.Unavailable(err)
	}
	t.MarkDone()
	e.ts.Put(t)

	if t.IsSubtask {
		if err := e.maybeCompleteParent(ctx, t.ParentTaskID); err != nil {
			e.log.ErrorCF("engine", "parent auto-completion failed", logger.Fields{
				"parent_id": t.ParentTaskID, "error": err.Error(),
			})
		}
	}

	e.lm.Expire(string(t.ID()))
	if err := e.ap.Remove(agentID); err != nil {
		e.log.ErrorCF("engine", "AP cleanup failed on completion", logger.Fields{"agent_id": agentID, "error": err.Error()})
	}
	e.ar.ClearCurrent(agentID, true)

	e.publish(domain.NewEvent(domain.EventTaskCompleted, t.ID(), nil))
	e.publish(domain.NewEvent(domain.EventLeaseExpired, t.ID(), nil))

	return e.ts.Refresh(ctx)
}

// maybeCompleteParent auto-completes a parent when every sibling subtask
// is DONE, as a single atomic sequence from the caller's perspective
// (spec.md §4.5.2 step 2).
func (e *Engine) maybeCompleteParent(ctx context.Context, parentID string) error {
	parent, ok := e.ts.Get(parentID)
	if !ok || parent.Status == domain.TaskDone {
		return nil
	}
	children := e.ts.Children(parentID)
	if len(children) == 0 {
		return nil
	}
	for _, c := range children {
		if c.Status != domain.TaskDone {
			return nil
		}
	}

	status := string(domain.TaskDone)
	empty := ""
	if err := e.kanban.UpdateTask(ctx, parentID, kanban.UpdateFields{Status: &status, AssignedTo: &empty}); err != nil {
		return apperr.Unavailable(err)
	}
	parent.MarkDone()
	e.ts.Put(parent)
	e.publish(domain.NewEvent(domain.EventParentRolledUp, parent.ID(), map[string]string{"parent_id": parentID}))
	return nil
}

// ReportBlocker implements spec.md §4.5.3: sets status BLOCKED, posts an
// AI-generated suggestion as a comment, retains the assignment. Blocker
// reports never fail the request — they are a data-plane event
// (spec.md §7).
func (e *Engine) ReportBlocker(ctx context.Context, agentID, taskID, description, severity string) (string, error) {
	t, ok := e.ts.Get(taskID)
	if !ok {
		return "", apperr.NotFound(taskID)
	}

	if err := e.reportBlockedStatus(ctx, t, description); err != nil {
		e.log.WarnCF("engine", "blocker status update failed", logger.Fields{"task_id": taskID, "error": err.Error()})
	}

	tc := e.taskContext(t, e.ts.All())
	suggestions, err := e.ai.SuggestForBlocker(ctx, tc, description, severity)
	if err != nil {
		e.log.WarnCF("engine", "blocker suggestion generation failed", logger.Fields{"task_id": taskID, "error": err.Error()})
	}
	if commentErr := e.kanban.AddComment(ctx, taskID, suggestions); commentErr != nil {
		e.log.WarnCF("engine", "posting blocker suggestion comment failed", logger.Fields{"task_id": taskID, "error": commentErr.Error()})
	}
	return suggestions, nil
}

// UnassignTask implements spec.md §4.5.4: an administrative break that
// clears the reservation set (under the assignment lock), resets kanban
// to TODO, and then clears LM, AP, and AR. The steps run in sequence, not
// as one locked unit. Idempotent — unassigning an already-unassigned task
// is a structured error with no side effects.
func (e *Engine) UnassignTask(ctx context.Context, taskID string, agentID string) error {
	t, ok := e.ts.Get(taskID)
	if !ok {
		return apperr.NotFound(taskID)
	}
	if _, leased := e.lm.Get(taskID); t.AssignedTo == "" && !leased {
		return apperr.NotAssigned(taskID)
	}

	if agentID == "" {
		agentID = t.AssignedTo
	}
	if agentID == "" {
		return apperr.NotAssigned(taskID)
	}

	e.assignMu.Lock()
	delete(e.reservations, taskID)
	e.assignMu.Unlock()

	status := string(domain.TaskTODO)
	empty := ""
	zero := 0
	if err := e.kanban.UpdateTask(ctx, taskID, kanban.UpdateFields{Status: &status, AssignedTo: &empty, Progress: &zero}); err != nil {
		return apperr.Unavailable(err)
	}

	t.Unassign()
	e.ts.Put(t)
	e.lm.Expire(taskID)
	if err := e.ap.Remove(agentID); err != nil {
		e.log.ErrorCF("engine", "AP cleanup failed on unassign", logger.Fields{"agent_id": agentID, "error": err.Error()})
	}
	e.ar.ClearCurrent(agentID, false)

	e.publish(domain.NewEvent(domain.EventTaskUnassigned, t.ID(), map[string]string{"agent_id": agentID}))
	return nil
}
