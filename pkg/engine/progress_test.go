package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/kanban"
)

func TestReportProgressInProgressRenewsLeaseAndUpdatesKanban(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, ar := testEngine(t, kb)
	ar.Register("a1", "Alice", "backend", nil)
	assigned, _, err := e.RequestNextTask(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, assigned)

	err = e.ReportProgress(context.Background(), "a1", "t1", domain.TaskInProgress, 50, "halfway")
	require.NoError(t, err)

	updated, ok := kb.tasks["t1"]
	require.True(t, ok)
	assert.Equal(t, 50, updated.Progress)
}

func TestReportProgressDoneIsIdempotent(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, ap, ar := testEngine(t, kb)
	ar.Register("a1", "Alice", "backend", nil)
	_, _, err := e.RequestNextTask(context.Background(), "a1")
	require.NoError(t, err)

	require.NoError(t, e.ReportProgress(context.Background(), "a1", "t1", domain.TaskDone, 100, "done"))
	_, ok := ap.Get("a1")
	assert.False(t, ok, "completing a task must clear its AP record")

	// Second completion call must be a pure no-op, not an error.
	require.NoError(t, e.ReportProgress(context.Background(), "a1", "t1", domain.TaskDone, 100, "done again"))
}

func TestReportProgressBlockedRetainsAssignment(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, ts, ap, ar := testEngine(t, kb)
	ar.Register("a1", "Alice", "backend", nil)
	_, _, err := e.RequestNextTask(context.Background(), "a1")
	require.NoError(t, err)

	require.NoError(t, e.ReportProgress(context.Background(), "a1", "t1", domain.TaskBlocked, 10, "stuck"))

	got, ok := ts.Get("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TaskBlocked, got.Status)
	assert.Equal(t, "a1", got.AssignedTo, "a blocked task keeps its assignee")

	_, ok = ap.Get("a1")
	assert.True(t, ok, "AP record must survive a block report")
}

func TestReportProgressUnknownTaskReturnsNotFound(t *testing.T) {
	kb := newFakeKanban()
	e, _, _, _ := testEngine(t, kb)
	err := e.ReportProgress(context.Background(), "a1", "missing", domain.TaskInProgress, 10, "")
	assert.Error(t, err)
}

func TestReportDoneCompletesParentWhenAllSubtasksDone(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "parent", Name: "Parent", Status: "IN_PROGRESS", Priority: "HIGH"})
	e, ts, _, ar := testEngine(t, kb)
	ar.Register("a1", "Alice", "backend", nil)

	sub := subtaskFixture("sub1", "parent")
	sub.Status = domain.TaskInProgress
	sub.AssignedTo = "a1"
	ts.AdoptSubtask(sub)

	require.NoError(t, e.ReportProgress(context.Background(), "a1", "sub1", domain.TaskDone, 100, "done"))

	parent, ok := ts.Get("parent")
	require.True(t, ok)
	assert.Equal(t, domain.TaskDone, parent.Status, "the only subtask completing should roll the parent up to DONE")
}

func TestUnassignTaskResetsToTODOAndClearsState(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, ts, ap, ar := testEngine(t, kb)
	ar.Register("a1", "Alice", "backend", nil)
	_, _, err := e.RequestNextTask(context.Background(), "a1")
	require.NoError(t, err)

	require.NoError(t, e.UnassignTask(context.Background(), "t1", ""))

	got, ok := ts.Get("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TaskTODO, got.Status)
	assert.Empty(t, got.AssignedTo)

	_, ok = ap.Get("a1")
	assert.False(t, ok)
	_, ok = ar.CurrentTaskOf("a1")
	assert.False(t, ok)
}

func TestUnassignTaskOnUnassignedTaskReturnsError(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, _ := testEngine(t, kb)
	err := e.UnassignTask(context.Background(), "t1", "")
	assert.Error(t, err, "a task with no assignee and no override agent id cannot be unassigned")
}

func TestReportBlockerPostsSuggestionAsCommentAndNeverFails(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, ar := testEngine(t, kb)
	ar.Register("a1", "Alice", "backend", nil)
	_, _, err := e.RequestNextTask(context.Background(), "a1")
	require.NoError(t, err)

	suggestion, err := e.ReportBlocker(context.Background(), "a1", "t1", "missing credentials", "high")
	require.NoError(t, err)
	assert.Contains(t, suggestion, "missing credentials")
	assert.Len(t, kb.comments["t1"], 1)
}
