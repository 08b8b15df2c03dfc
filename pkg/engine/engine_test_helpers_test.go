package engine

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/aiengine"
	"github.com/marcus-ai/marcus/pkg/apstore"
	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/domain/task"
	"github.com/marcus-ai/marcus/pkg/infrastructure/eventbus"
	"github.com/marcus-ai/marcus/pkg/kanban"
	"github.com/marcus-ai/marcus/pkg/lease"
	"github.com/marcus-ai/marcus/pkg/logger"
	"github.com/marcus-ai/marcus/pkg/registry"
	"github.com/marcus-ai/marcus/pkg/taskstore"
)

// fakeKanban is an in-memory kanban.Provider backing every engine test; it
// records every UpdateTask/UpdateTaskProgress/AddComment call so tests can
// assert on the commit side effects without touching a real board.
type fakeKanban struct {
	tasks    map[string]kanban.Task
	comments map[string][]string
}

func newFakeKanban(tasks ...kanban.Task) *fakeKanban {
	k := &fakeKanban{tasks: make(map[string]kanban.Task), comments: make(map[string][]string)}
	for _, t := range tasks {
		k.tasks[t.ID] = t
	}
	return k
}

func (k *fakeKanban) GetAllTasks(ctx context.Context) ([]kanban.Task, error) {
	out := make([]kanban.Task, 0, len(k.tasks))
	for _, t := range k.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (k *fakeKanban) GetTaskByID(ctx context.Context, id string) (kanban.Task, error) {
	return k.tasks[id], nil
}

// UpdateTask, like the github/sqlite providers it stands in for, only
// patches a row that already exists on the board — it never fabricates one.
// Unlike those providers, which return an error for an unknown id, it
// silently ignores writes against an id it does not hold (such as an
// in-memory-only subtask).
func (k *fakeKanban) UpdateTask(ctx context.Context, id string, fields kanban.UpdateFields) error {
	t, ok := k.tasks[id]
	if !ok {
		return nil
	}
	if fields.Status != nil {
		t.Status = *fields.Status
	}
	if fields.AssignedTo != nil {
		t.AssignedTo = *fields.AssignedTo
	}
	if fields.Progress != nil {
		t.Progress = *fields.Progress
	}
	k.tasks[id] = t
	return nil
}

func (k *fakeKanban) UpdateTaskProgress(ctx context.Context, id string, info kanban.ProgressInfo) error {
	t, ok := k.tasks[id]
	if !ok {
		return nil
	}
	t.Progress = info.Progress
	k.tasks[id] = t
	return nil
}

func (k *fakeKanban) AddComment(ctx context.Context, id string, text string) error {
	k.comments[id] = append(k.comments[id], text)
	return nil
}

// fakeAI is a no-op aiengine.Engine: every engine test cares about
// scheduling decisions, not instruction text.
type fakeAI struct{}

func (fakeAI) GenerateInstructions(ctx context.Context, tc aiengine.TaskContext) (string, error) {
	return "do: " + tc.Name, nil
}

func (fakeAI) SuggestForBlocker(ctx context.Context, tc aiengine.TaskContext, description, severity string) (string, error) {
	return "suggestion for " + description, nil
}

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError)
}

// testEngine wires a full Engine over a fakeKanban, returning the pieces a
// test needs to both drive requests and inspect side effects.
func testEngine(t *testing.T, kb *fakeKanban) (*Engine, *taskstore.Store, *apstore.Store, *registry.Registry) {
	t.Helper()
	log := testLogger()
	ts := taskstore.New(kb, log)
	require.NoError(t, ts.Refresh(context.Background()))
	ap, err := apstore.Open(t.TempDir(), log)
	require.NoError(t, err)
	lm := lease.New(config.Defaults().TaskLease)
	ar := registry.New()
	bus := eventbus.New()
	cfg := config.Defaults()
	e := New(ts, ap, lm, ar, kb, fakeAI{}, bus, log, cfg)
	return e, ts, ap, ar
}

// subtaskFixture builds an in-memory subtask of parentID, for tests that
// exercise the parent-with-subtasks exclusion and auto-rollup rules.
func subtaskFixture(id, parentID string) *task.Task {
	sub := task.New(id, id, domain.TaskTODO, domain.PriorityMedium)
	sub.IsSubtask = true
	sub.ParentTaskID = parentID
	return sub
}

// taskFixture builds a standalone TODO task with the given priority and
// estimate, for tests that exercise scoring/tie-break logic directly.
func taskFixture(id string, priority domain.Priority, estimatedHours float64) *task.Task {
	t := task.New(id, id, domain.TaskTODO, priority)
	t.EstimatedHours = estimatedHours
	return t
}
