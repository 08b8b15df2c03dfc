package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/kanban"
)

func TestLogDecisionRecordsAndSurfacesThroughTaskContext(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, _ := testEngine(t, kb)

	id, err := e.LogDecision("a1", "t1", "chose postgres over sqlite")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ctx, err := e.GetTaskContext("t1")
	require.NoError(t, err)
	require.Len(t, ctx.Decisions, 1)
	assert.Equal(t, "chose postgres over sqlite", ctx.Decisions[0].Decision)
}

func TestLogDecisionUnknownTaskReturnsNotFound(t *testing.T) {
	e, _, _, _ := testEngine(t, newFakeKanban())
	_, err := e.LogDecision("a1", "missing", "x")
	assert.Error(t, err)
}

func TestLogArtifactWritesFileUnderTypeDerivedSubdirectory(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, _ := testEngine(t, kb)
	root := t.TempDir()

	path, err := e.LogArtifact("t1", "design.md", "# Design", "design", root, "initial design doc", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "docs/design", "design.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Design", string(data))
}

func TestLogArtifactFallsBackToDefaultDirForUnknownType(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, _ := testEngine(t, kb)
	root := t.TempDir()

	path, err := e.LogArtifact("t1", "notes.txt", "notes", "scratch", root, "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "docs/artifacts", "notes.txt"), path)
}

func TestLogArtifactRejectsRelativeProjectRoot(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, _ := testEngine(t, kb)

	_, err := e.LogArtifact("t1", "notes.txt", "notes", "scratch", "relative/path", "", "")
	assert.Error(t, err)
}

func TestLogArtifactRejectsLocationTraversalOutsideProjectRoot(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, _ := testEngine(t, kb)
	root := t.TempDir()

	_, err := e.LogArtifact("t1", "notes.txt", "notes", "scratch", root, "", "../../../../tmp")
	assert.Error(t, err, "a location with traversal segments must never escape project_root")
}

func TestLogArtifactRejectsFilenameTraversalOutsideProjectRoot(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, _ := testEngine(t, kb)
	root := t.TempDir()

	_, err := e.LogArtifact("t1", "../../../escape.txt", "notes", "scratch", root, "", "")
	assert.Error(t, err)
}

func TestGetTaskContextListsDependentTasks(t *testing.T) {
	kb := newFakeKanban(
		kanban.Task{ID: "base", Name: "Base", Status: "TODO", Priority: "HIGH"},
		kanban.Task{ID: "downstream", Name: "Downstream", Status: "TODO", Priority: "HIGH", Dependencies: []string{"base"}},
	)
	e, _, _, _ := testEngine(t, kb)

	ctx, err := e.GetTaskContext("base")
	require.NoError(t, err)
	assert.Equal(t, []string{"downstream"}, ctx.DependentTasks)
}
