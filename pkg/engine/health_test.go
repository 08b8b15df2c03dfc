package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/kanban"
)

func TestScanBoardHealthDetectsCycles(t *testing.T) {
	kb := newFakeKanban(
		kanban.Task{ID: "a", Name: "A", Status: "TODO", Priority: "HIGH", Dependencies: []string{"b"}},
		kanban.Task{ID: "b", Name: "B", Status: "TODO", Priority: "HIGH", Dependencies: []string{"c"}},
		kanban.Task{ID: "c", Name: "C", Status: "TODO", Priority: "HIGH", Dependencies: []string{"a"}},
		kanban.Task{ID: "d", Name: "D", Status: "TODO", Priority: "HIGH"},
	)
	e, _, _, _ := testEngine(t, kb)

	report := e.ScanBoardHealth()
	require.Len(t, report.Cycles, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, report.Cycles[0].TaskIDs)
}

func TestScanBoardHealthFindsOrphanedSubtasks(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "parent", Name: "Parent", Status: "TODO", Priority: "HIGH"})
	e, ts, _, _ := testEngine(t, kb)

	orphan := subtaskFixture("orphan", "missing-parent")
	ts.AdoptSubtask(orphan)

	report := e.ScanBoardHealth()
	assert.Contains(t, report.OrphanedSubtasks, "orphan")
}

func TestScanBoardHealthReportsNoIssuesOnCleanBoard(t *testing.T) {
	kb := newFakeKanban(
		kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"},
		kanban.Task{ID: "t2", Name: "T2", Status: "TODO", Priority: "HIGH", Dependencies: []string{"t1"}},
	)
	e, _, _, _ := testEngine(t, kb)

	report := e.ScanBoardHealth()
	assert.Empty(t, report.Cycles)
	assert.Empty(t, report.OrphanedSubtasks)
	assert.Empty(t, report.ParentsMissingStatus)
}
