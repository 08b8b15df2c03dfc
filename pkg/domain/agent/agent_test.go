package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcus-ai/marcus/pkg/domain"
)

func TestNewAgentStartsWithNoCurrentTaskAndBaselinePerformance(t *testing.T) {
	a := New("a1", "Alice", "backend", []string{"go", "sql"})
	assert.False(t, a.HasCurrentTask())
	assert.Equal(t, 1.0, a.PerformanceScore)
	assert.Len(t, a.PullEvents(), 1)
}

func TestUpdateProfileNeverClearsCurrentTask(t *testing.T) {
	a := New("a1", "Alice", "backend", []string{"go"})
	a.SetCurrent("t1")

	a.UpdateProfile("Alice B.", "fullstack", []string{"go", "react"})
	assert.Equal(t, "Alice B.", a.Name)
	id, ok := a.CurrentTaskID()
	assert.True(t, ok)
	assert.Equal(t, "t1", id)
}

func TestSetCurrentReplacesPreviousTask(t *testing.T) {
	a := New("a1", "Alice", "backend", nil)
	a.SetCurrent("t1")
	a.SetCurrent("t2")

	id, ok := a.CurrentTaskID()
	assert.True(t, ok)
	assert.Equal(t, "t2", id)
}

func TestClearCurrentEmptiesTaskList(t *testing.T) {
	a := New("a1", "Alice", "backend", nil)
	a.SetCurrent("t1")
	a.ClearCurrent()

	assert.False(t, a.HasCurrentTask())
	_, ok := a.CurrentTaskID()
	assert.False(t, ok)
}

func TestRecordCompletionIncrementsCountAndNudgesScoreTowardOne(t *testing.T) {
	a := New("a1", "Alice", "backend", nil)
	a.PerformanceScore = 0.5

	a.RecordCompletion()
	assert.Equal(t, 1, a.CompletedTasksCount)
	assert.InDelta(t, 0.525, a.PerformanceScore, 1e-9)
}

func TestSkillMatchIsZeroWithNoLabels(t *testing.T) {
	a := New("a1", "Alice", "backend", []string{"go"})
	assert.Equal(t, 0.0, a.SkillMatch(nil))
}

func TestSkillMatchIsFractionOfLabelsCovered(t *testing.T) {
	a := New("a1", "Alice", "backend", []string{"go", "sql"})
	match := a.SkillMatch(domain.Tags{"go", "react"})
	assert.Equal(t, 0.5, match)
}

func TestSkillMatchIsOneWhenAllLabelsCovered(t *testing.T) {
	a := New("a1", "Alice", "backend", []string{"go", "sql"})
	match := a.SkillMatch(domain.Tags{"go", "sql"})
	assert.Equal(t, 1.0, match)
}
