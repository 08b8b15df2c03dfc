package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusValid(t *testing.T) {
	assert.True(t, TaskInProgress.Valid())
	assert.False(t, TaskStatus("WONTFIX").Valid())
}

func TestPriorityWeightOrdering(t *testing.T) {
	assert.Greater(t, PriorityUrgent.Weight(), PriorityHigh.Weight())
	assert.Greater(t, PriorityHigh.Weight(), PriorityMedium.Weight())
	assert.Greater(t, PriorityMedium.Weight(), PriorityLow.Weight())
}

func TestPriorityRankOrdersUrgentFirst(t *testing.T) {
	assert.Less(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
}

func TestTagsContainsAndIntersects(t *testing.T) {
	a := Tags{"go", "sql"}
	b := Tags{"sql", "frontend"}
	assert.True(t, a.Contains("go"))
	assert.False(t, a.Contains("rust"))
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(Tags{"rust"}))
}

func TestTagsFromAndStringsRoundTrip(t *testing.T) {
	tags := TagsFrom([]string{"go", "sql"})
	assert.Equal(t, []string{"go", "sql"}, tags.Strings())
}

func TestMetadataGetSetHandlesNilMap(t *testing.T) {
	var m Metadata
	assert.Equal(t, "", m.Get("missing"))
	m.Set("k", "v")
	assert.Equal(t, "v", m.Get("k"))
}

func TestSeverityValid(t *testing.T) {
	assert.True(t, SeverityHigh.Valid())
	assert.False(t, Severity("critical").Valid())
}
