package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/kanban"
)

func TestPingReportsUptimeAndLeaseStatistics(t *testing.T) {
	kb := newFakeKanban(kanban.Task{ID: "t1", Name: "T1", Status: "TODO", Priority: "HIGH"})
	e, _, _, ar := testEngine(t, kb)
	ar.Register("a1", "Alice", "backend", nil)
	_, _, err := e.RequestNextTask(context.Background(), "a1")
	require.NoError(t, err)

	report := e.Ping()
	assert.GreaterOrEqual(t, report.UptimeSeconds, 0.0)
	assert.Equal(t, 1, report.Leases.Active)
}

func TestListRegisteredAgentsReturnsEverySignedUpAgent(t *testing.T) {
	e, _, _, ar := testEngine(t, newFakeKanban())
	ar.Register("a1", "Alice", "backend", nil)
	ar.Register("a2", "Bob", "frontend", nil)

	agents := e.ListRegisteredAgents()
	require.Len(t, agents, 2)
}
