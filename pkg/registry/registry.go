// Package registry implements the Agent Registry (AR): the authoritative
// set of agents known to the system and the single writer of each agent's
// current-task slot. Grounded on the teacher's in-memory state map idiom
// (pkg/domain/session tracked live sessions the same way, one
// sync.RWMutex-guarded map keyed by id), generalized to also enforce the
// one-task-per-agent invariant spec.md §3/§5 assigns to this component.
package registry

import (
	"sort"
	"sync"

	"github.com/marcus-ai/marcus/pkg/domain/agent"
)

// Registry is the Agent Registry component.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{agents: make(map[string]*agent.Agent)}
}

// Register adds a new agent or, if one already exists under this id,
// refreshes its descriptive fields in place. Re-registration never clears
// CurrentTasks — a worker reconnecting mid-assignment must not lose it.
func (r *Registry) Register(agentID, name, role string, skills []string) *agent.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.agents[agentID]; ok {
		existing.UpdateProfile(name, role, skills)
		return existing
	}
	a := agent.New(agentID, name, role, skills)
	r.agents[agentID] = a
	return a
}

// Get returns the agent for an id, if registered.
func (r *Registry) Get(agentID string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	return a, ok
}

// All returns every registered agent, sorted by id.
func (r *Registry) All() []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// TrySetCurrent atomically enforces the one-task-per-agent invariant: it
// fails if the agent is unknown or already holds a task, and otherwise
// claims taskID for it. Callers (the assignment engine) must call this
// under its own reservation-set lock so the check-then-set is race free
// against concurrent requests for different tasks from the same agent.
func (r *Registry) TrySetCurrent(agentID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return agent.ErrNotFound
	}
	if a.HasCurrentTask() {
		return agent.ErrAlreadyHasTask
	}
	a.SetCurrent(taskID)
	return nil
}

// ClearCurrent releases whatever task the agent currently holds, recording
// completion if recordCompletion is true. Idempotent: clearing an agent
// that already has no current task is a no-op, matching UnassignTask's
// required idempotency (spec.md §4.5).
func (r *Registry) ClearCurrent(agentID string, recordCompletion bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok || !a.HasCurrentTask() {
		return
	}
	a.ClearCurrent()
	if recordCompletion {
		a.RecordCompletion()
	}
}

// CurrentTaskOf returns the task id an agent currently holds, if any.
func (r *Registry) CurrentTaskOf(agentID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return "", false
	}
	return a.CurrentTaskID()
}
