// Package agent defines the Agent bounded context: a registered worker
// that requests and executes tasks from the assignment engine.
package agent

import (
	"github.com/marcus-ai/marcus/pkg/domain"
)

// ---------------------------------------------------------------------------
// Agent aggregate root
// ---------------------------------------------------------------------------

// Agent is the aggregate root for the worker bounded context. It carries
// the one-task-per-agent invariant: CurrentTasks never holds more than one
// entry. Enforcement lives in the registry (pkg/registry), which is the
// only writer of CurrentTasks; this type only exposes safe mutators.
type Agent struct {
	domain.AggregateRoot

	AgentID string      `json:"agent_id"`
	Name    string      `json:"name"`
	Role    string      `json:"role"`
	Skills  domain.Tags `json:"skills"`

	// CurrentTasks holds at most one task id. A slice (not a single
	// nullable field) mirrors the spec's own phrasing of the invariant
	// ("length <= 1 at all times") and keeps JSON shape stable whether
	// empty or populated.
	CurrentTasks []string `json:"current_tasks"`

	CompletedTasksCount int     `json:"completed_tasks_count"`
	PerformanceScore    float64 `json:"performance_score"`

	CreatedAt domain.Timestamp `json:"created_at"`
	UpdatedAt domain.Timestamp `json:"updated_at"`
}

// New creates a new Agent aggregate. Registration is idempotent at the
// registry layer; this constructor is only invoked for first-time sign-up.
func New(agentID, name, role string, skills []string) *Agent {
	a := &Agent{
		AgentID:          agentID,
		Name:             name,
		Role:             role,
		Skills:           domain.TagsFrom(skills),
		CurrentTasks:     make([]string, 0, 1),
		PerformanceScore: 1.0,
		CreatedAt:        domain.Now(),
		UpdatedAt:        domain.Now(),
	}
	a.SetID(domain.EntityID(agentID))
	a.RecordEvent(domain.NewEvent(domain.EventAgentRegistered, a.ID(), map[string]string{
		"agent_id": agentID,
		"name":     name,
	}))
	return a
}

// UpdateProfile re-registers the agent's descriptive fields without
// touching CurrentTasks — re-registration must never clear an in-flight
// assignment.
func (a *Agent) UpdateProfile(name, role string, skills []string) {
	a.Name = name
	a.Role = role
	a.Skills = domain.TagsFrom(skills)
	a.UpdatedAt = domain.Now()
}

// HasCurrentTask reports whether the agent already holds an assignment.
func (a *Agent) HasCurrentTask() bool { return len(a.CurrentTasks) > 0 }

// CurrentTaskID returns the agent's sole current task id, if any.
func (a *Agent) CurrentTaskID() (string, bool) {
	if len(a.CurrentTasks) == 0 {
		return "", false
	}
	return a.CurrentTasks[0], true
}

// SetCurrent assigns a single task id, replacing any previous one. Callers
// must have already verified the one-task invariant under the assignment
// lock; this method does not itself enforce it.
func (a *Agent) SetCurrent(taskID string) {
	a.CurrentTasks = []string{taskID}
	a.UpdatedAt = domain.Now()
}

// ClearCurrent empties the agent's current task list.
func (a *Agent) ClearCurrent() {
	a.CurrentTasks = a.CurrentTasks[:0]
	a.UpdatedAt = domain.Now()
}

// RecordCompletion bumps the agent's completion counter and nudges its
// performance score toward 1.0 by a fixed step (simple exponential
// smoothing, not a learned model — analytics and ML scoring are explicitly
// out of scope).
func (a *Agent) RecordCompletion() {
	a.CompletedTasksCount++
	const step = 0.05
	a.PerformanceScore = a.PerformanceScore + step*(1.0-a.PerformanceScore)
	a.UpdatedAt = domain.Now()
}

// SkillMatch returns the fraction of task labels this agent's skills cover,
// per the scoring formula: |skills ∩ labels| / max(|labels|, 1).
func (a *Agent) SkillMatch(labels domain.Tags) float64 {
	if len(labels) == 0 {
		return 0
	}
	matches := 0
	for _, l := range labels {
		if a.Skills.Contains(l) {
			matches++
		}
	}
	return float64(matches) / float64(len(labels))
}

// ---------------------------------------------------------------------------
// Repository interface
// ---------------------------------------------------------------------------

// Repository defines persistence for Agent aggregates.
type Repository interface {
	FindByID(agentID string) (*Agent, error)
	FindAll() ([]*Agent, error)
	Save(agent *Agent) error
	Delete(agentID string) error
}

// ---------------------------------------------------------------------------
// Domain errors
// ---------------------------------------------------------------------------

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotFound       Error = "agent not registered"
	ErrAlreadyHasTask Error = "agent already has a current task"
)
