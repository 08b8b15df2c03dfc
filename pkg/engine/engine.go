// Package engine implements the Assignment Engine (AE): the scheduler
// that matches agents to tasks. Grounded on the teacher's
// pkg/orchestration/orchestrator.go (RouteTask/ClaimTask/CompleteTask/
// FailTask/RunLeaseWatcher), generalized heavily — the teacher's
// orchestrator is a single-filter capability-match router with no
// dependency/phase/subtask gating or reservation-set rollback; this
// package adds the full filter pipeline, scoring, and atomic
// claim/commit/rollback sequence spec.md §4.5 requires.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marcus-ai/marcus/pkg/aiengine"
	"github.com/marcus-ai/marcus/pkg/apperr"
	"github.com/marcus-ai/marcus/pkg/apstore"
	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/domain/agent"
	"github.com/marcus-ai/marcus/pkg/domain/task"
	"github.com/marcus-ai/marcus/pkg/kanban"
	"github.com/marcus-ai/marcus/pkg/lease"
	"github.com/marcus-ai/marcus/pkg/logger"
	"github.com/marcus-ai/marcus/pkg/registry"
	"github.com/marcus-ai/marcus/pkg/taskstore"
)

// Engine is the Assignment Engine component. All of its exported methods
// are safe for concurrent use by many agents at once.
type Engine struct {
	ts      *taskstore.Store
	ap      *apstore.Store
	lm      *lease.Manager
	ar      *registry.Registry
	kanban  kanban.Provider
	ai      aiengine.Engine
	bus     domain.EventBus
	log     *logger.Logger
	scoring config.ScoringConfig
	retry   config.RetryAfterConfig
	success config.ProjectSuccessConfig

	// assignMu is THE assignment lock: it serializes the decision logic of
	// RequestNextTask (steps 2-8) and guards every reservation-set access,
	// including UnassignTask's reservation delete. It is released before
	// the kanban commit I/O; the reservation set (not the lock)
	// closes the TOCTOU race across that gap (spec.md §5).
	assignMu     sync.Mutex
	reservations map[string]bool

	books *bookkeeping
}

// New constructs the Assignment Engine from its fully-built dependencies.
// There is no package-level singleton anywhere in this component per
// spec.md §9's anti-global-singleton design note — every dependency is
// passed in explicitly by the composition root (pkg/app).
func New(
	ts *taskstore.Store,
	ap *apstore.Store,
	lm *lease.Manager,
	ar *registry.Registry,
	kb kanban.Provider,
	ai aiengine.Engine,
	bus domain.EventBus,
	log *logger.Logger,
	cfg *config.Config,
) *Engine {
	return &Engine{
		ts:           ts,
		ap:           ap,
		lm:           lm,
		ar:           ar,
		kanban:       kb,
		ai:           ai,
		bus:          bus,
		log:          log,
		scoring:      cfg.Scoring,
		retry:        cfg.RetryAfter,
		success:      cfg.ProjectSuccess,
		reservations: make(map[string]bool),
		books:        newBookkeeping(),
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (e *Engine) publish(ev domain.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// NoTaskResult is returned by RequestNextTask when no task could be
// assigned. It is a success response, not an error, per spec.md §7.
type NoTaskResult struct {
	RetryAfterSeconds int
	RetryReason       string
	BlockingTaskID    string
}

// AssignedTask is returned by RequestNextTask on success.
type AssignedTask struct {
	Task         *task.Task
	Instructions string
}

// RequestNextTask implements the 11-step algorithm of spec.md §4.5.1.
func (e *Engine) RequestNextTask(ctx context.Context, agentID string) (*AssignedTask, *NoTaskResult, error) {
	// Step 1: refresh TS. Not under the assignment lock — it is pure I/O
	// plus a snapshot swap that taskstore already guards internally.
	if err := e.ts.Refresh(ctx); err != nil {
		return nil, nil, err
	}

	ag, ok := e.ar.Get(agentID)
	if !ok {
		return nil, nil, apperr.NotRegistered(agentID)
	}

	e.assignMu.Lock()

	// Step 2: reject agents that already hold a task.
	if ag.HasCurrentTask() {
		current, _ := ag.CurrentTaskID()
		e.assignMu.Unlock()
		return nil, &NoTaskResult{RetryReason: string(apperr.AgentAlreadyHasTask), BlockingTaskID: current}, nil
	}

	// Steps 3-4: build the exclusion/completion sets.
	assignedIDs := e.ap.GetAllAssignedTaskIDs()
	for id := range e.reservations {
		assignedIDs[id] = true
	}
	all := e.ts.All()
	completedIDs := make(map[string]bool)
	for _, t := range all {
		if t.Status == domain.TaskDone {
			completedIDs[string(t.ID())] = true
		}
	}

	// Step 5: filter pipeline.
	candidates := e.filterCandidates(all, assignedIDs, completedIDs)

	// Step 6: subtask preference.
	candidates = preferSubtasks(candidates)

	if len(candidates) == 0 {
		e.assignMu.Unlock()
		retrySecs, reason, blocking := e.computeRetryAfter(all, assignedIDs)
		return nil, &NoTaskResult{RetryAfterSeconds: retrySecs, RetryReason: reason, BlockingTaskID: blocking}, nil
	}

	// Step 7: score and pick a winner.
	winner := e.pickWinner(candidates, ag)

	// Step 8: claim — add to the reservation set while still holding the lock.
	winnerID := string(winner.ID())
	e.reservations[winnerID] = true
	e.assignMu.Unlock()

	// Step 9: commit. All I/O happens outside the assignment lock; the
	// reservation entry above is what prevents a second agent from
	// scoring the same candidate in the meantime.
	assigned, err := e.commitAssignment(ctx, winner, ag)
	if err != nil {
		e.assignMu.Lock()
		delete(e.reservations, winnerID)
		e.assignMu.Unlock()
		return nil, nil, err
	}
	e.assignMu.Lock()
	delete(e.reservations, winnerID)
	e.assignMu.Unlock()

	// Step 10: generate instructions (never fails the assignment).
	tc := e.taskContext(winner, all)
	instructions, err := e.ai.GenerateInstructions(ctx, tc)
	if err != nil {
		e.log.WarnCF("engine", "instruction generation failed, using base template", logger.Fields{
			"task_id": winnerID, "error": err.Error(),
		})
		instructions = aiengine.BaseInstructions(tc)
	}

	return &AssignedTask{Task: assigned, Instructions: instructions}, nil, nil
}

// commitAssignment performs step 9: kanban write, then AP/LM/AR updates on
// success. On kanban failure it returns an error with no other state
// touched — the caller rolls back the reservation.
func (e *Engine) commitAssignment(ctx context.Context, winner *task.Task, ag *agent.Agent) (*task.Task, error) {
	status := string(domain.TaskInProgress)
	agentID := ag.AgentID
	if err := e.kanban.UpdateTask(ctx, string(winner.ID()), kanban.UpdateFields{
		Status:     &status,
		AssignedTo: &agentID,
	}); err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("commit assignment: %w", err))
	}

	winner.MarkInProgress(agentID)
	e.ts.Put(winner)

	if err := e.ap.Save(agentID, string(winner.ID()), apstore.Record{
		Name:           winner.Name,
		Priority:       string(winner.Priority),
		EstimatedHours: winner.EstimatedHours,
	}); err != nil {
		// AP persistence failure after a successful kanban write is logged
		// at error level and the assignment is kept; it is not rolled back
		// and does not stop the process. MON's reconciliation loop will
		// also observe a kanban IN_PROGRESS task with no AP record and
		// flag it; logging it here gets ahead of that.
		e.log.ErrorCF("engine", "AP write failed after kanban commit", logger.Fields{
			"task_id": string(winner.ID()), "agent_id": agentID, "error": err.Error(),
		})
	}

	e.lm.Create(string(winner.ID()), agentID, winner.Priority, winner.EstimatedHours)

	if err := e.ar.TrySetCurrent(agentID, string(winner.ID())); err != nil {
		e.log.ErrorCF("engine", "AR current-task invariant violated on commit", logger.Fields{
			"task_id": string(winner.ID()), "agent_id": agentID, "error": err.Error(),
		})
	}

	e.publish(domain.NewEvent(domain.EventTaskAssigned, winner.ID(), map[string]string{"agent_id": agentID}))
	e.publish(domain.NewEvent(domain.EventLeaseCreated, winner.ID(), map[string]string{"agent_id": agentID}))

	return winner, nil
}

func (e *Engine) taskContext(t *task.Task, all []*task.Task) aiengine.TaskContext {
	tc := aiengine.TaskContext{
		TaskID:         string(t.ID()),
		Name:           t.Name,
		Description:    t.Description,
		Priority:       string(t.Priority),
		Labels:         t.Labels.Strings(),
		IsSubtask:      t.IsSubtask,
		ParentTaskID:   t.ParentTaskID,
		Dependencies:   t.Dependencies,
		EstimatedHours: t.EstimatedHours,
	}
	if t.IsSubtask {
		if parent, ok := e.ts.Get(t.ParentTaskID); ok {
			tc.ParentName = parent.Name
		}
	}
	downstream := 0
	for _, other := range all {
		for _, d := range other.Dependencies {
			if d == string(t.ID()) {
				downstream++
			}
		}
	}
	tc.HighImpact = downstream >= 3
	return tc
}

// pickWinner implements the scoring and tie-break rule of step 7.
func (e *Engine) pickWinner(candidates []*task.Task, ag *agent.Agent) *task.Task {
	type scored struct {
		t     *task.Task
		score float64
	}
	scoredList := make([]scored, len(candidates))
	for i, t := range candidates {
		skillMatch := ag.SkillMatch(t.Labels)
		priorityWeight := t.Priority.Weight()
		score := e.scoring.SkillWeight*skillMatch + e.scoring.PriorityWeight*priorityWeight
		scoredList[i] = scored{t: t, score: score}
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		a, b := scoredList[i], scoredList[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.t.Priority.Rank() != b.t.Priority.Rank() {
			return a.t.Priority.Rank() < b.t.Priority.Rank()
		}
		if a.t.EstimatedHours != b.t.EstimatedHours {
			return a.t.EstimatedHours < b.t.EstimatedHours
		}
		return string(a.t.ID()) < string(b.t.ID())
	})
	return scoredList[0].t
}

// computeRetryAfter implements step 11.
func (e *Engine) computeRetryAfter(all []*task.Task, assignedIDs map[string]bool) (int, string, string) {
	const fallbackMedian = time.Hour // Open Question #3: 1.0h fallback

	type candidate struct {
		id       string
		remaining time.Duration
	}
	var inProgress []candidate
	now := time.Now().UTC()

	for _, t := range all {
		if t.Status != domain.TaskInProgress {
			continue
		}
		rec, ok := e.ap.Get(t.AssignedTo)
		if !ok || rec.TaskID != string(t.ID()) {
			continue
		}
		elapsed := now.Sub(rec.AssignedAt.Time)
		var remaining time.Duration
		if t.Progress > 0 {
			fraction := float64(t.Progress) / 100.0
			totalEstimate := time.Duration(float64(elapsed) / fraction)
			remaining = totalEstimate - elapsed
		} else {
			remaining = fallbackMedian
		}
		if remaining < 0 {
			remaining = 0
		}
		inProgress = append(inProgress, candidate{id: string(t.ID()), remaining: remaining})
	}

	var best *candidate
	if len(inProgress) == 0 {
		best = &candidate{remaining: fallbackMedian}
	} else {
		sort.Slice(inProgress, func(i, j int) bool { return inProgress[i].remaining < inProgress[j].remaining })
		best = &inProgress[0]
	}

	withBuffer := time.Duration(float64(best.remaining) * (1.0 + e.retry.BufferFraction))
	secs := int(withBuffer.Seconds())
	if secs < e.retry.FloorSeconds {
		secs = e.retry.FloorSeconds
	}
	if secs > e.retry.CapSeconds {
		secs = e.retry.CapSeconds
	}

	reason := "no assignable tasks"
	if best.id != "" {
		reason = "waiting on in-progress task " + best.id
	}
	return secs, reason, best.id
}
