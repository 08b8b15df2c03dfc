package engine

import (
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/domain/task"
)

// inCycle reports whether a dependency cycle is reachable from t — t is in
// the cycle itself or depends, directly or transitively, on a task that
// is — via DFS with a recursion stack over the full dependency graph (spec.md §9:
// "detect cycles during filtering... no task in a cycle is ever
// assignable until the cycle is broken. Do not attempt automatic
// resolution.").
func inCycle(all []*task.Task, t *task.Task) bool {
	byID := make(map[string]*task.Task, len(all))
	for _, candidate := range all {
		byID[string(candidate.ID())] = candidate
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var dfs func(id string) bool
	dfs = func(id string) bool {
		if visiting[id] {
			return true
		}
		if visited[id] {
			return false
		}
		visiting[id] = true
		if cur, ok := byID[id]; ok {
			for _, dep := range cur.Dependencies {
				if dfs(dep) {
					return true
				}
			}
		}
		visiting[id] = false
		visited[id] = true
		return false
	}

	return dfs(string(t.ID()))
}

// CycleReport names every task id in a detected dependency cycle,
// board-health reporting's evidence for a flagged cycle.
type CycleReport struct {
	TaskIDs []string
}

// BoardHealth summarizes structural issues surfaced by the assignment
// engine's own bookkeeping — supplemented from original_source/'s
// board-health tooling (SPEC_FULL.md §12), not part of the core filter
// pipeline but sharing its cycle-detection and subtask-invariant logic.
type BoardHealth struct {
	Cycles               []CycleReport
	OrphanedSubtasks     []string // subtask ids whose parent is missing
	ParentsMissingStatus []string // parents with subtasks not all DONE but marked DONE
}

// ScanBoardHealth runs a full structural sweep over the current task
// store snapshot. Called by MON's board-health cron sweep and by the
// supplemented get_board_health tool.
func (e *Engine) ScanBoardHealth() BoardHealth {
	all := e.ts.All()
	seen := make(map[string]bool)
	var report BoardHealth

	for _, t := range all {
		id := string(t.ID())
		if seen[id] {
			continue
		}
		if inCycle(all, t) {
			cycle := collectCycle(all, t)
			report.Cycles = append(report.Cycles, CycleReport{TaskIDs: cycle})
			for _, c := range cycle {
				seen[c] = true
			}
		}
	}

	byID := make(map[string]*task.Task, len(all))
	for _, t := range all {
		byID[string(t.ID())] = t
	}
	for _, t := range all {
		if !t.IsSubtask {
			continue
		}
		if _, ok := byID[t.ParentTaskID]; !ok {
			report.OrphanedSubtasks = append(report.OrphanedSubtasks, string(t.ID()))
		}
	}

	for _, t := range all {
		if t.IsSubtask || !e.ts.HasSubtasks(string(t.ID())) {
			continue
		}
		if t.Status != domain.TaskDone {
			continue
		}
		for _, child := range e.ts.Children(string(t.ID())) {
			if child.Status != domain.TaskDone {
				report.ParentsMissingStatus = append(report.ParentsMissingStatus, string(t.ID()))
				break
			}
		}
	}

	return report
}

// collectCycle walks the same DFS as inCycle but records the path that
// forms the cycle, for operator-facing reporting.
func collectCycle(all []*task.Task, start *task.Task) []string {
	byID := make(map[string]*task.Task, len(all))
	for _, t := range all {
		byID[string(t.ID())] = t
	}
	var path []string
	onPath := make(map[string]bool)
	visited := make(map[string]bool)

	var dfs func(id string) []string
	dfs = func(id string) []string {
		if onPath[id] {
			// found the cycle; return the suffix of path from id onward
			idx := 0
			for i, p := range path {
				if p == id {
					idx = i
					break
				}
			}
			return append([]string{}, path[idx:]...)
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		onPath[id] = true
		path = append(path, id)
		if cur, ok := byID[id]; ok {
			for _, dep := range cur.Dependencies {
				if found := dfs(dep); found != nil {
					return found
				}
			}
		}
		onPath[id] = false
		path = path[:len(path)-1]
		return nil
	}

	if cyc := dfs(string(start.ID())); cyc != nil {
		return cyc
	}
	return []string{string(start.ID())}
}
