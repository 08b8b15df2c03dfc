package engine

import (
	"github.com/marcus-ai/marcus/pkg/domain"
	"github.com/marcus-ai/marcus/pkg/domain/task"
	"github.com/marcus-ai/marcus/pkg/logger"
)

const (
	labelDocumentation domain.Tag = "documentation"
	labelDeployment    domain.Tag = "deployment"
)

var phaseLabels = map[domain.Tag]domain.Phase{
	"design": domain.PhaseDesign,
	"build":  domain.PhaseBuild,
	"test":   domain.PhaseTest,
	"deploy": domain.PhaseDeploy,
}

// phaseOf infers a task's phase from its labels, per spec.md §9's
// design->build->test->deploy inference rule. A task carrying none of the
// recognized phase labels has no phase and is never gated.
func phaseOf(t *task.Task) domain.Phase {
	for _, l := range t.Labels {
		if p, ok := phaseLabels[l]; ok {
			return p
		}
	}
	return domain.PhaseUnknown
}

// featureLabels returns a task's labels with phase/project-success/
// deployment markers stripped, leaving only the labels that define "same
// feature" grouping for the phase gate (glossary: "Feature — set of tasks
// sharing at least one label").
func featureLabels(t *task.Task) domain.Tags {
	var out domain.Tags
	for _, l := range t.Labels {
		if _, isPhase := phaseLabels[l]; isPhase {
			continue
		}
		if l == labelDocumentation || l == labelDeployment {
			continue
		}
		out = append(out, l)
	}
	return out
}

// filterCandidates implements step 5 of RequestNextTask: the filter
// pipeline plus the project-success and deployment set-asides, in the
// order spec.md §4.5.1 lists them.
func (e *Engine) filterCandidates(all []*task.Task, assignedIDs, completedIDs map[string]bool) []*task.Task {
	var base []*task.Task
	for _, t := range all {
		if t.Status != domain.TaskTODO {
			continue
		}
		if assignedIDs[string(t.ID())] {
			continue
		}
		if !t.IsSubtask && e.ts.HasSubtasks(string(t.ID())) {
			// A parent with subtasks is never directly assignable
			// (Open Question #1's frozen resolution).
			continue
		}
		if !t.DependenciesMet(completedIDs) {
			continue
		}
		if inCycle(all, t) {
			e.log.WarnCF("engine", "task excluded: part of a dependency cycle", logger.Fields{"task_id": string(t.ID())})
			continue
		}
		base = append(base, t)
	}

	base = e.applyProjectSuccessGate(all, base)
	base = applyPhaseGate(all, base)
	base = applyDeploymentGate(base)
	return base
}

// applyProjectSuccessGate excludes documentation-labeled tasks until at
// least CompletionThreshold of non-documentation tasks (project-wide) are
// DONE, unless documentation tasks are the only remaining candidates.
func (e *Engine) applyProjectSuccessGate(all, candidates []*task.Task) []*task.Task {
	var nonDocTotal, nonDocDone int
	for _, t := range all {
		if t.Labels.Contains(labelDocumentation) {
			continue
		}
		nonDocTotal++
		if t.Status == domain.TaskDone {
			nonDocDone++
		}
	}
	ratio := 1.0
	if nonDocTotal > 0 {
		ratio = float64(nonDocDone) / float64(nonDocTotal)
	}
	if ratio >= e.success.CompletionThreshold {
		return candidates
	}

	var nonDoc, doc []*task.Task
	for _, t := range candidates {
		if t.Labels.Contains(labelDocumentation) {
			doc = append(doc, t)
		} else {
			nonDoc = append(nonDoc, t)
		}
	}
	if len(nonDoc) == 0 {
		return doc // documentation tasks are the only remaining work
	}
	return nonDoc
}

// applyPhaseGate drops candidates whose phase comes strictly after an
// earlier, not-yet-DONE phase within the same feature (spec.md §4.5.1,
// §9 S6).
func applyPhaseGate(all, candidates []*task.Task) []*task.Task {
	var out []*task.Task
	for _, t := range candidates {
		p := phaseOf(t)
		if p == domain.PhaseUnknown {
			out = append(out, t)
			continue
		}
		fl := featureLabels(t)
		if len(fl) == 0 {
			out = append(out, t)
			continue
		}
		blocked := false
		for _, other := range all {
			if other.ID() == t.ID() {
				continue
			}
			if !fl.Intersects(featureLabels(other)) {
				continue
			}
			op := phaseOf(other)
			if op == domain.PhaseUnknown || op >= p {
				continue
			}
			if other.Status != domain.TaskDone {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, t)
		}
	}
	return out
}

// applyDeploymentGate sets deployment-labeled tasks aside unless they are
// the only remaining candidates (spec's Open Question #4 resolution: an
// explicit `deployment` label, not keyword matching).
func applyDeploymentGate(candidates []*task.Task) []*task.Task {
	var normal, deploy []*task.Task
	for _, t := range candidates {
		if t.Labels.Contains(labelDeployment) {
			deploy = append(deploy, t)
		} else {
			normal = append(normal, t)
		}
	}
	if len(normal) == 0 {
		return deploy
	}
	return normal
}

// preferSubtasks implements step 6: if any candidate is a subtask,
// restrict the pool to subtasks only.
func preferSubtasks(candidates []*task.Task) []*task.Task {
	var subtasks []*task.Task
	for _, t := range candidates {
		if t.IsSubtask {
			subtasks = append(subtasks, t)
		}
	}
	if len(subtasks) > 0 {
		return subtasks
	}
	return candidates
}
