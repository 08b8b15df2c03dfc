// Package aiengine provides the pluggable AI-instruction interface the
// assignment engine delegates to for task instructions and blocker
// suggestions. Grounded on the teacher's providers.LLMProvider shape
// (Chat(ctx, messages, tools, model, options) → *LLMResponse) — the
// HTTPProvider/Message/ToolDefinition types it depends on were not
// present in the retrieved pack, so this package is authored fresh in
// the same shape, generalized from a raw chat call to the two specific
// operations the engine actually needs.
package aiengine

import "context"

// TaskContext is everything the engine knows about a task at assignment
// time, passed to the backend to ground its generated instructions.
type TaskContext struct {
	TaskID         string
	Name           string
	Description    string
	Priority       string
	Labels         []string
	IsSubtask      bool
	ParentTaskID   string
	ParentName     string
	Dependencies   []string
	EstimatedHours float64
	HighImpact     bool // true when three or more tasks depend directly on this one
}

// Engine is the AI-instruction backend contract. On error, every bundled
// implementation returns a built-in fallback text (BaseInstructions, or a
// generic blocker suggestion) alongside the error: kanban and AI failures during
// instruction generation must never fail an otherwise-successful
// assignment (spec.md §7).
type Engine interface {
	// GenerateInstructions produces task instructions tailored to ctx.
	GenerateInstructions(ctx context.Context, tc TaskContext) (string, error)
	// SuggestForBlocker proposes next steps for a reported blocker.
	SuggestForBlocker(ctx context.Context, tc TaskContext, description, severity string) (string, error)
}

// BaseInstructions renders the provider-agnostic fallback template used
// when no backend is configured or a backend call fails.
func BaseInstructions(tc TaskContext) string {
	s := "Implement: " + tc.Name
	if tc.Description != "" {
		s += "\n\n" + tc.Description
	}
	if tc.IsSubtask {
		s += "\n\nThis is a subtask of " + tc.ParentTaskID
		if tc.ParentName != "" {
			s += " (" + tc.ParentName + ")"
		}
		s += ". Keep conventions consistent with sibling subtasks."
	}
	if len(tc.Dependencies) > 0 {
		s += "\n\nDepends on completed work in: "
		for i, d := range tc.Dependencies {
			if i > 0 {
				s += ", "
			}
			s += d
		}
	}
	if tc.HighImpact {
		s += "\n\nMany downstream tasks depend on this one — consider recording an " +
			"architectural decision with log_decision before large structural changes."
	}
	return s
}
