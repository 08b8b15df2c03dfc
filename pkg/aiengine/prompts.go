package aiengine

import "fmt"

const instructionSystemPrompt = "You write concise, actionable work instructions for an autonomous coding agent picking up one task from a shared project board."

const blockerSystemPrompt = "You suggest concrete next steps to unblock an autonomous coding agent that has reported a blocker."

func instructionPrompt(tc TaskContext) string {
	p := fmt.Sprintf("Task %s: %s\nPriority: %s\nLabels: %v\n", tc.TaskID, tc.Name, tc.Priority, tc.Labels)
	if tc.Description != "" {
		p += "Description: " + tc.Description + "\n"
	}
	if tc.IsSubtask {
		p += fmt.Sprintf("This is a subtask of parent task %s (%s).\n", tc.ParentTaskID, tc.ParentName)
	}
	if len(tc.Dependencies) > 0 {
		p += fmt.Sprintf("Dependencies already completed: %v\n", tc.Dependencies)
	}
	if tc.HighImpact {
		p += "Many downstream tasks depend on this one; flag any architectural decision before large structural changes.\n"
	}
	p += "Write instructions for the agent that will execute this task."
	return p
}

func blockerPrompt(tc TaskContext, description, severity string) string {
	return fmt.Sprintf("Task %s (%s) is blocked with %s severity.\nBlocker: %s\nSuggest concrete next steps.",
		tc.TaskID, tc.Name, severity, description)
}

func fallbackBlockerSuggestion(description string) string {
	return "Unable to generate AI suggestions right now. Review the blocker directly: " + description
}
