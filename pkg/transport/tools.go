package transport

import (
	"context"

	"github.com/marcus-ai/marcus/pkg/apperr"
	"github.com/marcus-ai/marcus/pkg/app"
	"github.com/marcus-ai/marcus/pkg/domain"
)

// buildAgentTools wires the core assignment surface (spec.md §6's tool
// table) to the engine and registry. These are exposed only on the agent
// endpoint.
func buildAgentTools(c *app.Container) []Tool {
	return []Tool{
		{
			Name:        "register_agent",
			Description: "Register a worker agent with its skills.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				agentID, err := stringArg(args, "agent_id")
				if err != nil {
					return nil, err
				}
				name, err := stringArg(args, "name")
				if err != nil {
					return nil, err
				}
				role, err := stringArg(args, "role")
				if err != nil {
					return nil, err
				}
				skills := stringSliceArg(args, "skills")
				a := c.Registry.Register(agentID, name, role, skills)
				return map[string]interface{}{"agent_id": a.AgentID}, nil
			},
		},
		{
			Name:        "request_next_task",
			Description: "Ask the assignment engine for the next task to work on.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				agentID, err := stringArg(args, "agent_id")
				if err != nil {
					return nil, err
				}
				assigned, noTask, err := c.Engine.RequestNextTask(ctx, agentID)
				if err != nil {
					return nil, err
				}
				if noTask != nil {
					out := map[string]interface{}{
						"success":             false,
						"retry_after_seconds": noTask.RetryAfterSeconds,
						"retry_reason":        noTask.RetryReason,
					}
					if noTask.BlockingTaskID != "" {
						out["blocking_task"] = noTask.BlockingTaskID
					}
					return out, nil
				}
				return map[string]interface{}{
					"task": map[string]interface{}{
						"id":           string(assigned.Task.ID()),
						"name":         assigned.Task.Name,
						"instructions": assigned.Instructions,
						"priority":     string(assigned.Task.Priority),
						"estimated_hours": assigned.Task.EstimatedHours,
						"labels":       assigned.Task.Labels.Strings(),
						"is_subtask":   assigned.Task.IsSubtask,
						"parent_task_id": assigned.Task.ParentTaskID,
					},
				}, nil
			},
		},
		{
			Name:        "report_task_progress",
			Description: "Report progress, blockage, or completion on an assigned task.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				agentID, err := stringArg(args, "agent_id")
				if err != nil {
					return nil, err
				}
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				statusStr, err := stringArg(args, "status")
				if err != nil {
					return nil, err
				}
				progress, err := intArg(args, "progress")
				if err != nil {
					return nil, err
				}
				message := optionalStringArg(args, "message")

				status, err := mapReportedStatus(statusStr)
				if err != nil {
					return nil, err
				}
				if err := c.Engine.ReportProgress(ctx, agentID, taskID, status, progress, message); err != nil {
					return nil, err
				}
				return map[string]interface{}{}, nil
			},
		},
		{
			Name:        "report_blocker",
			Description: "Report a blocker on an assigned task and receive AI-generated suggestions.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				agentID, err := stringArg(args, "agent_id")
				if err != nil {
					return nil, err
				}
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				description, err := stringArg(args, "description")
				if err != nil {
					return nil, err
				}
				severity := optionalStringArg(args, "severity")
				suggestion, err := c.Engine.ReportBlocker(ctx, agentID, taskID, description, severity)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"suggestion": suggestion}, nil
			},
		},
		{
			Name:        "get_task_context",
			Description: "Fetch implementation context, decisions, artifacts, and dependents for a task.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				report, err := c.Engine.GetTaskContext(taskID)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"context": report}, nil
			},
		},
		{
			Name:        "log_decision",
			Description: "Record a design/implementation decision against a task.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				agentID, err := stringArg(args, "agent_id")
				if err != nil {
					return nil, err
				}
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				decision, err := stringArg(args, "decision")
				if err != nil {
					return nil, err
				}
				id, err := c.Engine.LogDecision(agentID, taskID, decision)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"decision_id": id}, nil
			},
		},
		{
			Name:        "log_artifact",
			Description: "Record a build artifact produced for a task, written under project_root.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				filename, err := stringArg(args, "filename")
				if err != nil {
					return nil, err
				}
				content, err := stringArg(args, "content")
				if err != nil {
					return nil, err
				}
				artifactType, err := stringArg(args, "artifact_type")
				if err != nil {
					return nil, err
				}
				projectRoot, err := stringArg(args, "project_root")
				if err != nil {
					return nil, err
				}
				description := optionalStringArg(args, "description")
				location := optionalStringArg(args, "location")
				path, err := c.Engine.LogArtifact(taskID, filename, content, artifactType, projectRoot, description, location)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"path": path}, nil
			},
		},
	}
}

// buildSharedTools wires the read-only convenience tools supplemented from
// original_source/'s Python tooling: board health, liveness, and the agent
// roster. These are available on every endpoint.
func buildSharedTools(c *app.Container) []Tool {
	return []Tool{
		{
			Name:        "get_board_health",
			Description: "Scan the board for cycles, orphaned subtasks, and parent/child status mismatches.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				report := c.Engine.ScanBoardHealth()
				return map[string]interface{}{"health": report}, nil
			},
		},
		{
			Name:        "ping",
			Description: "Report process uptime and lease statistics.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				report := c.Engine.Ping()
				return map[string]interface{}{"ping": report}, nil
			},
		},
		{
			Name:        "list_registered_agents",
			Description: "List every agent currently registered with the coordinator.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				agents := c.Engine.ListRegisteredAgents()
				return map[string]interface{}{"agents": agents}, nil
			},
		},
	}
}

// buildAdminTools wires operator-only actions, exposed on the human
// endpoint for marcusctl rather than on the agent endpoint: agents request
// and report on tasks, but only an operator forcibly unassigns one.
func buildAdminTools(c *app.Container) []Tool {
	return []Tool{
		{
			Name:        "unassign_task",
			Description: "Force a task back to TODO, clearing its lease and assignment record.",
			Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
				taskID, err := stringArg(args, "task_id")
				if err != nil {
					return nil, err
				}
				agentID := optionalStringArg(args, "agent_id")
				if err := c.Engine.UnassignTask(ctx, taskID, agentID); err != nil {
					return nil, err
				}
				return map[string]interface{}{}, nil
			},
		},
	}
}

func mapReportedStatus(s string) (domain.TaskStatus, error) {
	switch s {
	case "in_progress":
		return domain.TaskInProgress, nil
	case "completed":
		return domain.TaskDone, nil
	case "blocked":
		return domain.TaskBlocked, nil
	default:
		return "", apperr.Configuration("unrecognized status \"" + s + "\"")
	}
}
