package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/marcus-ai/marcus/pkg/apperr"
)

// artifactTypeDirs maps a log_artifact artifact_type to the project-root
// relative subdirectory it is written under (spec.md §6's "type-derived
// subdirectory" rule).
var artifactTypeDirs = map[string]string{
	"api":    "docs/api",
	"design": "docs/design",
}

const defaultArtifactDir = "docs/artifacts"

// Decision is one log_decision record.
type Decision struct {
	ID       string `json:"id"`
	AgentID  string `json:"agent_id"`
	TaskID   string `json:"task_id"`
	Decision string `json:"decision"`
	At       string `json:"at"`
}

// Artifact is one log_artifact record.
type Artifact struct {
	TaskID       string `json:"task_id"`
	Filename     string `json:"filename"`
	Path         string `json:"path"`
	ArtifactType string `json:"artifact_type"`
	Description  string `json:"description,omitempty"`
	At           string `json:"at"`
}

// bookkeeping is the in-memory store backing decisions and artifacts. This
// is deliberately not part of AP/TS: decisions and artifacts are reference
// material for get_task_context, not assignment state, and do not
// participate in the lease/reservation invariants.
type bookkeeping struct {
	mu        sync.RWMutex
	decisions map[string][]Decision // keyed by task id
	artifacts map[string][]Artifact // keyed by task id
}

func newBookkeeping() *bookkeeping {
	return &bookkeeping{
		decisions: make(map[string][]Decision),
		artifacts: make(map[string][]Artifact),
	}
}

// LogDecision implements the log_decision tool.
func (e *Engine) LogDecision(agentID, taskID, decision string) (string, error) {
	if _, ok := e.ts.Get(taskID); !ok {
		return "", apperr.NotFound(taskID)
	}
	id := uuid.NewString()
	rec := Decision{
		ID:       id,
		AgentID:  agentID,
		TaskID:   taskID,
		Decision: decision,
		At:       nowRFC3339(),
	}
	e.books.mu.Lock()
	e.books.decisions[taskID] = append(e.books.decisions[taskID], rec)
	e.books.mu.Unlock()
	return id, nil
}

// joinUnderRoot joins elems onto root and rejects the result if it would
// resolve outside root — a ".." anywhere in location or filename must never
// let log_artifact escape the caller-supplied project_root (spec.md §6).
func joinUnderRoot(root string, elems ...string) (string, error) {
	root = filepath.Clean(root)
	joined := filepath.Join(append([]string{root}, elems...)...)
	rel, err := filepath.Rel(root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.Configuration("log_artifact path escapes project_root")
	}
	return joined, nil
}

// LogArtifact implements the log_artifact tool. projectRoot must be an
// absolute path; the core never writes outside it (spec.md §6).
func (e *Engine) LogArtifact(taskID, filename, content, artifactType, projectRoot, description, location string) (string, error) {
	if _, ok := e.ts.Get(taskID); !ok {
		return "", apperr.NotFound(taskID)
	}
	if projectRoot == "" || !filepath.IsAbs(projectRoot) {
		return "", apperr.Configuration("log_artifact requires an absolute project_root")
	}

	subdir := location
	if subdir == "" {
		subdir = artifactTypeDirs[artifactType]
		if subdir == "" {
			subdir = defaultArtifactDir
		}
	}

	path, err := joinUnderRoot(projectRoot, subdir, filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", apperr.Wrap(apperr.ConfigurationError, "creating artifact directory", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", apperr.Wrap(apperr.ConfigurationError, "writing artifact", err)
	}

	e.books.mu.Lock()
	e.books.artifacts[taskID] = append(e.books.artifacts[taskID], Artifact{
		TaskID:       taskID,
		Filename:     filename,
		Path:         path,
		ArtifactType: artifactType,
		Description:  description,
		At:           nowRFC3339(),
	})
	e.books.mu.Unlock()

	return path, nil
}

// TaskContextReport is the get_task_context tool's result payload.
type TaskContextReport struct {
	Decisions       []Decision `json:"decisions"`
	Artifacts       []Artifact `json:"artifacts"`
	DependentTasks  []string   `json:"dependent_tasks"`
	IsSubtask       bool       `json:"is_subtask"`
	ParentTask      string     `json:"parent_task,omitempty"`
	Implementations []string   `json:"implementations"`
}

// GetTaskContext implements the get_task_context tool.
func (e *Engine) GetTaskContext(taskID string) (*TaskContextReport, error) {
	t, ok := e.ts.Get(taskID)
	if !ok {
		return nil, apperr.NotFound(taskID)
	}

	all := e.ts.All()
	var dependents []string
	for _, other := range all {
		for _, dep := range other.Dependencies {
			if dep == taskID {
				dependents = append(dependents, string(other.ID()))
				break
			}
		}
	}
	sort.Strings(dependents)

	e.books.mu.RLock()
	decisions := append([]Decision(nil), e.books.decisions[taskID]...)
	artifacts := append([]Artifact(nil), e.books.artifacts[taskID]...)
	e.books.mu.RUnlock()

	report := &TaskContextReport{
		Decisions:      decisions,
		Artifacts:      artifacts,
		DependentTasks: dependents,
		IsSubtask:      t.IsSubtask,
	}
	if t.IsSubtask {
		report.ParentTask = t.ParentTaskID
	}
	return report, nil
}
