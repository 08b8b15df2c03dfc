package kanban

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteProvider is a SQLite-backed kanban board — the bundled, self-hosted
// implementation of Provider, generalized from the teacher's
// integration/kanban schema and trimmed to the five operations spec.md §6
// allows the core to call.
type SQLiteProvider struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if necessary) a SQLite-backed board at path.
func OpenSQLite(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("kanban: open sqlite: %w", err)
	}
	p := &SQLiteProvider{db: db}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("kanban: init schema: %w", err)
	}
	return p, nil
}

func (p *SQLiteProvider) Close() error { return p.db.Close() }

func (p *SQLiteProvider) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		description      TEXT DEFAULT '',
		status           TEXT DEFAULT 'TODO',
		priority         TEXT DEFAULT 'MEDIUM',
		assigned_to      TEXT DEFAULT '',
		dependencies     TEXT DEFAULT '',
		labels           TEXT DEFAULT '',
		estimated_hours  REAL DEFAULT 0,
		progress         INTEGER DEFAULT 0,
		is_subtask       INTEGER DEFAULT 0,
		parent_task_id   TEXT DEFAULT '',
		subtask_index    INTEGER DEFAULT 0,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		due_date         TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to);
	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);

	CREATE TABLE IF NOT EXISTS task_comments (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id    TEXT NOT NULL,
		text       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);
	`
	_, err := p.db.Exec(schema)
	return err
}

func (p *SQLiteProvider) GetAllTasks(ctx context.Context) ([]Task, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, description, status, priority,
		assigned_to, dependencies, labels, estimated_hours, progress, is_subtask,
		parent_task_id, subtask_index, created_at, updated_at, due_date FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("kanban: list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *SQLiteProvider) GetTaskByID(ctx context.Context, id string) (Task, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, name, description, status, priority,
		assigned_to, dependencies, labels, estimated_hours, progress, is_subtask,
		parent_task_id, subtask_index, created_at, updated_at, due_date FROM tasks WHERE id = ?`, id)
	return scanTaskRow(row)
}

func (p *SQLiteProvider) UpdateTask(ctx context.Context, id string, fields UpdateFields) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sets []string
	var args []interface{}
	if fields.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *fields.Status)
	}
	if fields.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *fields.Priority)
	}
	if fields.AssignedTo != nil {
		sets = append(sets, "assigned_to = ?")
		args = append(args, *fields.AssignedTo)
	}
	if fields.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *fields.Progress)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339))
	args = append(args, id)

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("kanban: update task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("kanban: task %q not found", id)
	}
	return nil
}

func (p *SQLiteProvider) UpdateTaskProgress(ctx context.Context, id string, info ProgressInfo) error {
	progress := info.Progress
	if err := p.UpdateTask(ctx, id, UpdateFields{Progress: &progress}); err != nil {
		return err
	}
	if info.Message != "" {
		return p.AddComment(ctx, id, info.Message)
	}
	return nil
}

func (p *SQLiteProvider) AddComment(ctx context.Context, id string, text string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO task_comments (task_id, text, created_at) VALUES (?, ?, ?)`,
		id, text, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("kanban: add comment: %w", err)
	}
	return nil
}

// CreateTask seeds a task row. Not part of the Provider interface the
// assignment engine depends on — used by test fixtures and import tooling.
func (p *SQLiteProvider) CreateTask(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := p.db.Exec(`INSERT INTO tasks (id, name, description, status, priority,
		assigned_to, dependencies, labels, estimated_hours, progress, is_subtask,
		parent_task_id, subtask_index, created_at, updated_at, due_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Status, t.Priority, t.AssignedTo,
		joinStrings(t.Dependencies), joinStrings(t.Labels), t.EstimatedHours, t.Progress,
		boolToInt(t.IsSubtask), t.ParentTaskID, t.SubtaskIndex, now, now, formatOptionalTime(t.DueDate))
	return err
}

// ---------------------------------------------------------------------------
// scanning helpers
// ---------------------------------------------------------------------------

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanTaskRow(row *sql.Row) (Task, error) { return scanTask(row) }
func scanTaskRows(rows *sql.Rows) (Task, error) { return scanTask(rows) }

func scanTask(s scannable) (Task, error) {
	var (
		t                        Task
		deps, labels             string
		isSubtask                int
		createdAt, updatedAt     string
		dueDate                  sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Description, &t.Status, &t.Priority,
		&t.AssignedTo, &deps, &labels, &t.EstimatedHours, &t.Progress, &isSubtask,
		&t.ParentTaskID, &t.SubtaskIndex, &createdAt, &updatedAt, &dueDate); err != nil {
		if err == sql.ErrNoRows {
			return Task{}, fmt.Errorf("kanban: task not found")
		}
		return Task{}, fmt.Errorf("kanban: scan task: %w", err)
	}
	t.Dependencies = splitStrings(deps)
	t.Labels = splitStrings(labels)
	t.IsSubtask = isSubtask != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if dueDate.Valid && dueDate.String != "" {
		if parsed, err := time.Parse(time.RFC3339, dueDate.String); err == nil {
			t.DueDate = &parsed
		}
	}
	return t, nil
}

func joinStrings(ss []string) string { return strings.Join(ss, ",") }

func splitStrings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func formatOptionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
