package taskserver

import (
	"database/sql"
	"encoding/json"
	"errors"

	"tasksync/internal/model"
)

var ErrNotFound = errors.New("not found")

// TaskRepo is the server-side task table. The authoritative copy has no
// offline bookkeeping; client-only fields are stripped before storage.
type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) InitSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'todo',
			task_type TEXT NOT NULL DEFAULT '',
			assigned_to TEXT NOT NULL DEFAULT '',
			collaborators TEXT NOT NULL DEFAULT '[]',
			dependencies TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *TaskRepo) Upsert(t model.Task) error {
	collab, err := json.Marshal(sliceOrEmpty(t.Collaborators))
	if err != nil {
		return err
	}
	deps, err := json.Marshal(sliceOrEmpty(t.Dependencies))
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO tasks (id, title, description, priority, status, task_type,
			assigned_to, collaborators, dependencies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			status = excluded.status,
			task_type = excluded.task_type,
			assigned_to = excluded.assigned_to,
			collaborators = excluded.collaborators,
			dependencies = excluded.dependencies,
			updated_at = excluded.updated_at
	`, t.ID, t.Title, t.Description, string(t.Priority), string(t.Status), t.Type,
		t.AssignedTo, string(collab), string(deps), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	return err
}

func (r *TaskRepo) Get(id string) (*model.Task, error) {
	row := r.db.QueryRow(`
		SELECT id, title, description, priority, status, task_type, assigned_to,
			collaborators, dependencies, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	t, err := scanServerTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TaskRepo) List() ([]model.Task, error) {
	rows, err := r.db.Query(`
		SELECT id, title, description, priority, status, task_type, assigned_to,
			collaborators, dependencies, created_at, updated_at
		FROM tasks ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanServerTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanServerTask(row interface{ Scan(dest ...any) error }) (*model.Task, error) {
	var (
		t        model.Task
		priority string
		status   string
		collab   string
		deps     string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &t.Type,
		&t.AssignedTo, &collab, &deps, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Priority = model.Priority(priority)
	t.Status = model.Status(status)
	_ = json.Unmarshal([]byte(collab), &t.Collaborators)
	_ = json.Unmarshal([]byte(deps), &t.Dependencies)
	if len(t.Collaborators) == 0 {
		t.Collaborators = nil
	}
	if len(t.Dependencies) == 0 {
		t.Dependencies = nil
	}
	return &t, nil
}

func sliceOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
