// Package store persists task snapshots and the sync queue in a local
// sqlite database so the client keeps working across restarts and while
// offline.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"tasksync/internal/model"
)

const (
	metaLastSyncTime = "last_sync_time"
	metaAuthToken    = "auth_token"
)

// Store owns the tasks table, the sync queue, the dead-letter table and a
// small key-value area for auth and sync bookkeeping. A Store that fails to
// initialize degrades to a no-op: reads return empty results, writes do
// nothing, and Ready reports false so callers can surface the condition.
type Store struct {
	path string

	initOnce sync.Once
	db       *sql.DB
	ready    bool
	initErr  error
}

func Open(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

// Init opens the database and applies the schema. It is idempotent and safe
// to call from concurrent goroutines; every caller observes the outcome of
// the single underlying attempt.
func (s *Store) Init() bool {
	s.initOnce.Do(func() {
		if s.path == "" {
			s.initErr = errors.New("store: empty database path")
			return
		}
		db, err := sql.Open("sqlite", s.path)
		if err != nil {
			s.initErr = err
			return
		}
		if err := applySchema(db); err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}
		s.db = db
		s.ready = true
	})
	return s.ready
}

func (s *Store) Ready() bool {
	return s.ready
}

// InitErr reports why initialization failed, if it did.
func (s *Store) InitErr() error {
	return s.initErr
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applySchema(db *sql.DB) error {
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
			updated_at DATETIME NOT NULL,
			is_offline INTEGER NOT NULL DEFAULT 0,
			sync_state TEXT NOT NULL DEFAULT '',
			last_sync_attempt DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			mutation_type TEXT NOT NULL,
			task_id TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			next_retry_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_queue_created_at ON sync_queue(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_queue_type ON sync_queue(mutation_type);`,
		`CREATE TABLE IF NOT EXISTS dead_letter (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			mutation_type TEXT NOT NULL,
			task_id TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			failed_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveTask upserts the snapshot by id.
func (s *Store) SaveTask(t model.Task) error {
	if !s.ready {
		return nil
	}
	collab, err := json.Marshal(emptyIfNil(t.Collaborators))
	if err != nil {
		return err
	}
	deps, err := json.Marshal(emptyIfNil(t.Dependencies))
	if err != nil {
		return err
	}
	var lastAttempt any
	if t.LastSyncAttempt != nil {
		lastAttempt = t.LastSyncAttempt.UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO tasks (id, title, description, priority, status, task_type,
			assigned_to, collaborators, dependencies, created_at, updated_at,
			is_offline, sync_state, last_sync_attempt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			status = excluded.status,
			task_type = excluded.task_type,
			assigned_to = excluded.assigned_to,
			collaborators = excluded.collaborators,
			dependencies = excluded.dependencies,
			updated_at = excluded.updated_at,
			is_offline = excluded.is_offline,
			sync_state = excluded.sync_state,
			last_sync_attempt = excluded.last_sync_attempt
	`, t.ID, t.Title, t.Description, string(t.Priority), string(t.Status), t.Type,
		t.AssignedTo, string(collab), string(deps), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
		boolToInt(t.IsOffline), string(t.SyncState), lastAttempt)
	return err
}

// GetTasks returns every stored snapshot. No ordering is guaranteed at this
// layer; views sort as needed.
func (s *Store) GetTasks() ([]model.Task, error) {
	if !s.ready {
		return []model.Task{}, nil
	}
	rows, err := s.db.Query(`
		SELECT id, title, description, priority, status, task_type, assigned_to,
			collaborators, dependencies, created_at, updated_at, is_offline,
			sync_state, last_sync_attempt
		FROM tasks
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetTask returns nil with no error when the id is unknown, matching the
// degraded-mode contract.
func (s *Store) GetTask(id string) (*model.Task, error) {
	if !s.ready {
		return nil, nil
	}
	row := s.db.QueryRow(`
		SELECT id, title, description, priority, status, task_type, assigned_to,
			collaborators, dependencies, created_at, updated_at, is_offline,
			sync_state, last_sync_attempt
		FROM tasks WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) DeleteTask(id string) error {
	if !s.ready {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// AddToSyncQueue appends the item, minting an id when absent, and returns
// the id.
func (s *Store) AddToSyncQueue(item model.QueueItem) (string, error) {
	if !s.ready {
		return "", nil
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = model.NewQueueItemID(item.Type, item.TaskID)
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(item.Data)
	if err != nil {
		return "", err
	}
	var nextRetry any
	if !item.NextRetryAt.IsZero() {
		nextRetry = item.NextRetryAt.UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO sync_queue (id, mutation_type, task_id, data, created_at, retry_count, next_retry_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID, string(item.Type), item.TaskID, string(data), item.Timestamp.UTC(), item.RetryCount, nextRetry)
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

// GetSyncQueue returns pending items in insertion order.
func (s *Store) GetSyncQueue() ([]model.QueueItem, error) {
	if !s.ready {
		return []model.QueueItem{}, nil
	}
	rows, err := s.db.Query(`
		SELECT id, mutation_type, task_id, data, created_at, retry_count, next_retry_at
		FROM sync_queue ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.QueueItem, 0)
	for rows.Next() {
		var (
			it        model.QueueItem
			mt        string
			data      string
			nextRetry sql.NullTime
		)
		if err := rows.Scan(&it.ID, &mt, &it.TaskID, &data, &it.Timestamp, &it.RetryCount, &nextRetry); err != nil {
			return nil, err
		}
		it.Type = model.MutationType(mt)
		if data != "" && data != "null" {
			var t model.Task
			if err := json.Unmarshal([]byte(data), &t); err == nil {
				it.Data = &t
			}
		}
		if nextRetry.Valid {
			it.NextRetryAt = nextRetry.Time
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) QueueLength() (int, error) {
	if !s.ready {
		return 0, nil
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	return n, err
}

// UpdateQueueItemData replaces a pending item's payload in place, keeping
// its position and retry bookkeeping. Used to fold a later mutation into a
// not-yet-synced create for the same task.
func (s *Store) UpdateQueueItemData(id string, data *model.Task) error {
	if !s.ready {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE sync_queue SET data = ? WHERE id = ?`, string(b), id)
	return err
}

func (s *Store) RemoveFromSyncQueue(id string) error {
	if !s.ready {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

func (s *Store) ClearSyncQueue() error {
	if !s.ready {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM sync_queue`)
	return err
}

// DeadLetterItem is a queue item retired after exhausting its retry budget.
type DeadLetterItem struct {
	model.QueueItem
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

func (s *Store) AddToDeadLetter(item model.QueueItem, reason string, failedAt time.Time) error {
	if !s.ready {
		return nil
	}
	data, err := json.Marshal(item.Data)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO dead_letter (id, mutation_type, task_id, data, created_at, retry_count, reason, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, string(item.Type), item.TaskID, string(data), item.Timestamp.UTC(), item.RetryCount, reason, failedAt.UTC())
	return err
}

func (s *Store) DeadLetters() ([]DeadLetterItem, error) {
	if !s.ready {
		return []DeadLetterItem{}, nil
	}
	rows, err := s.db.Query(`
		SELECT id, mutation_type, task_id, data, created_at, retry_count, reason, failed_at
		FROM dead_letter ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]DeadLetterItem, 0)
	for rows.Next() {
		var (
			it   DeadLetterItem
			mt   string
			data string
		)
		if err := rows.Scan(&it.ID, &mt, &it.TaskID, &data, &it.Timestamp, &it.RetryCount, &it.Reason, &it.FailedAt); err != nil {
			return nil, err
		}
		it.Type = model.MutationType(mt)
		if data != "" && data != "null" {
			var t model.Task
			if err := json.Unmarshal([]byte(data), &t); err == nil {
				it.Data = &t
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) SetMeta(key, value string) error {
	if !s.ready {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *Store) GetMeta(key string) (string, error) {
	if !s.ready {
		return "", nil
	}
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetLastSyncTime(t time.Time) error {
	return s.SetMeta(metaLastSyncTime, t.UTC().Format(time.RFC3339Nano))
}

// LastSyncTime returns the zero time when no drain has completed yet.
func (s *Store) LastSyncTime() (time.Time, error) {
	v, err := s.GetMeta(metaLastSyncTime)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, v)
}

func (s *Store) SetAuthToken(token string) error {
	return s.SetMeta(metaAuthToken, strings.TrimSpace(token))
}

func (s *Store) AuthToken() (string, error) {
	return s.GetMeta(metaAuthToken)
}

func scanTask(row interface{ Scan(dest ...any) error }) (*model.Task, error) {
	var (
		t           model.Task
		priority    string
		status      string
		collab      string
		deps        string
		isOffline   int
		syncState   string
		lastAttempt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &t.Type,
		&t.AssignedTo, &collab, &deps, &t.CreatedAt, &t.UpdatedAt, &isOffline,
		&syncState, &lastAttempt); err != nil {
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
	t.IsOffline = isOffline != 0
	t.SyncState = model.SyncState(syncState)
	if lastAttempt.Valid {
		at := lastAttempt.Time
		t.LastSyncAttempt = &at
	}
	return &t, nil
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
