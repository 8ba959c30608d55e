// Package sqlite implements the durable, multi-account task store behind
// the server API. Every operation is scoped to the calling principal's
// owner key; IDs are server-assigned and globally unique.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/store"
)

// Store wraps access to the SQLite database and exposes owner-scoped task
// helpers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes the store at dbPath and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            token TEXT NOT NULL UNIQUE,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_key TEXT NOT NULL,
            title TEXT NOT NULL,
            category TEXT NOT NULL,
            priority TEXT NOT NULL,
            completed INTEGER NOT NULL DEFAULT 0,
            due_date TEXT NOT NULL DEFAULT '',
            notes TEXT NOT NULL DEFAULT '',
            fingerprint TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_key);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_completed ON tasks(owner_key, completed);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_fingerprint ON tasks(owner_key, fingerprint);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateAccount registers a new account and its bearer token.
func (s *Store) CreateAccount(ctx context.Context, name, token string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("account name must not be empty")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO accounts(name, token) VALUES(?, ?)`, strings.TrimSpace(name), token)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account id: %w", err)
	}
	return id, nil
}

// AccountByToken resolves a bearer token to an owner key. An unknown token
// yields store.ErrUnauthorized.
func (s *Store) AccountByToken(ctx context.Context, token string) (string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE token = ?`, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("lookup token: %w", err)
	}
	return fmt.Sprintf("account-%d", id), nil
}

const taskColumns = `id, owner_key, title, category, priority, completed, due_date, notes, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	var completed int
	err := row.Scan(&t.ID, &t.OwnerKey, &t.Title, &t.Category, &t.Priority, &completed, &t.DueDate, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	t.Completed = completed != 0
	return t, nil
}

// ListTasks returns all tasks owned by ownerKey, ordered by creation.
func (s *Store) ListTasks(ctx context.Context, ownerKey string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE owner_key = ? ORDER BY created_at, id`, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a validated draft for ownerKey. When fingerprint is
// non-empty and a task with the same fingerprint already exists for the
// owner, the existing task is returned instead of creating a duplicate;
// migration retries rely on this.
func (s *Store) CreateTask(ctx context.Context, ownerKey string, draft models.Draft, fingerprint string) (models.Task, error) {
	if err := draft.Validate(); err != nil {
		return models.Task{}, err
	}

	if fingerprint != "" {
		existing, err := s.taskByFingerprint(ctx, ownerKey, fingerprint)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.Task{}, err
		}
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(owner_key, title, category, priority, due_date, notes, fingerprint)
        VALUES(?, ?, ?, ?, ?, ?, ?)`,
		ownerKey, strings.TrimSpace(draft.Title), string(draft.Category), string(draft.Priority), draft.DueDate, draft.Notes, fingerprint)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	return s.GetTask(ctx, ownerKey, id)
}

func (s *Store) taskByFingerprint(ctx context.Context, ownerKey, fingerprint string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE owner_key = ? AND fingerprint = ?`, ownerKey, fingerprint)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, store.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("fingerprint lookup: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by id for ownerKey. A task owned by a different
// principal is reported as not found; the true reason is only logged.
func (s *Store) GetTask(ctx context.Context, ownerKey string, id int64) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, store.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	if t.OwnerKey != ownerKey {
		s.logger.Warn("cross-owner task access denied",
			slog.Int64("task_id", id),
			slog.String("caller", ownerKey))
		return models.Task{}, store.ErrNotFound
	}
	return t, nil
}

// UpdateTask merges the changes into the task and refreshes updated_at.
func (s *Store) UpdateTask(ctx context.Context, ownerKey string, id int64, changes models.Changes) (models.Task, error) {
	if err := changes.Validate(); err != nil {
		return models.Task{}, err
	}
	current, err := s.GetTask(ctx, ownerKey, id)
	if err != nil {
		return models.Task{}, err
	}

	changes.Apply(&current, time.Now().UTC())

	_, err = s.db.ExecContext(ctx, `UPDATE tasks SET title = ?, category = ?, priority = ?, completed = ?, due_date = ?, notes = ?, updated_at = ?
        WHERE id = ? AND owner_key = ?`,
		current.Title, string(current.Category), string(current.Priority), boolToInt(current.Completed),
		current.DueDate, current.Notes, current.UpdatedAt, id, ownerKey)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return s.GetTask(ctx, ownerKey, id)
}

// DeleteTask removes a task by id for ownerKey.
func (s *Store) DeleteTask(ctx context.Context, ownerKey string, id int64) error {
	if _, err := s.GetTask(ctx, ownerKey, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_key = ?`, id, ownerKey)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClearCompleted bulk-deletes all completed tasks for ownerKey and returns
// how many were removed.
func (s *Store) ClearCompleted(ctx context.Context, ownerKey string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE owner_key = ? AND completed = 1`, ownerKey)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
