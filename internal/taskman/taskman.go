// Package taskman is the single task-operations facade callers hold. It
// re-reads the session state on every call and routes to the guest store or
// the remote server store accordingly, so the caller never learns which
// backend served an operation.
package taskman

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/session"
	"github.com/Utre17/tasksmart/internal/store"
)

// SessionReader exposes the three facts routing depends on.
type SessionReader interface {
	State() session.State
}

// Manager routes every task operation to the backend matching the current
// session mode. Routing is decided per call, never cached, so a guest to
// authenticated transition takes effect on the very next operation.
type Manager struct {
	sessions SessionReader
	guest    store.Store
	remote   store.Store
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string][]models.Task
}

// New constructs the facade over both backends.
func New(sessions SessionReader, guestStore, remoteStore store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: sessions,
		guest:    guestStore,
		remote:   remoteStore,
		logger:   logger,
		cache:    map[string][]models.Task{},
	}
}

// route picks the backend for the current call. A session that is neither
// guest nor authenticated still routes to the remote store, whose expected
// authorization failure is surfaced to the caller rather than swallowed.
func (m *Manager) route() (store.Store, string) {
	st := m.sessions.State()
	switch {
	case st.Guest:
		return m.guest, "guest:" + st.GuestID
	case st.Authenticated:
		return m.remote, "account:" + st.Account
	default:
		return m.remote, "anonymous"
	}
}

// List returns the current backend's tasks. A warm cache for the active
// scope is served directly so a read immediately after a mutation never
// shows a stale list.
func (m *Manager) List(ctx context.Context) ([]models.Task, error) {
	backend, scope := m.route()

	m.mu.Lock()
	if cached, ok := m.cache[scope]; ok {
		out := make([]models.Task, len(cached))
		copy(out, cached)
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	tasks, err := backend.List(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cache[scope] = append([]models.Task(nil), tasks...)
	m.mu.Unlock()
	return tasks, nil
}

// Create routes the draft to the active backend and folds the result into
// the cached view.
func (m *Manager) Create(ctx context.Context, draft models.Draft) (models.Task, error) {
	backend, scope := m.route()
	task, err := backend.Create(ctx, draft)
	if err != nil {
		return models.Task{}, err
	}
	m.withCache(scope, func(tasks []models.Task) []models.Task {
		return append(tasks, task)
	})
	return task, nil
}

// Update routes the change and refreshes the cached record.
func (m *Manager) Update(ctx context.Context, id int64, changes models.Changes) (models.Task, error) {
	backend, scope := m.route()
	task, err := backend.Update(ctx, id, changes)
	if err != nil {
		return models.Task{}, err
	}
	m.replaceCached(scope, task)
	return task, nil
}

// Complete flips the completed flag through the active backend.
func (m *Manager) Complete(ctx context.Context, id int64, completed bool) (models.Task, error) {
	backend, scope := m.route()
	task, err := backend.Complete(ctx, id, completed)
	if err != nil {
		return models.Task{}, err
	}
	m.replaceCached(scope, task)
	return task, nil
}

// Delete removes the task through the active backend.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	backend, scope := m.route()
	if err := backend.Delete(ctx, id); err != nil {
		return err
	}
	m.withCache(scope, func(tasks []models.Task) []models.Task {
		kept := tasks[:0]
		for _, t := range tasks {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		return kept
	})
	return nil
}

// ClearCompleted bulk-deletes completed tasks through the active backend.
func (m *Manager) ClearCompleted(ctx context.Context) (int, error) {
	backend, scope := m.route()
	removed, err := backend.ClearCompleted(ctx)
	if err != nil {
		return 0, err
	}
	m.withCache(scope, func(tasks []models.Task) []models.Task {
		kept := tasks[:0]
		for _, t := range tasks {
			if !t.Completed {
				kept = append(kept, t)
			}
		}
		return kept
	})
	return removed, nil
}

// InvalidateCache drops the cached view for every scope. The migration
// coordinator calls this after moving records between backends.
func (m *Manager) InvalidateCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = map[string][]models.Task{}
}

// withCache applies fn to the cached list for scope, if one is warm.
func (m *Manager) withCache(scope string, fn func([]models.Task) []models.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.cache[scope]; ok {
		m.cache[scope] = fn(cached)
	}
}

func (m *Manager) replaceCached(scope string, task models.Task) {
	m.withCache(scope, func(tasks []models.Task) []models.Task {
		for i := range tasks {
			if tasks[i].ID == task.ID {
				tasks[i] = task
			}
		}
		return tasks
	})
}

var _ store.Store = (*Manager)(nil)
