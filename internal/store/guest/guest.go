// Package guest implements the on-device task store used before a user
// registers. Records live as one JSON blob per guest identity inside the
// key-value store; IDs are negative and never leave the device.
package guest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/storage/kv"
	"github.com/Utre17/tasksmart/internal/store"
)

// Store holds all tasks for a single guest identity.
type Store struct {
	kv      *kv.Store
	guestID string
	logger  *slog.Logger
}

// collection is the persisted blob layout. lastID only ever decreases, so
// IDs stay unique across deletions.
type collection struct {
	LastID int64         `json:"last_id"`
	Tasks  []models.Task `json:"tasks"`
}

// New constructs a guest store bound to one guest identity.
func New(kvStore *kv.Store, guestID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kvStore, guestID: guestID, logger: logger}
}

func (s *Store) key() string {
	return "tasks/" + s.guestID
}

// load reads the guest collection. Corrupt or unparsable stored data is
// treated as no data, so guest mode stays usable no matter what is on disk.
func (s *Store) load(ctx context.Context) (collection, error) {
	raw, ok, err := s.kv.Get(ctx, s.key())
	if err != nil {
		return collection{}, fmt.Errorf("load guest tasks: %w", err)
	}
	if !ok {
		return collection{}, nil
	}
	var col collection
	if err := json.Unmarshal(raw, &col); err != nil {
		s.logger.Warn("guest task data unreadable, starting empty",
			slog.String("guest_id", s.guestID),
			slog.String("reason", err.Error()))
		return collection{}, nil
	}
	return col, nil
}

func (s *Store) save(ctx context.Context, col collection) error {
	raw, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("encode guest tasks: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(), raw); err != nil {
		return fmt.Errorf("persist guest tasks: %w", err)
	}
	return nil
}

// List returns all guest tasks in creation order.
func (s *Store) List(ctx context.Context) ([]models.Task, error) {
	col, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return col.Tasks, nil
}

// Create assigns the next negative local ID, stamps timestamps and
// persists the record.
func (s *Store) Create(ctx context.Context, draft models.Draft) (models.Task, error) {
	if err := draft.Validate(); err != nil {
		return models.Task{}, err
	}
	col, err := s.load(ctx)
	if err != nil {
		return models.Task{}, err
	}

	col.LastID--
	now := time.Now().UTC()
	task := models.Task{
		ID:        col.LastID,
		OwnerKey:  s.guestID,
		Title:     strings.TrimSpace(draft.Title),
		Category:  draft.Category,
		Priority:  draft.Priority,
		DueDate:   draft.DueDate,
		Notes:     draft.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	col.Tasks = append(col.Tasks, task)

	if err := s.save(ctx, col); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Update merges changes into the task with the given id.
func (s *Store) Update(ctx context.Context, id int64, changes models.Changes) (models.Task, error) {
	if err := changes.Validate(); err != nil {
		return models.Task{}, err
	}
	col, err := s.load(ctx)
	if err != nil {
		return models.Task{}, err
	}

	for i := range col.Tasks {
		if col.Tasks[i].ID != id {
			continue
		}
		changes.Apply(&col.Tasks[i], time.Now().UTC())
		if err := s.save(ctx, col); err != nil {
			return models.Task{}, err
		}
		return col.Tasks[i], nil
	}
	return models.Task{}, store.ErrNotFound
}

// Complete flips the completed flag. Setting it to its current value is a
// no-op apart from the updated_at refresh.
func (s *Store) Complete(ctx context.Context, id int64, completed bool) (models.Task, error) {
	return s.Update(ctx, id, models.Changes{Completed: &completed})
}

// Delete removes the task with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	col, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range col.Tasks {
		if col.Tasks[i].ID != id {
			continue
		}
		col.Tasks = append(col.Tasks[:i], col.Tasks[i+1:]...)
		return s.save(ctx, col)
	}
	return store.ErrNotFound
}

// ClearCompleted bulk-deletes completed tasks and returns the count.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	col, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := col.Tasks[:0]
	removed := 0
	for _, t := range col.Tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	if removed == 0 {
		return 0, nil
	}
	col.Tasks = kept
	if err := s.save(ctx, col); err != nil {
		return 0, err
	}
	return removed, nil
}

// ClearAll wipes the guest task collection. The guest identity token itself
// is owned by the session provider and is not touched here.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key())
}

// ExportForTransfer strips identity and timestamps from every record. This
// is the only read surface the migration coordinator uses.
func (s *Store) ExportForTransfer(ctx context.Context) ([]models.Draft, error) {
	col, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	drafts := make([]models.Draft, 0, len(col.Tasks))
	for _, t := range col.Tasks {
		drafts = append(drafts, models.Export(t))
	}
	return drafts, nil
}
